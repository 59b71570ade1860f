// Command wlts queries a Web Land Trajectory Service from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammed-shakir/wlts-go/internal/app"
	"github.com/mohammed-shakir/wlts-go/internal/core/config"
	"github.com/mohammed-shakir/wlts-go/pkg/wlts"
)

var Version = "dev"

const usage = `Usage: wlts [--url URL] <command> [flags]

Commands:
  collections   list the collections offered by the service
  describe      describe one collection (--collection NAME)
  mappings      list the systems a collection can be harmonized into (--collection NAME)
  trajectory    retrieve the land-use trajectory at one or more points
  version       print the version
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := config.FromEnv()

	global := flag.NewFlagSet("wlts", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	global.StringVar(&cfg.WLTSURL, "url", cfg.WLTSURL, "WLTS server URL (overrides WLTS_URL)")
	global.StringVar(&cfg.AccessToken, "access-token", cfg.AccessToken, "access token (overrides WLTS_ACCESS_TOKEN)")
	verbose := global.Bool("verbose", false, "log upstream requests to stderr")
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}
	if *verbose {
		cfg.LogLevel = "debug"
		cfg.LogConsole = true
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	if cmd == "version" {
		_, _ = fmt.Fprintln(stdout, "wlts", Version)
		return 0
	}

	svc, err := app.NewService(cfg, app.NewLogger(cfg, "cli", stderr))
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	switch cmd {
	case "collections":
		err = listCollections(ctx, svc, stdout)
	case "describe":
		err = describe(ctx, svc, rest, stdout, stderr)
	case "mappings":
		err = mappings(ctx, svc, rest, stdout, stderr)
	case "trajectory":
		err = trajectory(ctx, svc, rest, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		global.Usage()
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func listCollections(ctx context.Context, svc *wlts.Service, out io.Writer) error {
	names, err := svc.Collections(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if _, err := fmt.Fprintln(out, n); err != nil {
			return err
		}
	}
	return nil
}

func collectionFlag(name string, args []string, stderr io.Writer) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	collection := fs.String("collection", "", "collection name")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *collection == "" {
		return "", fmt.Errorf("%s: --collection is required", name)
	}
	return *collection, nil
}

func describe(ctx context.Context, svc *wlts.Service, args []string, out, stderr io.Writer) error {
	name, err := collectionFlag("describe", args, stderr)
	if err != nil {
		return err
	}
	c, err := svc.DescribeCollection(ctx, name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func mappings(ctx context.Context, svc *wlts.Service, args []string, out, stderr io.Writer) error {
	name, err := collectionFlag("mappings", args, stderr)
	if err != nil {
		return err
	}
	refs, err := svc.AvailableMappings(ctx, name)
	if err != nil {
		return err
	}
	for _, r := range refs {
		if _, err := fmt.Fprintln(out, r.Identifier()); err != nil {
			return err
		}
	}
	return nil
}

func trajectory(ctx context.Context, svc *wlts.Service, args []string, out, stderr io.Writer) error {
	fs := flag.NewFlagSet("trajectory", flag.ContinueOnError)
	fs.SetOutput(stderr)
	lat := fs.String("latitude", "", "latitude in degrees, comma separated for several points")
	lon := fs.String("longitude", "", "longitude in degrees, comma separated for several points")
	collections := fs.String("collections", "", "comma separated collection names")
	start := fs.String("start-date", "", "start of the time interval")
	end := fs.String("end-date", "", "end of the time interval")
	geometry := fs.Bool("geometry", false, "include the geometry of each event")
	target := fs.String("target-system", "", "harmonize classes into this classification system")
	language := fs.String("language", "", "label language")
	format := fs.String("format", "table", "output format: table, csv, json or geojson")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch *format {
	case "table", "csv", "json", "geojson":
	default:
		return fmt.Errorf("unknown format %q (table, csv, json, geojson)", *format)
	}

	coords, err := wlts.ParseCoordinates(*lat, *lon)
	if err != nil {
		return err
	}
	opts := wlts.QueryOptions{
		Collections:  wlts.SplitList(*collections),
		StartDate:    *start,
		EndDate:      *end,
		Geometry:     *geometry || *format == "geojson",
		TargetSystem: *target,
		Language:     *language,
	}

	_, _ = fmt.Fprintln(stderr, "Processing trajectory request...")
	res, err := svc.Query(ctx, coords, opts)
	if err != nil {
		return err
	}
	return render(out, res, *format)
}

func render(out io.Writer, res wlts.Result, format string) error {
	switch format {
	case "table":
		return res.Table().WriteText(out)
	case "csv":
		return res.Table().WriteCSV(out)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "geojson":
		gt, err := res.GeoTable()
		if err != nil {
			return err
		}
		return json.NewEncoder(out).Encode(gt.FeatureCollection())
	default:
		return fmt.Errorf("unknown format %q (table, csv, json, geojson)", format)
	}
}
