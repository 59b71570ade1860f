package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	WLTSURL        string
	LCCSURL        string
	AccessToken    string
	Headers        map[string]string
	HTTPTimeout    time.Duration
	BatchWorkers   int
	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string
}

func FromEnv() Config {
	workers := getint("BATCH_WORKERS", 4)
	if workers < 1 {
		workers = 1
	}

	timeout := getduration("HTTP_TIMEOUT", 30*time.Second)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		WLTSURL:        getenv("WLTS_URL", "https://data.inpe.br/bdc/wlts/v1"),
		LCCSURL:        getenv("LCCS_URL", ""),
		AccessToken:    getenv("WLTS_ACCESS_TOKEN", ""),
		Headers:        parseStringMap(getenv("WLTS_HEADERS", "")),
		HTTPTimeout:    timeout,
		BatchWorkers:   workers,
		MetricsEnabled: getbool("METRICS_ENABLED", false),
		MetricsAddr:    getenv("METRICS_ADDR", ":9090"),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "X-Api-Key=abc,X-Team=geo" into map
func parseStringMap(s string) map[string]string {
	out := map[string]string{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(kv[1])
	}
	return out
}
