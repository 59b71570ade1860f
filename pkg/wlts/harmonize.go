package wlts

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/wlts-go/internal/core/observability"
	"github.com/mohammed-shakir/wlts-go/pkg/lccs"
)

// MappingSource provides class mappings between classification systems.
// *lccs.Client satisfies it.
type MappingSource interface {
	Mappings(ctx context.Context, source, target string) ([]lccs.Mapping, error)
}

var _ MappingSource = (*lccs.Client)(nil)

const harmonizeMemoSize = 64

// harmonizer rewrites class labels into a target system. Lookups are memoized
// for the lifetime of one query only.
type harmonizer struct {
	svc    *Service
	source MappingSource
	target string

	systems *lru.Cache[string, string]
	tables  *lru.Cache[string, map[string]string]
}

func newHarmonizer(svc *Service, source MappingSource, target string) (*harmonizer, error) {
	systems, err := lru.New[string, string](harmonizeMemoSize)
	if err != nil {
		return nil, fmt.Errorf("harmonize: %w", err)
	}
	tables, err := lru.New[string, map[string]string](harmonizeMemoSize)
	if err != nil {
		return nil, fmt.Errorf("harmonize: %w", err)
	}
	return &harmonizer{svc: svc, source: source, target: target, systems: systems, tables: tables}, nil
}

// apply returns a copy of events with labels rewritten. Each label is matched
// against the original value only, so the first matching mapping wins and
// rewrites never chain. Labels without a mapping pass through.
func (h *harmonizer) apply(ctx context.Context, events []Event) ([]Event, error) {
	out := make([]Event, len(events))
	copy(out, events)

	var order []string
	seen := map[string]bool{}
	for _, e := range events {
		if !seen[e.Collection] {
			seen[e.Collection] = true
			order = append(order, e.Collection)
		}
	}

	var mapped, unmatched int
	for _, name := range order {
		table, identity, err := h.tableFor(ctx, name)
		if err != nil {
			return nil, err
		}
		if identity {
			continue
		}
		for i, e := range events {
			if e.Collection != name {
				continue
			}
			if to, ok := table[e.Class]; ok {
				out[i].Class = to
				mapped++
			} else {
				unmatched++
			}
		}
	}
	observability.AddHarmonizedEvents("mapped", mapped)
	observability.AddHarmonizedEvents("unmatched", unmatched)
	return out, nil
}

// tableFor resolves the collection's classification system and the label
// table to the target. identity is true when no rewrite is needed.
func (h *harmonizer) tableFor(ctx context.Context, collection string) (map[string]string, bool, error) {
	system, ok := h.systems.Get(collection)
	if !ok {
		c, err := h.svc.DescribeCollection(ctx, collection)
		if err != nil {
			return nil, false, fmt.Errorf("harmonize %s: %w", collection, err)
		}
		system = c.ClassificationSystem.Identifier()
		if system == "" {
			return nil, false, fmt.Errorf("%w: collection %q declares no classification system", ErrInvalidResponse, collection)
		}
		h.systems.Add(collection, system)
	}
	if system == h.target {
		return nil, true, nil
	}
	if table, ok := h.tables.Get(system); ok {
		return table, false, nil
	}

	ms, err := h.source.Mappings(ctx, system, h.target)
	if err != nil {
		return nil, false, fmt.Errorf("harmonize %s: %w", collection, err)
	}
	table := make(map[string]string, len(ms))
	for _, m := range ms {
		if _, dup := table[m.SourceClass.Name]; !dup {
			table[m.SourceClass.Name] = m.TargetClass.Name
		}
	}
	h.tables.Add(system, table)
	return table, false, nil
}
