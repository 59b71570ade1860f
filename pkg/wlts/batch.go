package wlts

import (
	"context"
	"fmt"
	"sync"

	"github.com/mohammed-shakir/wlts-go/internal/core/observability"
	"github.com/mohammed-shakir/wlts-go/internal/core/transport"
)

// Trajectory retrieves the trajectory at a single point with exactly one request.
func (s *Service) Trajectory(ctx context.Context, p Point, o QueryOptions) (*Trajectory, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkLanguage(ctx, o.Language); err != nil {
		return nil, err
	}
	t, err := s.fetch(ctx, p, o)
	if err != nil {
		return nil, err
	}
	if o.TargetSystem == "" {
		return t, nil
	}
	h, err := newHarmonizer(s, s.mappings, o.TargetSystem)
	if err != nil {
		return nil, err
	}
	events, err := h.apply(ctx, t.events)
	if err != nil {
		return nil, err
	}
	return t.withEvents(events), nil
}

// Trajectories retrieves one trajectory per point. Results keep input order and
// every event carries the 1-based index of its point. The first failing point
// fails the whole call.
func (s *Service) Trajectories(ctx context.Context, points []Point, o QueryOptions) (*Trajectories, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: at least one point is required", ErrInvalidArgument)
	}
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("point %d: %w", i+1, err)
		}
	}
	if err := s.checkLanguage(ctx, o.Language); err != nil {
		return nil, err
	}
	observability.ObserveBatchSize(len(points))

	raw, err := s.fetchAll(ctx, points, o)
	if err != nil {
		return nil, err
	}

	var h *harmonizer
	if o.TargetSystem != "" {
		if h, err = newHarmonizer(s, s.mappings, o.TargetSystem); err != nil {
			return nil, err
		}
	}
	items := make([]*Trajectory, len(raw))
	for i, t := range raw {
		events := make([]Event, len(t.events))
		for j, e := range t.events {
			e.PointID = i + 1
			events[j] = e
		}
		if h != nil {
			if events, err = h.apply(ctx, events); err != nil {
				return nil, fmt.Errorf("point %d: %w", i+1, err)
			}
		}
		items[i] = t.withEvents(events)
	}
	return &Trajectories{items: items}, nil
}

// Query dispatches on the coordinate variant.
func (s *Service) Query(ctx context.Context, c Coordinates, o QueryOptions) (Result, error) {
	if len(c.points) == 0 {
		return nil, fmt.Errorf("%w: at least one point is required", ErrInvalidArgument)
	}
	if c.multi {
		return s.Trajectories(ctx, c.points, o)
	}
	return s.Trajectory(ctx, c.points[0], o)
}

// TJ takes loosely typed coordinates and options: scalars for one point, equally
// long slices for several. Every check runs before any trajectory request.
func (s *Service) TJ(ctx context.Context, lat, lon any, opts map[string]any) (Result, error) {
	o, err := ParseQueryOptions(opts)
	if err != nil {
		return nil, err
	}
	c, err := CoordinatesFrom(lat, lon)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, c, o)
}

func (s *Service) fetch(ctx context.Context, p Point, o QueryOptions) (*Trajectory, error) {
	var t Trajectory
	ep := transport.Endpoint(s.url, "trajectory")
	if err := s.tr.GetJSON(ctx, ep, "trajectory", BuildTrajectoryParams(p, o), &t); err != nil {
		return nil, fmt.Errorf("trajectory at %v: %w", p, err)
	}
	return &t, nil
}

// fetchAll runs the per-point requests on at most s.workers goroutines.
// Results land at their input index; the first error cancels the rest.
func (s *Service) fetchAll(ctx context.Context, points []Point, o QueryOptions) ([]*Trajectory, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]*Trajectory, len(points))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	n := min(s.workers, len(points))
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				t, err := s.fetch(ctx, points[i], o)
				if err != nil {
					once.Do(func() {
						firstErr = fmt.Errorf("point %d: %w", i+1, err)
						cancel()
					})
					continue
				}
				out[i] = t
			}
		}()
	}

feed:
	for i := range points {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	for i, t := range out {
		if t == nil {
			return nil, fmt.Errorf("point %d: %w: %w", i+1, ErrTransport, context.Cause(ctx))
		}
	}
	return out, nil
}
