package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"
	"github.com/tifye/kousaten/assert"
	"github.com/tifye/kousaten/sim"
	"github.com/tifye/kousaten/storage"
	"github.com/tifye/kousaten/stream"
)

const useDefaultCacheTime = -1

// Service owns the live model behind the HTTP surface. All access to
// the model goes through its lock; the simulation itself stays
// single-threaded.
type Service struct {
	logger *log.Logger

	mu         sync.Mutex
	model      *sim.Model
	build      func() (*sim.Model, error)
	generation int
	runID      string

	hub   *stream.Hub
	ticks *storage.TickStore

	// Static geometry never changes within a generation, so the JSON
	// payloads for roads, obstacles, and destinations are cached until
	// the next reset.
	cache *cache.Cache
}

func NewService(
	logger *log.Logger,
	build func() (*sim.Model, error),
	hub *stream.Hub,
	ticks *storage.TickStore,
) (*Service, error) {
	assert.AssertNotNil(logger)
	assert.AssertNotNil(build)
	assert.AssertNotNil(hub)

	model, err := build()
	if err != nil {
		return nil, fmt.Errorf("build model: %s", err)
	}

	return &Service{
		logger: logger,
		model:  model,
		build:  build,
		runID:  newRunID(),
		hub:    hub,
		ticks:  ticks,
		cache:  cache.New(30*time.Minute, 60*time.Minute),
	}, nil
}

func newRunID() string {
	return fmt.Sprintf("run-%d", time.Now().UnixNano())
}

// Reset rebuilds the model from scratch and starts a new run.
func (s *Service) Reset(build func() (*sim.Model, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if build != nil {
		s.build = build
	}

	model, err := s.build()
	if err != nil {
		return fmt.Errorf("build model: %s", err)
	}

	s.model = model
	s.generation++
	s.runID = newRunID()
	s.cache.Flush()

	s.logger.Info("model reset",
		"generation", s.generation,
		"runID", s.runID,
		"width", model.Width(),
		"height", model.Height(),
	)
	return nil
}

// tickFrame is the payload broadcast to stream viewers each tick.
type tickFrame struct {
	Tick    int             `json:"tick"`
	Running bool            `json:"running"`
	Cars    []sim.CarView   `json:"cars"`
	Lights  []sim.LightView `json:"lights"`
	Metrics sim.Metrics     `json:"metrics"`
}

// StepOnce advances the model one tick, broadcasts the frame to every
// viewer, and records the tick's metrics. It reports the new tick
// number and whether the run is still active.
func (s *Service) StepOnce(ctx context.Context) (int, bool, error) {
	s.mu.Lock()
	running := s.model.Step()
	frame := tickFrame{
		Tick:    s.model.Tick(),
		Running: running,
		Cars:    s.model.CarViews(),
		Lights:  s.model.LightViews(),
		Metrics: s.model.Metrics(),
	}
	runID := s.runID
	s.mu.Unlock()

	payload, err := json.Marshal(frame)
	if err != nil {
		return frame.Tick, running, fmt.Errorf("marshal tick frame: %s", err)
	}
	if err := s.hub.Broadcast("tick", payload, nil); err != nil {
		s.logger.Error("broadcast tick", "err", err)
	}

	if s.ticks != nil {
		row := storage.RowFromMetrics(runID, frame.Metrics)
		if err := s.ticks.Insert(ctx, row); err != nil {
			s.logger.Error("record tick", "tick", frame.Tick, "err", err)
		}
	}

	return frame.Tick, running, nil
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Running()
}

func (s *Service) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

func (s *Service) Metrics() sim.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Metrics()
}

func (s *Service) CarViews() []sim.CarView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.CarViews()
}

func (s *Service) LightViews() []sim.LightView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.LightViews()
}

var errNoTickStore = fmt.Errorf("tick history not configured")

// History returns the current run's most recent tick rows.
func (s *Service) History(ctx context.Context, limit uint) ([]storage.TickRow, error) {
	if s.ticks == nil {
		return nil, errNoTickStore
	}
	return s.ticks.Recent(ctx, s.RunID(), limit)
}

// RunSummaries aggregates every run recorded so far.
func (s *Service) RunSummaries(ctx context.Context) ([]storage.RunSummary, error) {
	if s.ticks == nil {
		return nil, errNoTickStore
	}
	return s.ticks.Summaries(ctx)
}

// staticViews fetches a cached static geometry projection, building it
// under the model lock on a cache miss. Keys are scoped to the current
// generation so a reset invalidates them wholesale.
func (s *Service) staticViews(kind string, build func(m *sim.Model) any) any {
	s.mu.Lock()
	key := fmt.Sprintf("%s-gen%d", kind, s.generation)
	if cached, ok := s.cache.Get(key); ok {
		s.mu.Unlock()
		return cached
	}
	views := build(s.model)
	s.mu.Unlock()

	s.cache.Set(key, views, useDefaultCacheTime)
	return views
}

func (s *Service) RoadViews() []sim.EntityView {
	return s.staticViews("roads", func(m *sim.Model) any {
		return m.RoadViews()
	}).([]sim.EntityView)
}

// rotatedView is a fixed entity with a facing hint for 3D clients:
// buildings turn to face the nearest traffic-bearing road.
type rotatedView struct {
	sim.EntityView
	Rotation int `json:"rotation"`
}

func (s *Service) ObstacleViews() []rotatedView {
	return s.staticViews("obstacles", func(m *sim.Model) any {
		views := m.ObstacleViews()
		out := make([]rotatedView, 0, len(views))
		for _, v := range views {
			out = append(out, rotatedView{
				EntityView: v,
				Rotation:   facingRotation(m, sim.Coord{X: v.X, Y: v.Y}),
			})
		}
		return out
	}).([]rotatedView)
}

func (s *Service) DestinationViews() []rotatedView {
	return s.staticViews("destinations", func(m *sim.Model) any {
		views := m.DestinationViews()
		out := make([]rotatedView, 0, len(views))
		for _, v := range views {
			// Destination models are authored facing away from the
			// camera; flip them relative to building rotation.
			rot := (facingRotation(m, sim.Coord{X: v.X, Y: v.Y}) + 180) % 360
			out = append(out, rotatedView{
				EntityView: v,
				Rotation:   rot,
			})
		}
		return out
	}).([]rotatedView)
}

// facingRotation picks the rotation that turns a building toward its
// nearest traffic-bearing road, checking south, north, east, then west
// so corner lots prefer a vertical-facing orientation.
func facingRotation(m *sim.Model, pos sim.Coord) int {
	checks := []struct {
		delta    sim.Coord
		rotation int
	}{
		{sim.Coord{X: 0, Y: -1}, 0},
		{sim.Coord{X: 0, Y: 1}, 180},
		{sim.Coord{X: 1, Y: 0}, 270},
		{sim.Coord{X: -1, Y: 0}, 90},
	}
	for _, check := range checks {
		neighbor := pos.Add(check.delta.X, check.delta.Y)
		if !m.Grid().InBounds(neighbor) {
			continue
		}
		if seg := m.Grid().RoadAt(neighbor); seg != nil && !seg.Decorative {
			return check.rotation
		}
	}
	return 0
}
