package stream

import (
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/tifye/kousaten/assert"
)

const probabilityRange = 100

// Simulator churns randomized viewer connects, disconnects, and
// duplicate-disconnect faults against a hub to shake out lifecycle
// bugs. Runs with equal seeds are identical.
type Simulator struct {
	logger *log.Logger
	seed1  uint64
	seed2  uint64

	// Chance out of 100 that a new viewer connects this step
	connectProbability uint
	// Chance out of 100 that an attached viewer disconnects this step
	disconnectProbability uint
	// Chance out of 100 that a disconnect is replayed for a viewer
	// that already left
	staleDisconnectProbability uint
	attached                   map[ID]struct{}
	departed                   map[ID]struct{}

	hub *Hub
	rnd *rand.Rand
}

func NewSimulator(logger *log.Logger, seed1, seed2 uint64) *Simulator {
	assert.AssertNotNil(logger)
	rnd := rand.New(rand.NewPCG(seed1, seed2))

	return &Simulator{
		logger: logger,
		seed1:  seed1,
		seed2:  seed2,

		connectProbability:         rnd.UintN(probabilityRange),
		disconnectProbability:      rnd.UintN(probabilityRange),
		staleDisconnectProbability: rnd.UintN(probabilityRange),
		attached:                   map[ID]struct{}{},
		departed:                   map[ID]struct{}{},

		hub: NewHub(logger),
		rnd: rnd,
	}
}

func (s *Simulator) Hub() *Hub {
	return s.hub
}

func (s *Simulator) Run(iterations int) {
	s.logger.Info("viewer churn started",
		"seed1", s.seed1, "seed2", s.seed2,
		"connectProbability", s.connectProbability,
		"disconnectProbability", s.disconnectProbability,
	)
	defer func() {
		s.logger.Info("viewer churn finished",
			"seed1", s.seed1, "seed2", s.seed2,
		)
	}()

	for range iterations {
		s.Step()
	}
}

func (s *Simulator) Step() {
	if s.chance(s.connectProbability) {
		s.connectViewer()
	}

	if s.chance(s.disconnectProbability) {
		s.disconnectViewer()

		if len(s.departed) > 0 && s.chance(s.staleDisconnectProbability) {
			s.staleDisconnectViewer()
		}
	}
}

func (s *Simulator) connectViewer() {
	id := s.hub.Connect(nil)
	s.logger.Debug("viewer connect", "id", id)
	s.attached[id] = struct{}{}
}

func (s *Simulator) disconnectViewer() {
	if len(s.attached) == 0 {
		return
	}

	id := s.pick(s.attached)
	s.logger.Debug("viewer disconnect", "id", id)
	_ = s.hub.Disconnect(id)

	delete(s.attached, id)
	s.departed[id] = struct{}{}
}

func (s *Simulator) staleDisconnectViewer() {
	assert.Assert(len(s.departed) > 0, "expected to have already departed viewers")

	id := s.pick(s.departed)
	s.logger.Debug("stale viewer disconnect", "id", id)
	_ = s.hub.Disconnect(id)
}

func (s *Simulator) pick(set map[ID]struct{}) ID {
	n := s.rnd.IntN(len(set))
	i := 0
	for id := range set {
		if i == n {
			return id
		}
		i++
	}
	panic("unreachable")
}

func (s *Simulator) chance(probability uint) bool {
	return s.rnd.UintN(probabilityRange) < probability
}
