package swarm

import (
	"errors"
	"fmt"

	"tiledswarm.ai/internal/sim/grid"
)

var ErrNoiseWithoutRand = errors.New("noise configured without a random source")

// Rand is the noise source shared by the agents of one episode.
type Rand interface {
	Float64() float64
}

type WeightingMethod string

const (
	WeightingFixed    WeightingMethod = "fixed"
	WeightingList     WeightingMethod = "list_of_weights"
	WeightingEquation WeightingMethod = "equation_based"
)

func (m WeightingMethod) Valid() bool {
	switch m {
	case WeightingFixed, WeightingList, WeightingEquation:
		return true
	}
	return false
}

type Config struct {
	CommunicationRange     int
	SensingNoise           float64
	CommunicationNoise     float64
	MaxNewOpinionWeighting float64
	Weighting              WeightingMethod
}

const (
	DefaultCommunicationRange     = 1
	DefaultMaxNewOpinionWeighting = 0.1
	InitialCollectiveOpinion      = 0.5
)

func DefaultConfig() Config {
	return Config{
		CommunicationRange:     DefaultCommunicationRange,
		MaxNewOpinionWeighting: DefaultMaxNewOpinionWeighting,
		Weighting:              WeightingFixed,
	}
}

func (c Config) Validate() error {
	if c.CommunicationRange < 0 {
		return fmt.Errorf("communication range %d is negative", c.CommunicationRange)
	}
	if c.SensingNoise < 0 || c.SensingNoise > 1 {
		return fmt.Errorf("sensing noise %v outside [0,1]", c.SensingNoise)
	}
	if c.CommunicationNoise < 0 || c.CommunicationNoise > 1 {
		return fmt.Errorf("communication noise %v outside [0,1]", c.CommunicationNoise)
	}
	if c.MaxNewOpinionWeighting < 0 || c.MaxNewOpinionWeighting > 1 {
		return fmt.Errorf("max new opinion weighting %v outside [0,1]", c.MaxNewOpinionWeighting)
	}
	if !c.Weighting.Valid() {
		return fmt.Errorf("unknown opinion weighting method %q", c.Weighting)
	}
	return nil
}

// SwarmAgent is a sensing, broadcasting and committing member of the swarm.
type SwarmAgent struct {
	Body

	cfg Config
	rng Rand

	sensing       bool
	observed      int
	whiteObserved int
	collective    float64
	committed     bool
	weights       [2]float64
}

// NewSwarmAgent returns an unplaced agent that starts in sensing mode.
// rng may be nil when both noise levels are zero.
func NewSwarmAgent(id grid.AgentID, cfg Config, rng Rand) *SwarmAgent {
	a := &SwarmAgent{
		cfg:        cfg,
		rng:        rng,
		sensing:    true,
		collective: InitialCollectiveOpinion,
		weights:    [2]float64{cfg.MaxNewOpinionWeighting, cfg.MaxNewOpinionWeighting},
	}
	a.Body = newBody(id, a)
	return a
}

func (a *SwarmAgent) Config() Config { return a.cfg }

func (a *SwarmAgent) observe(c grid.Colour) {
	if !a.sensing {
		return
	}
	a.observed++
	if a.flip(a.cfg.SensingNoise) {
		c = c.Flip()
	}
	if c == grid.White {
		a.whiteObserved++
	}
}

func (a *SwarmAgent) flip(p float64) bool {
	return p > 0 && a.rng != nil && a.rng.Float64() < p
}

func (a *SwarmAgent) Sensing() bool              { return a.sensing }
func (a *SwarmAgent) Committed() bool            { return a.committed }
func (a *SwarmAgent) NumCellsObserved() int      { return a.observed }
func (a *SwarmAgent) NumWhiteCellsObserved() int { return a.whiteObserved }
func (a *SwarmAgent) CollectiveOpinion() float64 { return a.collective }
func (a *SwarmAgent) OpinionWeights() [2]float64 { return a.weights }

// SetSensing switches between sensing and broadcasting. Committed agents
// ignore it.
func (a *SwarmAgent) SetSensing(sensing bool) {
	if a.committed {
		return
	}
	a.sensing = sensing
}

// SetOpinionWeights replaces the per-opinion weights, clamped to [0,1].
func (a *SwarmAgent) SetOpinionWeights(w [2]float64) {
	for i := range w {
		a.weights[i] = clamp01(w[i])
	}
}

// ObservedRatio is the share of the environment's cells this agent has sensed.
func (a *SwarmAgent) ObservedRatio(gridSize int) float64 {
	if gridSize <= 0 {
		return 0
	}
	return float64(a.observed) / float64(gridSize)
}

// State is the complete mutable state of a swarm agent.
type State struct {
	Cell          grid.Coord
	Placed        bool
	Heading       grid.Direction
	Visited       []grid.Coord
	Sensing       bool
	Observed      int
	WhiteObserved int
	Collective    float64
	Committed     bool
	Weights       [2]float64
}

func (a *SwarmAgent) State() State {
	return State{
		Cell:          a.cell,
		Placed:        a.placed,
		Heading:       a.heading,
		Visited:       a.VisitedCells(),
		Sensing:       a.sensing,
		Observed:      a.observed,
		WhiteObserved: a.whiteObserved,
		Collective:    a.collective,
		Committed:     a.committed,
		Weights:       a.weights,
	}
}

// RestoreSwarmAgent rebuilds an agent from st and re-registers its occupancy on g.
// No sensing happens during restore.
func RestoreSwarmAgent(id grid.AgentID, cfg Config, rng Rand, g *grid.Grid, st State) (*SwarmAgent, error) {
	if err := checkRand(cfg, rng); err != nil {
		return nil, err
	}
	a := NewSwarmAgent(id, cfg, rng)
	if err := a.restore(g, st.Cell, st.Placed, st.Heading, st.Visited); err != nil {
		return nil, err
	}
	a.sensing = st.Sensing
	a.observed = st.Observed
	a.whiteObserved = st.WhiteObserved
	a.collective = st.Collective
	a.committed = st.Committed
	a.weights = st.Weights
	return a, nil
}

func checkRand(cfg Config, rng Rand) error {
	if rng == nil && (cfg.SensingNoise > 0 || cfg.CommunicationNoise > 0) {
		return fmt.Errorf("%w: sensing_noise=%v communication_noise=%v", ErrNoiseWithoutRand, cfg.SensingNoise, cfg.CommunicationNoise)
	}
	return nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
