package episode

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"tiledswarm.ai/internal/protocol"
	"tiledswarm.ai/internal/sim/grid"
	"tiledswarm.ai/internal/sim/ids"
	"tiledswarm.ai/internal/sim/swarm"
	"tiledswarm.ai/internal/sim/tuning"
)

var (
	ErrUnknownAgent = errors.New("unknown agent")
	ErrEpisodeDone  = errors.New("episode already terminated")
)

// End reasons.
const (
	EndAllCommitted = "all_committed"
	EndMaxSteps     = "max_steps"
)

// pcgStream is the fixed PCG increment; the episode seed picks the state.
const pcgStream = 0x7f4a7c159e3779b9

type TickLogEntry struct {
	Tick     uint64           `json:"tick"`
	Actions  []RecordedAction `json:"actions,omitempty"`
	Rejected []RejectedAction `json:"rejected,omitempty"`
	Digest   string           `json:"digest"`
	Done     bool             `json:"done,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}

type RecordedAction struct {
	AgentID string          `json:"agent_id"`
	Act     protocol.ActMsg `json:"act"`
}

type RejectedAction struct {
	AgentID string `json:"agent_id"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// World is one episode: a grid, its agents and the random source that
// drives colouring, headings and noise. It is single-threaded.
type World struct {
	id  string
	cfg tuning.Experiment

	src *rand.PCG
	rng *rand.Rand

	grid  *grid.Grid
	swarm *swarm.Swarm

	correct   int
	malicious int

	tick   uint64
	done   bool
	reason string
}

// New builds episode id from cfg.
func New(id string, cfg tuning.Experiment) (*World, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("episode %s: %w", id, err)
	}
	w := newWorld(id, cfg)

	g, err := grid.New(cfg.GridParams(), w.rng)
	if err != nil {
		return nil, err
	}
	w.grid = g
	w.correct = int(math.RoundToEven(g.WhiteRatio()))
	w.malicious = (w.correct + 1) % 2

	heading, _ := tuning.ParseHeading(cfg.InitialHeading)
	acfg := cfg.AgentConfig()
	total := cfg.NumAgents + cfg.NumMaliciousAgents
	for i := 0; i < total; i++ {
		start := placement(i, cfg.Height)
		h := heading
		if cfg.RandomInitialHeading {
			h = grid.Direction(w.rng.IntN(4))
		}
		if i < cfg.NumAgents {
			_, err = w.swarm.AddSwarmAgent(g, start, h, acfg, w.rng)
		} else {
			_, err = w.swarm.AddMaliciousAgent(g, start, h, w.malicious)
		}
		if err != nil {
			return nil, fmt.Errorf("episode %s: %w", id, err)
		}
	}
	return w, nil
}

func newWorld(id string, cfg tuning.Experiment) *World {
	src := rand.NewPCG(uint64(cfg.Seed), pcgStream)
	return &World{
		id:    id,
		cfg:   cfg,
		src:   src,
		rng:   rand.New(src),
		swarm: swarm.New(),
	}
}

// placement fills the grid column by column from the top-left tile.
func placement(i, height int) grid.Coord {
	return grid.Coord{Row: i % height, Col: i / height}
}

func (w *World) ID() string                { return w.id }
func (w *World) Config() tuning.Experiment { return w.cfg }
func (w *World) Grid() *grid.Grid          { return w.grid }
func (w *World) Swarm() *swarm.Swarm       { return w.swarm }
func (w *World) CorrectOpinion() int       { return w.correct }
func (w *World) MaliciousOpinion() int     { return w.malicious }

// CurrentTick is the next tick to simulate.
func (w *World) CurrentTick() uint64 { return w.tick }

// Done reports whether the episode terminated and why.
func (w *World) Done() (bool, string) { return w.done, w.reason }

// AgentLabel is the wire id of arena member id.
func (w *World) AgentLabel(id grid.AgentID) string {
	if m, ok := w.swarm.Member(id); ok {
		if _, mal := m.(*swarm.MaliciousAgent); mal {
			return ids.AgentLabel(ids.KindMalicious, int(id))
		}
	}
	return ids.AgentLabel(ids.KindSwarm, int(id))
}

// Labels lists every agent's wire id in arena order.
func (w *World) Labels() []string {
	out := make([]string, 0, w.swarm.Len())
	for _, m := range w.swarm.Members() {
		out = append(out, w.AgentLabel(m.ID()))
	}
	return out
}

// Resolve maps a wire id back to its arena member.
func (w *World) Resolve(label string) (swarm.Member, error) {
	kind, idx, ok := ids.ParseAgentLabel(label)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, label)
	}
	m, ok := w.swarm.Member(grid.AgentID(idx))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, label)
	}
	_, mal := m.(*swarm.MaliciousAgent)
	if mal != (kind == ids.KindMalicious) {
		return nil, fmt.Errorf("%w: %q is not a %s agent", ErrUnknownAgent, label, kind)
	}
	return m, nil
}

// CanCommit reports whether a has sensed enough of the grid to be allowed
// a commitment decision.
func (w *World) CanCommit(a *swarm.SwarmAgent) bool {
	return a.ObservedRatio(w.grid.Size()) > w.cfg.CommitMinObservedRatio
}
