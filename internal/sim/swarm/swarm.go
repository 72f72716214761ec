package swarm

import (
	"fmt"

	"tiledswarm.ai/internal/sim/grid"
)

// Member is any agent stored in the arena.
type Member interface {
	ID() grid.AgentID
	ReturnOpinion() (int, bool)
	Perceive(g *grid.Grid) Perception
}

// Swarm is the agent arena of one episode. AgentIDs are arena indices.
type Swarm struct {
	members   []Member
	agents    []*SwarmAgent
	malicious []*MaliciousAgent
}

func New() *Swarm { return &Swarm{} }

func (s *Swarm) nextID() grid.AgentID { return grid.AgentID(len(s.members)) }

// AddSwarmAgent creates, places and registers a swarm agent. rng may only
// be nil when both noise levels are zero.
func (s *Swarm) AddSwarmAgent(g *grid.Grid, start grid.Coord, heading grid.Direction, cfg Config, rng Rand) (*SwarmAgent, error) {
	if err := checkRand(cfg, rng); err != nil {
		return nil, err
	}
	a := NewSwarmAgent(s.nextID(), cfg, rng)
	if err := a.Place(g, start, heading); err != nil {
		return nil, fmt.Errorf("place swarm agent %d: %w", a.id, err)
	}
	s.members = append(s.members, a)
	s.agents = append(s.agents, a)
	return a, nil
}

// AddMaliciousAgent creates, places and registers a malicious agent.
func (s *Swarm) AddMaliciousAgent(g *grid.Grid, start grid.Coord, heading grid.Direction, opinion int) (*MaliciousAgent, error) {
	m, err := NewMaliciousAgent(s.nextID(), opinion)
	if err != nil {
		return nil, err
	}
	if err := m.Place(g, start, heading); err != nil {
		return nil, fmt.Errorf("place malicious agent %d: %w", m.id, err)
	}
	s.members = append(s.members, m)
	s.malicious = append(s.malicious, m)
	return m, nil
}

// Adopt registers an already restored member; its ID must be the next arena index.
func (s *Swarm) Adopt(m Member) error {
	if m.ID() != s.nextID() {
		return fmt.Errorf("adopt agent %d: next arena index is %d", m.ID(), s.nextID())
	}
	switch v := m.(type) {
	case *SwarmAgent:
		s.agents = append(s.agents, v)
	case *MaliciousAgent:
		s.malicious = append(s.malicious, v)
	default:
		return fmt.Errorf("adopt agent %d: unsupported member %T", m.ID(), m)
	}
	s.members = append(s.members, m)
	return nil
}

func (s *Swarm) Len() int                     { return len(s.members) }
func (s *Swarm) Members() []Member            { return s.members }
func (s *Swarm) Agents() []*SwarmAgent        { return s.agents }
func (s *Swarm) Malicious() []*MaliciousAgent { return s.malicious }

func (s *Swarm) Member(id grid.AgentID) (Member, bool) {
	if id < 0 || int(id) >= len(s.members) {
		return nil, false
	}
	return s.members[id], true
}

// OpinionOf implements Directory over the arena.
func (s *Swarm) OpinionOf(id grid.AgentID) (int, bool) {
	m, ok := s.Member(id)
	if !ok {
		return 0, false
	}
	return m.ReturnOpinion()
}

// AllCommitted reports whether every swarm agent has committed. An empty
// swarm never counts as committed.
func (s *Swarm) AllCommitted() bool {
	if len(s.agents) == 0 {
		return false
	}
	for _, a := range s.agents {
		if !a.committed {
			return false
		}
	}
	return true
}
