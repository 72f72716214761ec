package swarm

import (
	"fmt"

	"tiledswarm.ai/internal/sim/grid"
)

// MaliciousAgent moves like any agent but never senses and always
// broadcasts a fixed opinion.
type MaliciousAgent struct {
	Body
	opinion int
}

func NewMaliciousAgent(id grid.AgentID, opinion int) (*MaliciousAgent, error) {
	if opinion != 0 && opinion != 1 {
		return nil, fmt.Errorf("malicious opinion %d not in {0,1}", opinion)
	}
	return &MaliciousAgent{Body: newBody(id, nil), opinion: opinion}, nil
}

func (m *MaliciousAgent) MaliciousOpinion() int { return m.opinion }

func (m *MaliciousAgent) ReturnOpinion() (int, bool) { return m.opinion, true }

// RestoreMaliciousAgent rebuilds an agent and re-registers its occupancy on g.
func RestoreMaliciousAgent(id grid.AgentID, opinion int, g *grid.Grid, cell grid.Coord, placed bool, heading grid.Direction, visited []grid.Coord) (*MaliciousAgent, error) {
	m, err := NewMaliciousAgent(id, opinion)
	if err != nil {
		return nil, err
	}
	if err := m.restore(g, cell, placed, heading, visited); err != nil {
		return nil, err
	}
	return m, nil
}
