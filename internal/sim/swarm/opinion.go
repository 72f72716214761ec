package swarm

import (
	"errors"
	"math"

	"tiledswarm.ai/internal/sim/grid"
)

var ErrNoObservationsYet = errors.New("no cells observed yet")

// Directory resolves the opinion an agent currently broadcasts.
type Directory interface {
	OpinionOf(id grid.AgentID) (opinion int, ok bool)
}

// CalculateOpinion rounds the white share of observed cells, half to even.
func (a *SwarmAgent) CalculateOpinion() (int, error) {
	if a.observed == 0 {
		return 0, ErrNoObservationsYet
	}
	return int(math.RoundToEven(float64(a.whiteObserved) / float64(a.observed))), nil
}

// ReturnOpinion yields the private opinion while broadcasting. Sensing,
// committed and not yet observing agents report nothing.
func (a *SwarmAgent) ReturnOpinion() (int, bool) {
	if a.sensing || a.committed {
		return 0, false
	}
	o, err := a.CalculateOpinion()
	if err != nil {
		return 0, false
	}
	return o, true
}

// CommittedOpinion is the rounded collective opinion.
func (a *SwarmAgent) CommittedOpinion() int {
	return int(math.RoundToEven(a.collective))
}

// OpinionWeightFromEquation scales the max weighting by agreement with the
// current collective opinion.
func (a *SwarmAgent) OpinionWeightFromEquation(opinion int) float64 {
	return a.cfg.MaxNewOpinionWeighting * (1 - math.Abs(a.collective-float64(opinion)))
}

func (a *SwarmAgent) weightFor(opinion int) float64 {
	switch a.cfg.Weighting {
	case WeightingList:
		if opinion < 0 || opinion > 1 {
			return 0
		}
		return a.weights[opinion]
	case WeightingEquation:
		return a.OpinionWeightFromEquation(opinion)
	default:
		return a.cfg.MaxNewOpinionWeighting
	}
}

// UpdateCollectiveOpinion folds one received opinion into the running
// estimate. Committed agents keep theirs.
func (a *SwarmAgent) UpdateCollectiveOpinion(opinion int) {
	if a.committed {
		return
	}
	w := a.weightFor(opinion)
	a.collective = (1-w)*a.collective + w*float64(opinion)
}

// ReceiveLocalOpinions scans the clamped square of radius CommunicationRange
// row-major and folds in every broadcast opinion, each possibly flipped by
// communication noise. It returns the number of opinions applied.
func (a *SwarmAgent) ReceiveLocalOpinions(g *grid.Grid, dir Directory) int {
	if a.committed || !a.placed {
		return 0
	}
	n := 0
	for _, c := range g.Neighbourhood(a.cell, a.cfg.CommunicationRange) {
		t := g.At(c)
		if !t.Occupied() || t.Occupant() == a.id {
			continue
		}
		o, ok := dir.OpinionOf(t.Occupant())
		if !ok {
			continue
		}
		if a.flip(a.cfg.CommunicationNoise) {
			o = (o + 1) % 2
		}
		a.UpdateCollectiveOpinion(o)
		n++
	}
	return n
}

// DecideIfToCommit applies a commitment decision. Commitment is absorbing:
// it forces sensing off and later calls change nothing. It reports whether
// this call committed the agent.
func (a *SwarmAgent) DecideIfToCommit(commit bool) bool {
	if a.committed || !commit {
		return false
	}
	a.committed = true
	a.sensing = false
	return true
}
