// Package policy holds deterministic stand-in controllers that map an OBS to
// an ACT. Each controller owns its random source so that recorded actions,
// not controller state, are what replay depends on.
package policy

import (
	"math"
	"math/rand/v2"

	"tiledswarm.ai/internal/protocol"
	"tiledswarm.ai/internal/sim/swarm"
)

type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Controller decides one agent's ACT from its OBS.
type Controller interface {
	Act(obs protocol.ObsMsg) protocol.ActMsg
}

type Navigator interface {
	Navigate(obs protocol.ObsMsg) swarm.Action
}

type SenseDecider interface {
	Sense(obs protocol.ObsMsg) bool
}

type CommitDecider interface {
	Commit(obs protocol.ObsMsg) bool
}

type Weigher interface {
	Weights(obs protocol.ObsMsg) [2]float64
}

// WallFollower moves forward while the way is free, turns away from the side
// wall at a corner and turns randomly at a single wall or an agent.
type WallFollower struct{ Rng Rand }

func (p WallFollower) Navigate(obs protocol.ObsMsg) swarm.Action {
	if !obs.FrontBlocked {
		return swarm.ActionForward
	}
	if n := len(obs.Navigation); n >= 2 && swarm.ObjectType(obs.Navigation[0]) == swarm.ObjectCorner {
		switch swarm.RelativePosition(obs.Navigation[n-1]) {
		case swarm.PosLeft:
			return swarm.ActionTurnRight
		case swarm.PosRight:
			return swarm.ActionTurnLeft
		}
	}
	return randomTurn(p.Rng)
}

// RandomWalk picks uniformly among the three navigation actions.
type RandomWalk struct{ Rng Rand }

func (p RandomWalk) Navigate(protocol.ObsMsg) swarm.Action {
	return swarm.Action(p.Rng.IntN(3))
}

func randomTurn(r Rand) swarm.Action {
	if r.IntN(2) == 0 {
		return swarm.ActionTurnLeft
	}
	return swarm.ActionTurnRight
}

// SenseSchedule keeps sensing with probability P each tick.
type SenseSchedule struct {
	P   float64
	Rng Rand
}

func (p SenseSchedule) Sense(protocol.ObsMsg) bool { return p.Rng.Float64() < p.P }

// ThresholdCommit commits once the collective opinion leaves [Low, High].
type ThresholdCommit struct{ Low, High float64 }

func (p ThresholdCommit) Commit(obs protocol.ObsMsg) bool {
	c := obs.CommitState[2]
	return c < p.Low || c > p.High
}

type FixedWeights struct{ W [2]float64 }

func (p FixedWeights) Weights(protocol.ObsMsg) [2]float64 { return p.W }

// AgreementWeights scales Max by how close each opinion is to the current
// collective opinion.
type AgreementWeights struct{ Max float64 }

func (p AgreementWeights) Weights(obs protocol.ObsMsg) [2]float64 {
	c := obs.WeightState[0]
	return [2]float64{p.Max * (1 - math.Abs(c)), p.Max * (1 - math.Abs(c-1))}
}

// Composite assembles an ACT from its parts. Nil parts are skipped. Decisions
// are only sent while the engine accepts them.
type Composite struct {
	Nav     Navigator
	Sense   SenseDecider
	Commit  CommitDecider
	Weights Weigher
}

func (c Composite) Act(obs protocol.ObsMsg) protocol.ActMsg {
	act := protocol.NewAct(obs.Tick, obs.AgentID)
	if c.Nav != nil {
		act.SetMove(int(c.Nav.Navigate(obs)))
	}
	if obs.Role != protocol.RoleSwarm || obs.Committed || !obs.CanCommit {
		return act
	}
	if c.Commit != nil && c.Commit.Commit(obs) {
		act.Commit = true
		return act
	}
	if c.Sense != nil {
		act.SetSense(c.Sense.Sense(obs))
	}
	if c.Weights != nil {
		act.SetWeights(c.Weights.Weights(obs))
	}
	return act
}

// NewRand derives a controller random source from a seed and agent index.
func NewRand(seed int64, agent int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(agent)+1))
}
