package policy

import (
	"fmt"

	"tiledswarm.ai/internal/protocol"
	"tiledswarm.ai/internal/sim/ids"
	"tiledswarm.ai/internal/sim/swarm"
	"tiledswarm.ai/internal/sim/tuning"
)

// Navigation styles.
const (
	NavWallFollow = "wallfollow"
	NavRandom     = "random"
)

// Factory builds the controller for the agent that produced obs.
type Factory func(obs protocol.ObsMsg) (Controller, error)

// NewFactory returns controllers for cfg's episode. Every agent gets its own
// random source derived from the episode seed and its arena index.
func NewFactory(nav string, cfg tuning.Experiment) (Factory, error) {
	switch nav {
	case NavWallFollow, NavRandom:
	default:
		return nil, fmt.Errorf("unknown navigation policy %q", nav)
	}
	return func(obs protocol.ObsMsg) (Controller, error) {
		_, idx, ok := ids.ParseAgentLabel(obs.AgentID)
		if !ok {
			return nil, fmt.Errorf("bad agent id %q", obs.AgentID)
		}
		rng := NewRand(cfg.Seed, idx)
		c := Composite{}
		if nav == NavRandom {
			c.Nav = RandomWalk{Rng: rng}
		} else {
			c.Nav = WallFollower{Rng: rng}
		}
		if obs.Role == protocol.RoleMalicious {
			return c, nil
		}
		c.Sense = SenseSchedule{P: cfg.SenseProbability, Rng: rng}
		c.Commit = ThresholdCommit{Low: cfg.CommitThresholdLow, High: cfg.CommitThresholdHigh}
		if swarm.WeightingMethod(cfg.OpinionWeightingMethod) == swarm.WeightingList {
			c.Weights = AgreementWeights{Max: cfg.MaxNewOpinionWeighting}
		}
		return c, nil
	}, nil
}
