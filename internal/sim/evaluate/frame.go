// Package evaluate scores episodes from frames captured around each tick.
package evaluate

import (
	"tiledswarm.ai/internal/sim/swarm"
)

// TicksPerMinute converts ticks to the "minutes" the metrics report in.
const TicksPerMinute = 60

// View is the read-only episode surface a frame is captured from.
type View interface {
	CurrentTick() uint64
	CorrectOpinion() int
	Swarm() *swarm.Swarm
}

// AgentFrame is one swarm agent at a tick boundary.
type AgentFrame struct {
	Opinion    int
	HasOpinion bool
	Sensing    bool
	Committed  bool
	Collective float64
	Visited    int

	// Equation weights towards the correct and the incorrect opinion.
	WeightCorrect   float64
	WeightIncorrect float64
}

type Frame struct {
	Tick    uint64
	Correct int
	Agents  []AgentFrame
}

// Capture copies what the evaluators need out of v.
func Capture(v View) Frame {
	correct := v.CorrectOpinion()
	agents := v.Swarm().Agents()
	f := Frame{Tick: v.CurrentTick(), Correct: correct, Agents: make([]AgentFrame, len(agents))}
	for i, a := range agents {
		o, err := a.CalculateOpinion()
		f.Agents[i] = AgentFrame{
			Opinion:         o,
			HasOpinion:      err == nil,
			Sensing:         a.Sensing(),
			Committed:       a.Committed(),
			Collective:      a.CollectiveOpinion(),
			Visited:         a.NumVisited(),
			WeightCorrect:   a.OpinionWeightFromEquation(correct),
			WeightIncorrect: a.OpinionWeightFromEquation((correct + 1) % 2),
		}
	}
	return f
}

// Evaluator folds consecutive frames into a report section.
type Evaluator interface {
	Record(before, after Frame)
}
