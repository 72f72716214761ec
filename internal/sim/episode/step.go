package episode

import (
	"fmt"
	"math"

	"tiledswarm.ai/internal/protocol"
	"tiledswarm.ai/internal/sim/grid"
	"tiledswarm.ai/internal/sim/swarm"
)

// StepOnce applies one tick: malicious agents navigate first, then every
// swarm agent navigates. Swarm agents past the observation gate also decide
// (commit, sense, weights) and, unless committed, take in their neighbours'
// opinions. Agents without an ACT stay idle. The returned entry is what
// replay needs to reproduce the tick.
func (w *World) StepOnce(acts []protocol.ActMsg) (TickLogEntry, error) {
	if w.done {
		return TickLogEntry{}, ErrEpisodeDone
	}
	nowTick := w.tick
	entry := TickLogEntry{Tick: nowTick}

	byAgent := make(map[grid.AgentID]protocol.ActMsg, len(acts))
	for _, act := range acts {
		entry.Actions = append(entry.Actions, RecordedAction{AgentID: act.AgentID, Act: act})
		m, err := w.Resolve(act.AgentID)
		if err != nil {
			entry.reject(act.AgentID, protocol.ErrUnknownAgent, err.Error())
			continue
		}
		// Staleness check: accept only [now-2, now].
		if act.Tick+2 < nowTick || act.Tick > nowTick {
			entry.reject(act.AgentID, protocol.ErrStale, "act tick out of range")
			continue
		}
		if _, dup := byAgent[m.ID()]; dup {
			entry.reject(act.AgentID, protocol.ErrProtoBadRequest, "duplicate act")
			continue
		}
		byAgent[m.ID()] = act
	}

	for _, m := range w.swarm.Malicious() {
		act, ok := byAgent[m.ID()]
		if !ok {
			continue
		}
		if act.Sense != nil || act.Commit || act.Weights != nil {
			entry.reject(act.AgentID, protocol.ErrNotAllowed, "malicious agents only navigate")
		}
		w.navigate(&entry, &m.Body, act)
	}

	for _, a := range w.swarm.Agents() {
		// Agents below the observation gate only navigate.
		gated := !w.CanCommit(a)
		act, ok := byAgent[a.ID()]
		if ok {
			w.decide(&entry, a, act, gated)
			w.navigate(&entry, &a.Body, act)
		}
		if !gated && !a.Committed() {
			a.ReceiveLocalOpinions(w.grid, w.swarm)
		}
	}

	w.tick++
	switch {
	case w.swarm.AllCommitted():
		w.done, w.reason = true, EndAllCommitted
	case w.tick >= uint64(w.cfg.MaxSteps):
		w.done, w.reason = true, EndMaxSteps
	}
	entry.Done, entry.Reason = w.done, w.reason
	entry.Digest = w.StateDigest()
	return entry, nil
}

func (w *World) decide(entry *TickLogEntry, a *swarm.SwarmAgent, act protocol.ActMsg, gated bool) {
	hasDecision := act.Sense != nil || act.Commit || act.Weights != nil
	if !hasDecision {
		return
	}
	if a.Committed() {
		entry.reject(act.AgentID, protocol.ErrCommitted, "agent already committed")
		return
	}
	if gated {
		if act.Commit {
			entry.reject(act.AgentID, protocol.ErrCommitEarly, fmt.Sprintf("observed ratio %.4f <= %.4f", a.ObservedRatio(w.grid.Size()), w.cfg.CommitMinObservedRatio))
		} else {
			entry.reject(act.AgentID, protocol.ErrNotAllowed, "decisions open once enough cells are observed")
		}
		return
	}
	// A rejected decision set leaves the agent untouched.
	if act.Weights != nil && !validWeights(*act.Weights) {
		entry.reject(act.AgentID, protocol.ErrBadWeights, "weights must be finite and in [0,1]")
		return
	}

	if act.Commit {
		a.DecideIfToCommit(true)
	}
	if act.Sense != nil {
		a.SetSensing(*act.Sense)
	}
	if act.Weights != nil {
		a.SetOpinionWeights(*act.Weights)
	}
}

func (w *World) navigate(entry *TickLogEntry, b *swarm.Body, act protocol.ActMsg) {
	if act.Move == nil {
		return
	}
	action, err := swarm.ParseAction(*act.Move)
	if err != nil {
		entry.reject(act.AgentID, protocol.ErrBadAction, err.Error())
		return
	}
	b.Apply(w.grid, action)
}

func validWeights(ws [2]float64) bool {
	for _, x := range ws {
		if math.IsNaN(x) || x < 0 || x > 1 {
			return false
		}
	}
	return true
}

func (e *TickLogEntry) reject(agentID, code, msg string) {
	e.Rejected = append(e.Rejected, RejectedAction{AgentID: agentID, Code: code, Message: msg})
}
