package episode

import (
	"tiledswarm.ai/internal/protocol"
	"tiledswarm.ai/internal/sim/grid"
	"tiledswarm.ai/internal/sim/swarm"
)

// Observe builds the OBS for arena member id at the current tick.
func (w *World) Observe(id grid.AgentID) (protocol.ObsMsg, error) {
	m, ok := w.swarm.Member(id)
	if !ok {
		return protocol.ObsMsg{}, ErrUnknownAgent
	}
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick,
		AgentID:         w.AgentLabel(id),
	}
	switch a := m.(type) {
	case *swarm.MaliciousAgent:
		obs.Role = protocol.RoleMalicious
		obs.Navigation = a.Perceive(w.grid).Pair()
		obs.FrontBlocked = a.FrontBlocked(w.grid)
		obs.Heading = int(a.Heading())
	case *swarm.SwarmAgent:
		obs.Role = protocol.RoleSwarm
		obs.Navigation = a.Perceive(w.grid).Vector()
		obs.FrontBlocked = a.FrontBlocked(w.grid)
		obs.Heading = int(a.Heading())
		w.fillOpinionState(&obs, a)
	}
	return obs, nil
}

func (w *World) fillOpinionState(obs *protocol.ObsMsg, a *swarm.SwarmAgent) {
	white := float64(a.NumWhiteCellsObserved())
	seen := float64(a.NumCellsObserved())
	collective := a.CollectiveOpinion()

	obs.Sensing = a.Sensing()
	obs.Committed = a.Committed()
	obs.CanCommit = !a.Committed() && w.CanCommit(a)
	obs.ObservedRatio = min(a.ObservedRatio(w.grid.Size()), 1)
	obs.SenseState = [2]float64{white, seen}
	obs.CommitState = [4]float64{white, seen, collective, float64(a.NumVisited())}
	ratio := 0.0
	if seen > 0 {
		ratio = white / seen
	}
	obs.WeightState = [2]float64{collective, ratio}
}

// ObserveAll returns one OBS per agent in arena order.
func (w *World) ObserveAll() []protocol.ObsMsg {
	out := make([]protocol.ObsMsg, 0, w.swarm.Len())
	for _, m := range w.swarm.Members() {
		obs, _ := w.Observe(m.ID())
		out = append(out, obs)
	}
	return out
}
