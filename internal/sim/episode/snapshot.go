package episode

import (
	"fmt"

	"tiledswarm.ai/internal/persistence/snapshot"
	"tiledswarm.ai/internal/sim/encoding"
	"tiledswarm.ai/internal/sim/grid"
	"tiledswarm.ai/internal/sim/ids"
	"tiledswarm.ai/internal/sim/swarm"
)

// ExportSnapshot captures the state between ticks. Header.Tick is the next
// tick to simulate.
func (w *World) ExportSnapshot() (snapshot.SnapshotV1, error) {
	rng, err := w.src.MarshalBinary()
	if err != nil {
		return snapshot.SnapshotV1{}, fmt.Errorf("rng state: %w", err)
	}
	snap := snapshot.SnapshotV1{
		Header:           snapshot.Header{Version: snapshot.Version, EpisodeID: w.id, Tick: w.tick},
		Config:           w.cfg,
		RNG:              rng,
		Width:            w.grid.Width(),
		Height:           w.grid.Height(),
		Colours:          encoding.EncodeColours(w.grid.Colours()),
		CorrectOpinion:   w.correct,
		MaliciousOpinion: w.malicious,
		Done:             w.done,
		EndReason:        w.reason,
	}
	for _, m := range w.swarm.Members() {
		var av snapshot.AgentV1
		switch a := m.(type) {
		case *swarm.SwarmAgent:
			st := a.State()
			av = snapshot.AgentV1{
				Kind:          ids.KindSwarm,
				Sensing:       st.Sensing,
				Observed:      st.Observed,
				WhiteObserved: st.WhiteObserved,
				Collective:    st.Collective,
				Committed:     st.Committed,
				Weights:       st.Weights,
			}
			av.Placed, av.Cell, av.Heading, av.Visited = st.Placed, coordPair(st.Cell), int(st.Heading), coordPairs(st.Visited)
		case *swarm.MaliciousAgent:
			cell, placed := a.CurrentCell()
			av = snapshot.AgentV1{
				Kind:    ids.KindMalicious,
				Placed:  placed,
				Cell:    coordPair(cell),
				Heading: int(a.Heading()),
				Visited: coordPairs(a.VisitedCells()),
				Opinion: a.MaliciousOpinion(),
			}
		}
		av.ID = int(m.ID())
		snap.Agents = append(snap.Agents, av)
	}
	return snap, nil
}

// FromSnapshot rebuilds a world that continues exactly where s was taken.
func FromSnapshot(s snapshot.SnapshotV1) (*World, error) {
	if s.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	cfg := s.Config
	if cfg.Width != s.Width || cfg.Height != s.Height {
		return nil, fmt.Errorf("snapshot grid mismatch: cfg=%dx%d snap=%dx%d", cfg.Width, cfg.Height, s.Width, s.Height)
	}
	w := newWorld(s.Header.EpisodeID, cfg)
	if err := w.src.UnmarshalBinary(s.RNG); err != nil {
		return nil, fmt.Errorf("rng state: %w", err)
	}
	colours, err := encoding.DecodeColours(s.Colours, s.Width*s.Height)
	if err != nil {
		return nil, fmt.Errorf("colours: %w", err)
	}
	g, err := grid.Restore(s.Width, s.Height, colours)
	if err != nil {
		return nil, err
	}
	w.grid = g
	w.correct, w.malicious = s.CorrectOpinion, s.MaliciousOpinion
	w.tick, w.done, w.reason = s.Header.Tick, s.Done, s.EndReason

	acfg := cfg.AgentConfig()
	for _, av := range s.Agents {
		id := grid.AgentID(av.ID)
		var m swarm.Member
		switch av.Kind {
		case ids.KindSwarm:
			m, err = swarm.RestoreSwarmAgent(id, acfg, w.rng, g, swarm.State{
				Cell:          pairCoord(av.Cell),
				Placed:        av.Placed,
				Heading:       grid.Direction(av.Heading),
				Visited:       pairCoords(av.Visited),
				Sensing:       av.Sensing,
				Observed:      av.Observed,
				WhiteObserved: av.WhiteObserved,
				Collective:    av.Collective,
				Committed:     av.Committed,
				Weights:       av.Weights,
			})
		case ids.KindMalicious:
			m, err = swarm.RestoreMaliciousAgent(id, av.Opinion, g, pairCoord(av.Cell), av.Placed, grid.Direction(av.Heading), pairCoords(av.Visited))
		default:
			return nil, fmt.Errorf("agent %d: unknown kind %q", av.ID, av.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("agent %d: %w", av.ID, err)
		}
		if err := w.swarm.Adopt(m); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func coordPair(c grid.Coord) [2]int { return [2]int{c.Row, c.Col} }

func pairCoord(p [2]int) grid.Coord { return grid.Coord{Row: p[0], Col: p[1]} }

func coordPairs(cs []grid.Coord) [][2]int {
	out := make([][2]int, 0, len(cs))
	for _, c := range cs {
		out = append(out, coordPair(c))
	}
	return out
}

func pairCoords(ps [][2]int) []grid.Coord {
	out := make([]grid.Coord, 0, len(ps))
	for _, p := range ps {
		out = append(out, pairCoord(p))
	}
	return out
}
