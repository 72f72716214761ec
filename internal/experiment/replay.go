package experiment

import (
	"errors"
	"fmt"

	pslog "tiledswarm.ai/internal/persistence/log"
	"tiledswarm.ai/internal/persistence/snapshot"
	"tiledswarm.ai/internal/protocol"
	"tiledswarm.ai/internal/sim/episode"
)

// ReplayStats is what a replay checked.
type ReplayStats struct {
	StartTick uint64
	EndTick   uint64
	Checked   uint64
}

// Resume rebuilds the episode from its newest snapshot at or before tick
// (0: tick-0 snapshot).
func Resume(episodeDir string, tick uint64) (*episode.World, string, error) {
	ents, err := snapshot.List(episodeDir)
	if err != nil {
		return nil, "", err
	}
	if len(ents) == 0 {
		return nil, "", fmt.Errorf("no snapshots under %s", episodeDir)
	}
	path := ents[0].Path
	if tick > 0 {
		e, ok := snapshot.Latest(episodeDir, tick)
		if !ok {
			return nil, "", fmt.Errorf("no snapshot at or before tick %d", tick)
		}
		path = e.Path
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return nil, "", err
	}
	w, err := episode.FromSnapshot(snap)
	if err != nil {
		return nil, "", err
	}
	return w, path, nil
}

// Replay re-steps w with the recorded acts of episodeDir and compares every
// digest from verifyFrom on. A zero toTick replays to the end of the log.
func Replay(w *episode.World, episodeDir string, verifyFrom, toTick uint64) (ReplayStats, error) {
	st := ReplayStats{StartTick: w.CurrentTick()}
	if verifyFrom < st.StartTick {
		verifyFrom = st.StartTick
	}
	err := pslog.ReadAllTicks(episodeDir, func(entry episode.TickLogEntry) error {
		if entry.Tick < st.StartTick {
			return nil
		}
		if toTick != 0 && entry.Tick > toTick {
			return pslog.ErrStop
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
		}
		acts := make([]protocol.ActMsg, 0, len(entry.Actions))
		for _, ra := range entry.Actions {
			acts = append(acts, ra.Act)
		}
		got, err := w.StepOnce(acts)
		if err != nil {
			return fmt.Errorf("tick %d: %w", entry.Tick, err)
		}
		if entry.Tick >= verifyFrom {
			st.Checked++
			if got.Digest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", entry.Tick, got.Digest, entry.Digest)
			}
			if len(got.Rejected) != len(entry.Rejected) {
				return fmt.Errorf("rejections differ at tick %d: got=%d want=%d", entry.Tick, len(got.Rejected), len(entry.Rejected))
			}
		}
		return nil
	})
	st.EndTick = w.CurrentTick()
	if errors.Is(err, pslog.ErrStop) {
		err = nil
	}
	return st, err
}
