package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"tiledswarm.ai/internal/experiment"
	"tiledswarm.ai/internal/persistence/snapshot"
	"tiledswarm.ai/internal/sim/episode"
)

func main() {
	var (
		episodeDir = flag.String("episode", "", "episode directory (snapshots/ and events/)")
		snapPath   = flag.String("snapshot", "", "path to .snap.zst (default: tick-0 snapshot of -episode)")
		resumeAt   = flag.Uint64("resume_tick", 0, "start from the newest snapshot at or before this tick (optional)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *episodeDir == "" && *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -episode or -snapshot")
		os.Exit(2)
	}

	var (
		w    *episode.World
		path string
		err  error
	)
	if *snapPath != "" {
		path = *snapPath
		snap, rerr := snapshot.ReadSnapshot(path)
		if rerr != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", rerr)
			os.Exit(1)
		}
		w, err = episode.FromSnapshot(snap)
		if *episodeDir == "" {
			// snapshots live in <episode>/snapshots/
			*episodeDir = filepath.Dir(filepath.Dir(path))
		}
	} else {
		w, path, err = experiment.Resume(*episodeDir, *resumeAt)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		os.Exit(1)
	}

	cfg := w.Config()
	fmt.Printf("snapshot %s episode=%s tick=%d seed=%d grid=%dx%d agents=%d malicious=%d\n",
		filepath.Base(path), w.ID(), w.CurrentTick(), cfg.Seed, cfg.Width, cfg.Height, cfg.NumAgents, cfg.NumMaliciousAgents)

	st, err := experiment.Replay(w, *episodeDir, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	done, reason := w.Done()
	fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d to tick=%d) done=%v reason=%s\n",
		st.Checked, st.StartTick, st.EndTick, done, reason)
}
