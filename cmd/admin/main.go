package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"tiledswarm.ai/internal/envconfig"
	"tiledswarm.ai/internal/experiment"
	pslog "tiledswarm.ai/internal/persistence/log"
	"tiledswarm.ai/internal/persistence/snapshot"
	"tiledswarm.ai/internal/protocol"
	"tiledswarm.ai/internal/sim/episode"
)

func main() {
	if err := envconfig.Load(os.Getenv("TILEDSWARM_ENV")); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(2)
	}
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "ticks":
			ticksCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func defaultDataDir() string { return envconfig.GetDefault(envconfig.DataDir, "./data") }

// listCmd prints runs, or the episodes of one run.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", defaultDataDir(), "runtime data directory")
	runID := fs.String("run", "", "run id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "runs")
	if *runID != "" {
		base = filepath.Join(base, *runID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(base, e.Name())
		size, mod := dirUsage(p)
		fmt.Printf("%-40s %10s  %s\n", e.Name(), humanize.Bytes(uint64(size)), humanize.Time(mod))
	}
}

func dirUsage(dir string) (int64, time.Time) {
	var (
		size int64
		mod  time.Time
	)
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size += info.Size()
		if info.ModTime().After(mod) {
			mod = info.ModTime()
		}
		return nil
	})
	return size, mod
}

func episodeDirFlag(fs *flag.FlagSet) (dataDir, runID, episodeID, dir *string) {
	dataDir = fs.String("data", defaultDataDir(), "runtime data directory")
	runID = fs.String("run", "", "run id")
	episodeID = fs.String("episode", "", "episode id (<run>-epNNNN)")
	dir = fs.String("dir", "", "episode directory (overrides -data/-run/-episode)")
	return
}

func resolveEpisodeDir(dataDir, runID, episodeID, dir string) string {
	if d := strings.TrimSpace(dir); d != "" {
		return d
	}
	if strings.TrimSpace(episodeID) == "" {
		fmt.Fprintln(os.Stderr, "missing -episode or -dir")
		os.Exit(2)
	}
	if runID == "" {
		// Episode ids are <run>-epNNNN.
		if i := strings.LastIndex(episodeID, "-ep"); i > 0 {
			runID = episodeID[:i]
		}
	}
	return experiment.EpisodeDir(dataDir, runID, episodeID)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir, runID, episodeID, dir := episodeDirFlag(fs)
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	tick := fs.Uint64("tick", 0, "newest snapshot at or before tick (optional)")
	full := fs.Bool("json", false, "print the whole snapshot as JSON")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		epDir := resolveEpisodeDir(*dataDir, *runID, *episodeID, *dir)
		e, ok := snapshot.Latest(epDir, *tick)
		if !ok {
			fmt.Fprintln(os.Stderr, "no snapshot found under", epDir)
			os.Exit(2)
		}
		path = e.Path
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	if *full {
		printJSON(snap)
		return
	}
	fmt.Println(snap.Summary())

	w, err := episode.FromSnapshot(snap)
	if err != nil {
		fmt.Fprintln(os.Stderr, "restore:", err)
		os.Exit(1)
	}
	fmt.Printf("digest=%s correct=%d malicious=%d\n", w.StateDigest(), w.CorrectOpinion(), w.MaliciousOpinion())
	for _, obs := range w.ObserveAll() {
		if obs.Role != protocol.RoleSwarm {
			continue
		}
		fmt.Printf("  %-14s committed=%-5v observed=%5.1f%% collective=%.3f\n",
			obs.AgentID, obs.Committed, 100*obs.ObservedRatio, obs.WeightState[0])
	}
}

// ticksCmd prints the tick log of one episode.
func ticksCmd(args []string) {
	fs := flag.NewFlagSet("ticks", flag.ExitOnError)
	dataDir, runID, episodeID, dir := episodeDirFlag(fs)
	fromTick := fs.Uint64("from_tick", 0, "first tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	onlyRejected := fs.Bool("rejected", false, "only ticks with rejected actions")
	validate := fs.Bool("validate", false, "check every tick line against the tick schema first")
	_ = fs.Parse(args)

	epDir := resolveEpisodeDir(*dataDir, *runID, *episodeID, *dir)
	if *validate {
		ok, err := pslog.ValidateTicks(epDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "validate: %v (%s lines ok)\n", err, humanize.Comma(int64(ok)))
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "%s lines match the tick schema\n", humanize.Comma(int64(ok)))
	}
	codes := map[string]int{}
	var n uint64
	err := pslog.ReadAllTicks(epDir, func(e episode.TickLogEntry) error {
		if e.Tick < *fromTick {
			return nil
		}
		if *toTick != 0 && e.Tick > *toTick {
			return pslog.ErrStop
		}
		for _, r := range e.Rejected {
			codes[r.Code]++
		}
		if *onlyRejected && len(e.Rejected) == 0 {
			return nil
		}
		n++
		printJSON(struct {
			Tick     uint64                   `json:"tick"`
			Digest   string                   `json:"digest"`
			Actions  int                      `json:"actions"`
			Rejected []episode.RejectedAction `json:"rejected,omitempty"`
			Done     bool                     `json:"done,omitempty"`
			Reason   string                   `json:"reason,omitempty"`
		}{e.Tick, e.Digest, len(e.Actions), e.Rejected, e.Done, e.Reason})
		return nil
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read ticks:", err)
		os.Exit(1)
	}

	keys := make([]string, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(os.Stderr, "%s ticks\n", humanize.Comma(int64(n)))
	for _, k := range keys {
		fmt.Fprintf(os.Stderr, "  %-20s %s\n", k, humanize.Comma(int64(codes[k])))
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
