package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"tiledswarm.ai/internal/envconfig"
	"tiledswarm.ai/internal/experiment"
	"tiledswarm.ai/internal/persistence/indexdb"
	"tiledswarm.ai/internal/sim/tuning"
)

func main() {
	if err := envconfig.Load(os.Getenv("TILEDSWARM_ENV")); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(2)
	}

	var (
		configPath = flag.String("config", envconfig.GetDefault(envconfig.ConfigPath, ""), "experiment yaml (empty: defaults)")
		dataDir    = flag.String("data", envconfig.GetDefault(envconfig.DataDir, "./data"), "runtime data directory")
		runID      = flag.String("run", "", "run id (default: generated)")
		nav        = flag.String("nav", "wallfollow", "navigation policy: wallfollow|random")
		seed       = flag.Int64("seed", 0, "override experiment seed (unset keeps the config value)")
		episodes   = flag.Int("episodes", 0, "override episode count")
		parallel   = flag.Int("parallel", envconfig.GetInt(envconfig.Parallel, 0), "override parallel episodes")
		noRecord   = flag.Bool("no_record", false, "skip tick logs, snapshots and reports")
		archiveEnd = flag.Bool("archive", false, "copy terminal snapshots under <run>/archives/")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")
		jsonOut    = flag.Bool("json", false, "print the batch results as JSON")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[swarmsim] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := tuning.Load(*configPath)
	if err != nil {
		logger.Fatalf("load experiment: %v", err)
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	cfg = applyOverrides(cfg, set, *seed, *episodes, *parallel)

	id := *runID
	if id == "" {
		id = experiment.NewRunID()
	}
	runner := &experiment.Runner{
		RunID:   id,
		Nav:     *nav,
		Archive: *archiveEnd,
		Logger:  log.New(os.Stdout, "[runner] ", log.LstdFlags|log.Lmicroseconds),
	}
	if !*noRecord {
		runner.DataDir = *dataDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "swarm.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		runner.Index = idx
		if err := idx.RecordRun(ctx, indexdb.RunRow{RunID: id, StartedAt: time.Now(), ConfigDigest: cfg.Digest(), Config: cfg}); err != nil {
			logger.Printf("index run: %v", err)
		}
	}

	logger.Printf("run=%s episodes=%d parallel=%d grid=%dx%d agents=%d malicious=%d config=%s",
		id, cfg.Episodes, cfg.Parallel, cfg.Width, cfg.Height, cfg.NumAgents, cfg.NumMaliciousAgents, cfg.Digest()[:12])

	start := time.Now()
	results, runErr := runner.RunBatch(ctx, cfg)

	if idx != nil {
		st := idx.Stats()
		if st.DropTickTotal > 0 || st.DropSnapshotTotal > 0 {
			logger.Printf("index dropped ticks=%d snapshots=%d", st.DropTickTotal, st.DropSnapshotTotal)
		}
		if err := idx.Close(); err != nil {
			logger.Printf("close index: %v", err)
		}
	}
	if runErr != nil {
		logger.Printf("run failed: %v", runErr)
	}

	sum := experiment.Summarize(results)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(struct {
			RunID   string              `json:"run_id"`
			Summary experiment.Summary  `json:"summary"`
			Results []experiment.Result `json:"results"`
		}{id, sum, results})
	} else {
		printSummary(logger, sum, time.Since(start))
	}
	if runErr != nil {
		os.Exit(1)
	}
}

func printSummary(logger *log.Logger, s experiment.Summary, elapsed time.Duration) {
	ticks := uint64(s.MeanTicks * float64(s.Episodes))
	logger.Printf("%s episodes, %s ticks in %s", humanize.Comma(int64(s.Episodes)), humanize.Comma(int64(ticks)), elapsed.Round(time.Millisecond))
	for _, k := range s.ReasonKeys() {
		logger.Printf("  %-14s %s", k, humanize.Comma(int64(s.Reasons[k])))
	}
	logger.Printf("  mean ticks            %s", humanize.FormatFloat("#,###.##", s.MeanTicks))
	logger.Printf("  correct commitments   %.1f%%", 100*s.MeanCorrectRatio)
	logger.Printf("  broadcast accuracy    %.1f%%", 100*s.MeanAccuracy)
	logger.Printf("  cells per minute      %s", humanize.FormatFloat("#,###.##", s.MeanCellsPerMin))
	logger.Printf("  rejected actions      %s", humanize.Comma(int64(s.Rejected)))
}

// applyOverrides copies flag values into cfg. The seed is taken whenever
// -seed was given, zero included; episodes and parallel only when positive.
func applyOverrides(cfg tuning.Experiment, set map[string]bool, seed int64, episodes, parallel int) tuning.Experiment {
	if set["seed"] {
		cfg.Seed = seed
	}
	if episodes > 0 {
		cfg.Episodes = episodes
	}
	if parallel > 0 {
		cfg.Parallel = parallel
	}
	return cfg
}
