// Package experiment drives batches of episodes with the built-in controllers
// and records them.
package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tiledswarm.ai/internal/persistence/archive"
	"tiledswarm.ai/internal/persistence/indexdb"
	pslog "tiledswarm.ai/internal/persistence/log"
	"tiledswarm.ai/internal/persistence/snapshot"
	"tiledswarm.ai/internal/protocol"
	"tiledswarm.ai/internal/sim/episode"
	"tiledswarm.ai/internal/sim/evaluate"
	"tiledswarm.ai/internal/sim/ids"
	"tiledswarm.ai/internal/sim/policy"
	"tiledswarm.ai/internal/sim/tuning"
)

// Recorder receives episode rows as they happen. *indexdb.SQLiteIndex
// implements it.
type Recorder interface {
	BeginEpisode(ctx context.Context, r indexdb.EpisodeRow) error
	WriteTick(episodeID string, entry episode.TickLogEntry) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	EndEpisode(ctx context.Context, episodeID string, endTick uint64, reason string, metrics any) error
}

// NewRunID is sortable by start time and unique across hosts.
func NewRunID() string {
	return time.Now().UTC().Format("20060102T150405") + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// EpisodeDir is where an episode's tick log, snapshots and report live.
func EpisodeDir(dataDir, runID, episodeID string) string {
	return filepath.Join(dataDir, "runs", runID, episodeID)
}

type Runner struct {
	// DataDir is the recording root; empty disables tick logs, snapshots
	// and reports.
	DataDir string
	RunID   string
	// Nav is a policy navigation style; empty means wall following.
	Nav string
	// Archive copies each terminal snapshot under <run>/archives/.
	Archive bool
	Index   Recorder
	Logger  *log.Logger
}

type Result struct {
	EpisodeID string          `json:"episode_id"`
	Seed      int64           `json:"seed"`
	Dir       string          `json:"dir,omitempty"`
	Ticks     uint64          `json:"ticks"`
	Reason    string          `json:"reason"`
	Rejected  int             `json:"rejected"`
	Digest    string          `json:"digest"`
	Report    evaluate.Report `json:"report"`
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

func (r *Runner) nav() string {
	if r.Nav == "" {
		return policy.NavWallFollow
	}
	return r.Nav
}

// RunEpisode plays one episode to termination. Cancellation is checked
// between steps; a cancelled episode keeps what it recorded so far.
func (r *Runner) RunEpisode(ctx context.Context, episodeID string, cfg tuning.Experiment) (res Result, err error) {
	w, err := episode.New(episodeID, cfg)
	if err != nil {
		return Result{}, err
	}
	cfg = w.Config()
	factory, err := policy.NewFactory(r.nav(), cfg)
	if err != nil {
		return Result{}, err
	}

	res = Result{EpisodeID: episodeID, Seed: cfg.Seed}
	var tl *pslog.TickLogger
	if r.DataDir != "" {
		res.Dir = EpisodeDir(r.DataDir, r.RunID, episodeID)
		tl = pslog.NewTickLogger(res.Dir)
		defer func() {
			if cerr := tl.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close tick log: %w", cerr)
			}
		}()
	}

	if r.Index != nil {
		if err := r.Index.BeginEpisode(ctx, indexdb.EpisodeRow{
			EpisodeID: episodeID,
			RunID:     r.RunID,
			Seed:      cfg.Seed,
			Width:     cfg.Width,
			Height:    cfg.Height,
			Agents:    cfg.NumAgents,
			Malicious: cfg.NumMaliciousAgents,
			Correct:   w.CorrectOpinion(),
			StartedAt: time.Now().UTC().Format(time.RFC3339Nano),
		}); err != nil {
			return res, fmt.Errorf("index begin: %w", err)
		}
	}
	r.logf("episode=%s seed=%d grid=%dx%d agents=%d malicious=%d correct=%d",
		episodeID, cfg.Seed, cfg.Width, cfg.Height, cfg.NumAgents, cfg.NumMaliciousAgents, w.CorrectOpinion())

	obs := w.ObserveAll()
	ctrls := make([]policy.Controller, len(obs))
	for i, o := range obs {
		c, err := factory(o)
		if err != nil {
			return res, err
		}
		ctrls[i] = c
	}

	lastSnap := uint64(0)
	var (
		lastPath string
		last     snapshot.SnapshotV1
	)
	writeSnap := func() error {
		if res.Dir == "" {
			return nil
		}
		s, err := w.ExportSnapshot()
		if err != nil {
			return err
		}
		path := snapshot.PathFor(res.Dir, s.Header.Tick)
		if err := snapshot.WriteSnapshot(path, s); err != nil {
			return fmt.Errorf("snapshot write: %w", err)
		}
		if r.Index != nil {
			r.Index.RecordSnapshot(path, s)
		}
		lastSnap = s.Header.Tick
		lastPath, last = path, s
		return nil
	}
	if err := writeSnap(); err != nil {
		return res, err
	}

	suite := evaluate.NewSuite(cfg.MaxNewOpinionWeighting)
	every := uint64(cfg.SnapshotEveryTicks)
	acts := make([]protocol.ActMsg, len(ctrls))
	for {
		if err := ctx.Err(); err != nil {
			r.logf("episode=%s cancelled at tick=%d", episodeID, w.CurrentTick())
			return res, err
		}
		for i, o := range obs {
			acts[i] = ctrls[i].Act(o)
		}
		before := evaluate.Capture(w)
		entry, err := w.StepOnce(acts)
		if err != nil {
			return res, fmt.Errorf("step %d: %w", before.Tick, err)
		}
		suite.Record(before, evaluate.Capture(w))

		if tl != nil {
			if err := tl.WriteTick(entry); err != nil {
				return res, fmt.Errorf("tick log: %w", err)
			}
		}
		if r.Index != nil {
			_ = r.Index.WriteTick(episodeID, entry)
		}
		res.Rejected += len(entry.Rejected)
		res.Digest = entry.Digest
		if entry.Done {
			break
		}
		if every > 0 && w.CurrentTick()%every == 0 {
			if err := writeSnap(); err != nil {
				return res, err
			}
		}
		obs = w.ObserveAll()
	}
	if lastSnap != w.CurrentTick() {
		if err := writeSnap(); err != nil {
			return res, err
		}
	}

	if r.Archive && lastPath != "" {
		if _, _, err := archive.ArchiveFinalSnapshot(filepath.Dir(res.Dir), lastPath, last); err != nil {
			r.logf("episode=%s archive: %v", episodeID, err)
		}
	}

	_, reason := w.Done()
	res.Ticks = w.CurrentTick()
	res.Reason = reason
	res.Report = suite.Report(reason)

	if res.Dir != "" {
		b, _ := json.MarshalIndent(res.Report, "", "  ")
		if err := os.WriteFile(filepath.Join(res.Dir, "report.json"), append(b, '\n'), 0o644); err != nil {
			return res, err
		}
	}
	if r.Index != nil {
		if err := r.Index.EndEpisode(ctx, episodeID, res.Ticks, reason, res.Report); err != nil {
			r.logf("episode=%s index end: %v", episodeID, err)
		}
	}
	r.logf("episode=%s done tick=%d reason=%s committed=%d correct=%.2f rejected=%d",
		episodeID, res.Ticks, reason, res.Report.Committed, res.Report.CorrectCommitted, res.Rejected)
	return res, nil
}

// RunBatch plays cfg.Episodes episodes with seeds cfg.Seed+i, at most
// cfg.Parallel at a time. Results are in episode order.
func (r *Runner) RunBatch(ctx context.Context, cfg tuning.Experiment) ([]Result, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if r.RunID == "" {
		r.RunID = NewRunID()
	}
	out := make([]Result, cfg.Episodes)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)
	for i := 0; i < cfg.Episodes; i++ {
		g.Go(func() error {
			res, err := r.RunEpisode(gctx, ids.EpisodeID(r.RunID, i), cfg.WithSeed(cfg.Seed+int64(i)))
			if err != nil {
				return fmt.Errorf("episode %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
