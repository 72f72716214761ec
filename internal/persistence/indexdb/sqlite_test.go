package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"tiledswarm.ai/internal/persistence/snapshot"
	"tiledswarm.ai/internal/protocol"
	"tiledswarm.ai/internal/sim/episode"
	"tiledswarm.ai/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: episode.TickLogEntry{Tick: 1}}

	_ = s.WriteTick("ep", episode.TickLogEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	if err := s.WriteTick("ep", episode.TickLogEntry{}); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}
	if err := s.BeginEpisode(context.Background(), EpisodeRow{}); err != nil {
		t.Fatalf("BeginEpisode: %v", err)
	}
	if st := s.Stats(); st != (Stats{}) {
		t.Fatalf("stats=%+v", st)
	}
}

func TestSQLiteIndex_EpisodeLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	ctx := context.Background()

	cfg := tuning.Defaults()
	if err := idx.RecordRun(ctx, RunRow{RunID: "run1", StartedAt: time.Now(), ConfigDigest: cfg.Digest(), Config: cfg}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := idx.BeginEpisode(ctx, EpisodeRow{
		EpisodeID: "run1-ep0000", RunID: "run1", Seed: 42,
		Width: 15, Height: 15, Agents: 15, Malicious: 2, Correct: 1,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		t.Fatalf("BeginEpisode: %v", err)
	}

	entry := episode.TickLogEntry{
		Tick:    0,
		Actions: []episode.RecordedAction{{AgentID: "SWARM@0", Act: protocol.NewAct(0, "SWARM@0")}},
		Rejected: []episode.RejectedAction{
			{AgentID: "SWARM@0", Code: protocol.ErrCommitEarly},
			{AgentID: "MALICIOUS@1", Code: protocol.ErrNotAllowed, Message: "malicious agents only move"},
		},
		Digest: "abc",
	}
	_ = idx.WriteTick("run1-ep0000", entry)
	idx.RecordSnapshot("/abs/snapshots/0.snap.zst", snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, EpisodeID: "run1-ep0000", Tick: 0},
		Agents: []snapshot.AgentV1{{ID: 0, Committed: true}, {ID: 1}},
	})
	if err := idx.EndEpisode(ctx, "run1-ep0000", 120, episode.EndAllCommitted, map[string]int{"committed": 15}); err != nil {
		t.Fatalf("EndEpisode: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		seed    int64
		endTick int64
		reason  string
		metrics string
	)
	row := db.QueryRow(`SELECT seed,end_tick,end_reason,metrics_json FROM episodes WHERE episode_id='run1-ep0000'`)
	if err := row.Scan(&seed, &endTick, &reason, &metrics); err != nil {
		t.Fatalf("Scan episode: %v", err)
	}
	if seed != 42 || endTick != 120 || reason != episode.EndAllCommitted || metrics != `{"committed":15}` {
		t.Fatalf("episode mismatch: seed=%d end=%d reason=%q metrics=%q", seed, endTick, reason, metrics)
	}

	var actions, rejected int
	if err := db.QueryRow(`SELECT actions,rejected FROM ticks WHERE episode_id='run1-ep0000' AND tick=0`).Scan(&actions, &rejected); err != nil {
		t.Fatalf("Scan tick: %v", err)
	}
	if actions != 1 || rejected != 2 {
		t.Fatalf("tick mismatch: actions=%d rejected=%d", actions, rejected)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM rejections WHERE code=?`, protocol.ErrNotAllowed).Scan(&n); err != nil {
		t.Fatalf("Scan rejections: %v", err)
	}
	if n != 1 {
		t.Fatalf("rejections=%d want=1", n)
	}

	var agents, committed int
	if err := db.QueryRow(`SELECT agents,committed FROM snapshots WHERE episode_id='run1-ep0000' AND tick=0`).Scan(&agents, &committed); err != nil {
		t.Fatalf("Scan snapshot: %v", err)
	}
	if agents != 2 || committed != 1 {
		t.Fatalf("snapshot mismatch: agents=%d committed=%d", agents, committed)
	}

	var digest string
	if err := db.QueryRow(`SELECT config_digest FROM runs WHERE run_id='run1'`).Scan(&digest); err != nil {
		t.Fatalf("Scan run: %v", err)
	}
	if digest != cfg.Digest() {
		t.Fatalf("config digest mismatch")
	}
}
