package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"tiledswarm.ai/internal/persistence/snapshot"
	"tiledswarm.ai/internal/sim/episode"
	"tiledswarm.ai/internal/sim/tuning"
)

const schemaVersion = "1"

// SQLiteIndex is a queryable secondary index of a run. Tick and snapshot rows
// are written by a single goroutine in batched transactions; the tick logs
// stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
	reqRun
	reqEpisodeStart
	reqEpisodeEnd
)

type req struct {
	kind reqKind

	episodeID string
	tick      episode.TickLogEntry
	snapshot  snapshotRow
	run       RunRow
	ep        EpisodeRow
	end       episodeEnd

	// Closed once the request is committed.
	done chan struct{}
}

type snapshotRow struct {
	EpisodeID string
	Tick      uint64
	Path      string
	Agents    int
	Committed int
	Done      bool
}

type RunRow struct {
	RunID        string
	StartedAt    time.Time
	ConfigDigest string
	Config       tuning.Experiment
}

type EpisodeRow struct {
	EpisodeID string `json:"episode_id"`
	RunID     string `json:"run_id"`
	Seed      int64  `json:"seed"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Agents    int    `json:"agents"`
	Malicious int    `json:"malicious"`
	Correct   int    `json:"correct_opinion"`
	StartedAt string `json:"started_at"`
}

type episodeEnd struct {
	EpisodeID string
	EndedAt   time.Time
	EndTick   uint64
	Reason    string
	Metrics   []byte
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Parallel episodes each push a row per tick.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			config_digest TEXT NOT NULL,
			config_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS episodes (
			episode_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			malicious INTEGER NOT NULL,
			correct_opinion INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			end_tick INTEGER,
			end_reason TEXT,
			metrics_json TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_run ON episodes(run_id);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			episode_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			actions INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (episode_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS rejections (
			episode_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			code TEXT NOT NULL,
			message TEXT,
			PRIMARY KEY (episode_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rejections_code ON rejections(code, episode_id);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			episode_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			agents INTEGER NOT NULL,
			committed INTEGER NOT NULL,
			done INTEGER NOT NULL,
			PRIMARY KEY (episode_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// WriteTick queues a tick row. It never blocks the simulation.
func (s *SQLiteIndex) WriteTick(episodeID string, entry episode.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, episodeID: episodeID, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		EpisodeID: snap.Header.EpisodeID,
		Tick:      snap.Header.Tick,
		Path:      path,
		Agents:    len(snap.Agents),
		Done:      snap.Done,
	}
	for _, a := range snap.Agents {
		if a.Committed {
			r.Committed++
		}
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// RecordRun stores the run's experiment. It waits until the row is committed.
func (s *SQLiteIndex) RecordRun(ctx context.Context, r RunRow) error {
	return s.sync(ctx, req{kind: reqRun, run: r})
}

// BeginEpisode stores an episode row. It waits until the row is committed.
func (s *SQLiteIndex) BeginEpisode(ctx context.Context, r EpisodeRow) error {
	return s.sync(ctx, req{kind: reqEpisodeStart, ep: r})
}

// EndEpisode closes an episode row with its metrics. Rows queued before it
// are committed with it.
func (s *SQLiteIndex) EndEpisode(ctx context.Context, episodeID string, endTick uint64, reason string, metrics any) error {
	b, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return s.sync(ctx, req{kind: reqEpisodeEnd, end: episodeEnd{
		EpisodeID: episodeID,
		EndedAt:   time.Now().UTC(),
		EndTick:   endTick,
		Reason:    reason,
		Metrics:   b,
	}})
}

func (s *SQLiteIndex) sync(ctx context.Context, r req) error {
	if s == nil {
		return nil
	}
	if s.closed.Load() {
		return fmt.Errorf("index closed")
	}
	r.done = make(chan struct{})
	select {
	case s.ch <- r:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(episode_id,tick,digest,actions,rejected,raw_json) VALUES(?,?,?,?,?,?)`)
	insertRejection, _ := s.db.Prepare(`INSERT OR REPLACE INTO rejections(episode_id,tick,seq,agent_id,code,message) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(episode_id,tick,path,agents,committed,done) VALUES(?,?,?,?,?,?)`)
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,started_at,config_digest,config_json) VALUES(?,?,?,?)`)
	insertEpisode, _ := s.db.Prepare(`INSERT OR REPLACE INTO episodes(episode_id,run_id,seed,width,height,agents,malicious,correct_opinion,started_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	updateEpisode, _ := s.db.Prepare(`UPDATE episodes SET ended_at=?, end_tick=?, end_reason=?, metrics_json=? WHERE episode_id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertRejection, insertSnapshot, insertRun, insertEpisode, updateEpisode} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		// Waiters released on the next commit.
		waiting []chan struct{}
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	release := func() {
		for _, ch := range waiting {
			close(ch)
		}
		waiting = waiting[:0]
	}
	commit := func() {
		if tx != nil {
			_ = tx.Commit()
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
		release()
	}
	rollback := func() {
		if tx != nil {
			_ = tx.Rollback()
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		if r.done != nil {
			waiting = append(waiting, r.done)
		}
		begin()
		if tx == nil {
			release()
			continue
		}
		switch r.kind {
		case reqTick:
			b, _ := json.Marshal(r.tick)
			if !exec(insertTick, r.episodeID, int64(r.tick.Tick), r.tick.Digest, len(r.tick.Actions), len(r.tick.Rejected), string(b)) {
				continue
			}
			for i, rj := range r.tick.Rejected {
				if !exec(insertRejection, r.episodeID, int64(r.tick.Tick), i, rj.AgentID, rj.Code, rj.Message) {
					break
				}
			}

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, sn.EpisodeID, int64(sn.Tick), sn.Path, sn.Agents, sn.Committed, boolInt(sn.Done))

		case reqRun:
			cfg, _ := json.Marshal(r.run.Config)
			exec(insertRun, r.run.RunID, r.run.StartedAt.UTC().Format(time.RFC3339Nano), r.run.ConfigDigest, string(cfg))

		case reqEpisodeStart:
			e := r.ep
			exec(insertEpisode, e.EpisodeID, e.RunID, e.Seed, e.Width, e.Height, e.Agents, e.Malicious, e.Correct, e.StartedAt)

		case reqEpisodeEnd:
			e := r.end
			exec(updateEpisode, e.EndedAt.Format(time.RFC3339Nano), int64(e.EndTick), e.Reason, string(e.Metrics), e.EpisodeID)
		}
		if len(waiting) > 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
