package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", defaultDataDir(), "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	runID := fs.String("run", "", "run_id filter (episodes)")
	episodeID := fs.String("episode", "", "episode id (ticks, snapshots; defaults to latest episode)")
	code := fs.String("code", "", "error code filter (rejections)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "episodes"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "swarm.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if q == "ticks" || q == "snapshots" {
		if *episodeID == "" {
			id, err := latestEpisode(db)
			if err != nil {
				fmt.Fprintln(os.Stderr, "latest episode:", err)
				os.Exit(1)
			}
			if id == "" {
				fmt.Fprintln(os.Stderr, "no episodes found")
				os.Exit(2)
			}
			*episodeID = id
		}
	}

	switch q {
	case "runs":
		rows, err := db.Query(`SELECT run_id,started_at,config_digest FROM runs ORDER BY started_at DESC LIMIT ?`, *limit)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RunID     string `json:"run_id"`
				StartedAt string `json:"started_at"`
				Digest    string `json:"config_digest"`
			}
			if err := rows.Scan(&r.RunID, &r.StartedAt, &r.Digest); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "episodes":
		rows, err := db.Query(`SELECT episode_id,run_id,seed,width,height,agents,malicious,correct_opinion,started_at,
			COALESCE(ended_at,''),COALESCE(end_tick,0),COALESCE(end_reason,''),COALESCE(metrics_json,'')
			FROM episodes WHERE (?='' OR run_id=?) ORDER BY started_at DESC LIMIT ?`, *runID, *runID, *limit)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r       episodeRow
				metrics string
			)
			if err := rows.Scan(&r.EpisodeID, &r.RunID, &r.Seed, &r.Width, &r.Height, &r.Agents, &r.Malicious, &r.Correct,
				&r.StartedAt, &r.EndedAt, &r.EndTick, &r.EndReason, &metrics); err != nil {
				fail("scan", err)
			}
			if metrics != "" {
				r.Metrics = json.RawMessage(metrics)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "ticks":
		rows, err := db.Query(`SELECT tick,digest,actions,rejected FROM ticks WHERE episode_id=? ORDER BY tick DESC LIMIT ?`, *episodeID, *limit)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     int64  `json:"tick"`
				Digest   string `json:"digest"`
				Actions  int    `json:"actions"`
				Rejected int    `json:"rejected"`
			}
			if err := rows.Scan(&r.Tick, &r.Digest, &r.Actions, &r.Rejected); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "rejections":
		rows, err := db.Query(`SELECT episode_id,code,COUNT(*) FROM rejections
			WHERE (?='' OR episode_id=?) AND (?='' OR code=?)
			GROUP BY episode_id,code ORDER BY episode_id,code LIMIT ?`, *episodeID, *episodeID, *code, *code, *limit)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				EpisodeID string `json:"episode_id"`
				Code      string `json:"code"`
				Count     int64  `json:"count"`
			}
			if err := rows.Scan(&r.EpisodeID, &r.Code, &r.Count); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,agents,committed,done FROM snapshots WHERE episode_id=? ORDER BY tick DESC LIMIT ?`, *episodeID, *limit)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick      int64  `json:"tick"`
				Path      string `json:"path"`
				Agents    int    `json:"agents"`
				Committed int    `json:"committed"`
				Done      bool   `json:"done"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.Agents, &r.Committed, &r.Done); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(runs|episodes|ticks|rejections|snapshots)")
		os.Exit(2)
	}
}

type episodeRow struct {
	EpisodeID string          `json:"episode_id"`
	RunID     string          `json:"run_id"`
	Seed      int64           `json:"seed"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Agents    int             `json:"agents"`
	Malicious int             `json:"malicious"`
	Correct   int             `json:"correct_opinion"`
	StartedAt string          `json:"started_at"`
	EndedAt   string          `json:"ended_at,omitempty"`
	EndTick   int64           `json:"end_tick,omitempty"`
	EndReason string          `json:"end_reason,omitempty"`
	Metrics   json.RawMessage `json:"metrics,omitempty"`
}

func latestEpisode(db *sql.DB) (string, error) {
	var id sql.NullString
	if err := db.QueryRow(`SELECT episode_id FROM episodes ORDER BY started_at DESC LIMIT 1`).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return id.String, nil
}

func fail(what string, err error) {
	fmt.Fprintln(os.Stderr, what+":", err)
	os.Exit(1)
}
