package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"tiledswarm.ai/internal/sim/tuning"
)

const Version = 1

type Header struct {
	Version   int    `json:"version"`
	EpisodeID string `json:"episode_id"`
	Tick      uint64 `json:"tick"`
}

// SnapshotV1 is the full resumable state of one episode at a tick boundary.
type SnapshotV1 struct {
	Header Header `json:"header"`

	// The experiment the episode was built from; Config.Seed is the episode seed.
	Config tuning.Experiment `json:"config"`

	// Binary PCG state of the episode's random source.
	RNG []byte `json:"rng"`

	Width  int `json:"width"`
	Height int `json:"height"`
	// Row-major tile colours, run-length encoded.
	Colours string `json:"colours"`

	CorrectOpinion   int `json:"correct_opinion"`
	MaliciousOpinion int `json:"malicious_opinion"`

	Done      bool   `json:"done,omitempty"`
	EndReason string `json:"end_reason,omitempty"`

	Agents []AgentV1 `json:"agents"`
}

type AgentV1 struct {
	ID      int      `json:"id"`
	Kind    string   `json:"kind"`
	Placed  bool     `json:"placed"`
	Cell    [2]int   `json:"cell"` // row, col
	Heading int      `json:"heading"`
	Visited [][2]int `json:"visited,omitempty"`

	// Swarm agents.
	Sensing       bool       `json:"sensing,omitempty"`
	Observed      int        `json:"observed,omitempty"`
	WhiteObserved int        `json:"white_observed,omitempty"`
	Collective    float64    `json:"collective,omitempty"`
	Committed     bool       `json:"committed,omitempty"`
	Weights       [2]float64 `json:"weights"`

	// Malicious agents.
	Opinion int `json:"opinion,omitempty"`
}

// Summary is the cheap view printed by tooling.
func (s SnapshotV1) Summary() string {
	committed := 0
	for _, a := range s.Agents {
		if a.Committed {
			committed++
		}
	}
	return fmt.Sprintf("episode=%s tick=%d grid=%dx%d agents=%d committed=%d done=%v",
		s.Header.EpisodeID, s.Header.Tick, s.Width, s.Height, len(s.Agents), committed, s.Done)
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is for tools that only need the tick; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version: %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

const fileSuffix = ".snap.zst"

// PathFor is where the snapshot of tick lives under an episode directory.
func PathFor(episodeDir string, tick uint64) string {
	return filepath.Join(episodeDir, "snapshots", fmt.Sprintf("%d%s", tick, fileSuffix))
}

type Entry struct {
	Tick uint64
	Path string
}

// List returns the episode's snapshot files ordered by tick.
func List(episodeDir string) ([]Entry, error) {
	dir := filepath.Join(episodeDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, fileSuffix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Entry{Tick: tick, Path: filepath.Join(dir, name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out, nil
}

// Latest returns the newest snapshot at or before maxTick. A zero maxTick
// means no bound.
func Latest(episodeDir string, maxTick uint64) (Entry, bool) {
	ents, err := List(episodeDir)
	if err != nil {
		return Entry{}, false
	}
	for i := len(ents) - 1; i >= 0; i-- {
		if maxTick == 0 || ents[i].Tick <= maxTick {
			return ents[i], true
		}
	}
	return Entry{}, false
}
