package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"tiledswarm.ai/internal/sim/episode"
)

// DefaultSegmentLines bounds how many entries go into one file.
const DefaultSegmentLines = 5000

// JSONLZstdWriter appends JSON lines to zstd compressed segment files named
// <prefix>-<segment>.jsonl.zst. Segments roll over by line count so the file
// layout of a recording does not depend on wall time.
type JSONLZstdWriter struct {
	baseDir      string
	prefix       string
	segmentLines int

	mu      sync.Mutex
	segment int
	lines   int
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string, segmentLines int) *JSONLZstdWriter {
	if segmentLines <= 0 {
		segmentLines = DefaultSegmentLines
	}
	return &JSONLZstdWriter{
		baseDir:      baseDir,
		prefix:       prefix,
		segmentLines: segmentLines,
		segment:      -1,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil || w.lines >= w.segmentLines {
		if err := w.rotateLocked(w.segment + 1); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(segment int) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForSegment(segment)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.segment = segment
	w.lines = 0
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForSegment(segment int) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%06d.jsonl.zst", w.prefix, segment))
}

// TickLogger writes one JSONL entry per tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(episodeDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(EventsDir(episodeDir), "events", DefaultSegmentLines)}
}

func (l *TickLogger) WriteTick(v episode.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                           { return l.w.Close() }

// EventsDir is where an episode's tick log files live.
func EventsDir(episodeDir string) string { return filepath.Join(episodeDir, "events") }
