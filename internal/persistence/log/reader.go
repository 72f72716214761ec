package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"tiledswarm.ai/internal/protocol"
	"tiledswarm.ai/internal/sim/episode"
)

// ListEventFiles returns the tick log files in dir in write order.
func ListEventFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ErrStop ends ReadTicks early without an error.
var ErrStop = errors.New("stop reading ticks")

// ReadTicks decodes every entry of one tick log file in order. Returning
// ErrStop from fn stops reading.
func ReadTicks(path string, fn func(episode.TickLogEntry) error) error {
	return scanLines(path, func(line []byte) error {
		var entry episode.TickLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		return fn(entry)
	})
}

func scanLines(path string, fn func([]byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
	return sc.Err()
}

// ValidateTicks checks every line of an episode's tick logs against the
// tick schema and returns how many lines passed. The first bad line stops
// the walk.
func ValidateTicks(episodeDir string) (int, error) {
	files, err := ListEventFiles(EventsDir(episodeDir))
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no events files found in %s", EventsDir(episodeDir))
	}
	n := 0
	for _, p := range files {
		line := 0
		err := scanLines(p, func(raw []byte) error {
			line++
			if err := protocol.ValidateTick(raw); err != nil {
				return fmt.Errorf("%s:%d: %w", filepath.Base(p), line, err)
			}
			n++
			return nil
		})
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ReadAllTicks walks every tick log file under an episode directory.
func ReadAllTicks(episodeDir string, fn func(episode.TickLogEntry) error) error {
	files, err := ListEventFiles(EventsDir(episodeDir))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no events files found in %s", EventsDir(episodeDir))
	}
	for _, p := range files {
		stop := false
		err := ReadTicks(p, func(e episode.TickLogEntry) error {
			err := fn(e)
			if err == ErrStop {
				stop = true
			}
			return err
		})
		if err != nil || stop {
			return err
		}
	}
	return nil
}
