package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"tiledswarm.ai/internal/persistence/snapshot"
)

type EpisodeArchiveMeta struct {
	EpisodeID string `json:"episode_id"`
	EndTick   uint64 `json:"end_tick"`
	EndReason string `json:"end_reason"`
	Seed      int64  `json:"seed"`
	Grid      string `json:"grid"`
	Agents    int    `json:"agents"`
	Committed int    `json:"committed"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// ArchiveFinalSnapshot copies a terminal snapshot into `runDir/archives/<episode>/`.
// Snapshots of running episodes are left alone (archived=false).
func ArchiveFinalSnapshot(runDir, snapshotPath string, snap snapshot.SnapshotV1) (archivedPath string, archived bool, err error) {
	if !snap.Done {
		return "", false, nil
	}
	if snap.Header.EpisodeID == "" {
		return "", false, fmt.Errorf("snapshot without episode id")
	}

	archiveDir := filepath.Join(runDir, "archives", snap.Header.EpisodeID)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := EpisodeArchiveMeta{
		EpisodeID: snap.Header.EpisodeID,
		EndTick:   snap.Header.Tick,
		EndReason: snap.EndReason,
		Seed:      snap.Config.Seed,
		Grid:      fmt.Sprintf("%dx%d", snap.Width, snap.Height),
		Agents:    len(snap.Agents),
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, a := range snap.Agents {
		if a.Committed {
			meta.Committed++
		}
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
