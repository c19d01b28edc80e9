package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sentinel/internal/utils"
)

// Writer persists a snapshot and returns where it was written.
type Writer interface {
	Write(ctx context.Context, snap *Snapshot) (string, error)
}

// FileWriter writes a snapshot as a single indented JSON document.
type FileWriter struct {
	path   string
	logger *utils.Logger
}

// NewFileWriter creates a writer for path. Parent directories are created on write.
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path, logger: utils.NewLogger("export-file")}
}

func (w *FileWriter) Write(ctx context.Context, snap *Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	w.logger.Info("Wrote snapshot", "path", w.path, "events", snap.Summary.Total)
	return w.path, nil
}
