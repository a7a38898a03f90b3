package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FilesystemOutput writes each dumped HTTP message to its own file in a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput creates a fresh, timestamped subdirectory of dir so that
// dumps from different runs never mix.
func NewFilesystemOutput(dir string, now time.Time) (FilesystemOutput, error) {
	runDir := filepath.Join(dir, now.Format("20060102_150405"))
	err := os.MkdirAll(runDir, 0o755)
	if err != nil {
		return FilesystemOutput{}, fmt.Errorf("create dump dir: %w", err)
	}
	return FilesystemOutput{directory: runDir}, nil
}

func (o FilesystemOutput) Dir() string {
	return o.directory
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id+".txt"), []byte(contents), 0o600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
