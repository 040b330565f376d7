package report

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileSink writes reports into a single directory.
type FileSink struct {
	fs  afero.Fs
	dir string
}

// NewFileSink creates dir if needed and returns a sink writing into it.
func NewFileSink(fs afero.Fs, dir string) (*FileSink, error) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory %s: %w", dir, err)
	}
	return &FileSink{fs: fs, dir: dir}, nil
}

// Dir returns the absolute output directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Write stores content under filename and returns the full path.
func (s *FileSink) Write(filename, content string) (string, error) {
	path := filepath.Join(s.dir, filename)
	if err := writeFileAtomic(s.fs, path, []byte(content)); err != nil {
		return "", err
	}
	return path, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a partial report.
func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmpFile, err := afero.TempFile(fs, dir, ".report-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = fs.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}
