package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// FileStore manages media files under the upload directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	return &FileStore{dir: dir, logger: logging.NewComponentLogger(logger, "staging")}
}

// Dir returns the upload directory.
func (f *FileStore) Dir() string { return f.dir }

// Ingested describes a file copied into the upload directory.
type Ingested struct {
	Path     string
	Filename string
	Size     int64
}

// Ingest copies src into the upload directory under a unique name that
// keeps the original extension.
func (f *FileStore) Ingest(src string) (Ingested, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return Ingested{}, services.Wrap(services.ErrValidation, "staging", "ingest", "source path required", nil)
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return Ingested{}, fmt.Errorf("ensure upload dir: %w", err)
	}
	name := filepath.Base(src)
	dst := filepath.Join(f.dir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	size, err := fileutil.CopyVerified(src, dst)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Ingested{}, services.Wrap(services.ErrValidation, "staging", "ingest", "source file not found", err)
		}
		return Ingested{}, fmt.Errorf("ingest %s: %w", name, err)
	}
	f.logger.Info("upload ingested",
		logging.String("filename", name),
		logging.String("path", dst),
		logging.Int64("size_bytes", size),
	)
	return Ingested{Path: dst, Filename: name, Size: size}, nil
}

// DeleteFile removes path. A file that is already gone is not an error.
func (f *FileStore) DeleteFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := fileutil.RemoveIfExists(path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	f.logger.Debug("file deleted", logging.String("path", path))
	return nil
}

// FileExists reports whether path exists.
func (f *FileStore) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
