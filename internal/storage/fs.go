package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/chatnotes/internal/apperr"
	"github.com/starford/chatnotes/internal/models"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root  string // absolute path to vault directory
	now   func() time.Time
	write func(abs string, content []byte) error
}

// Option configures an FS.
type Option func(*FS)

// WithClock overrides the clock used for file names.
func WithClock(now func() time.Time) Option {
	return func(f *FS) { f.now = now }
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, opts ...Option) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	f := &FS{root: abs, now: time.Now, write: atomicWrite}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return abs, nil
}

// WriteNote writes content to <folder>/<YYYYMMDD_HHMMSS>_<slug(title)>.md and
// checks the file landed. Directory and write failures wrap
// apperr.ErrFilesystem; a missing or empty result wraps apperr.ErrWriteVerification.
// Two calls in the same second with the same title target the same file and
// the later one wins.
func (f *FS) WriteNote(folder, title, content string) (string, error) {
	dir, err := f.safePath(folder)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrFilesystem, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: storage: mkdir %s: %w", apperr.ErrFilesystem, folder, err)
	}

	abs := filepath.Join(dir, FileName(title, f.now()))
	if err := f.write(abs, []byte(content)); err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrFilesystem, err)
	}
	if err := verifyWrite(abs, len(content)); err != nil {
		return "", err
	}
	return abs, nil
}

func verifyWrite(abs string, want int) error {
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", apperr.ErrWriteVerification, abs, err)
	}
	if want > 0 && info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", apperr.ErrWriteVerification, abs)
	}
	return nil
}

// List walks dir (relative to root) and returns an entry for every .md file.
func (f *FS) List(dir string) ([]models.NoteFile, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.NoteFile
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, models.NoteFile{
			Path:      filepath.ToSlash(rel),
			Checksum:  Checksum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Rel converts an absolute path under the vault root to a slash-separated
// relative path.
func (f *FS) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: %s is outside the vault", abs)
	}
	return filepath.ToSlash(rel), nil
}

// atomicWrite writes content: tmp file → fsync → rename.
func atomicWrite(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	tmp, err := os.CreateTemp(dir, ".chatnotes-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("storage: chmod: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
