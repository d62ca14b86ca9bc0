package index

import (
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/chatnotes/internal/models"
	"github.com/starford/chatnotes/internal/parser"
	"github.com/starford/chatnotes/internal/storage"
)

// Sync walks the vault and brings the catalog up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the catalog
func Sync(db Catalog, store storage.Provider, logger *slog.Logger) error {
	files, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		disk[f.Path] = struct{}{}

		if checksums[f.Path] == f.Checksum {
			continue
		}

		data, err := store.Read(f.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, f.Path, data, f.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", f.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", f.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses a note and upserts it. rel is the slash-separated
// vault-relative path.
func IndexFile(db Catalog, rel string, data []byte, updated time.Time) error {
	doc := parser.ParseDocument(data)
	row := NoteRow{
		Path:      rel,
		Project:   projectOf(rel, doc),
		Title:     doc.Title,
		Checksum:  storage.Checksum(data),
		Tags:      doc.Tags,
		UpdatedAt: updated,
	}
	return db.UpsertNote(row, doc.Body)
}

// projectOf prefers the frontmatter project and falls back to the folder the
// note sits in.
func projectOf(rel string, doc *parser.Document) string {
	if p := strings.TrimSpace(doc.String(models.KeyProject)); p != "" {
		return p
	}
	dir := path.Dir(rel)
	if dir == "." {
		return ""
	}
	return dir
}
