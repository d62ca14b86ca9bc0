// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/chatnotes/internal/models"

// Provider is the interface for vault file operations.
type Provider interface {
	// Root returns the absolute vault directory.
	Root() string
	// WriteNote creates folder (relative to vault root) if needed, writes content
	// under a timestamped slug of title and returns the absolute file path.
	WriteNote(folder, title, content string) (string, error)
	// List returns an entry for every .md file under dir (relative to vault root).
	List(dir string) ([]models.NoteFile, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Rel converts an absolute path inside the vault to a vault-relative one.
	Rel(abs string) (string, error)
}
