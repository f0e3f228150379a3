// Package blob stores uploaded product images on disk, content-addressed by
// SHA-256 so byte-identical uploads share one file.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"jewelry-backend/internal/apperror"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Store persists image content and hands back the relative URL path the
// catalog records. Remove is best-effort cleanup; callers must not treat its
// failure as fatal.
type Store interface {
	Save(data []byte, originalName string) (string, error)
	Remove(relPath string) error
}

// FileStore is the filesystem Store, rooted at an uploads directory and
// serving files under baseURL (e.g. "/uploads").
type FileStore struct {
	root    string
	baseURL string
	logger  *zap.Logger
}

// NewFileStore creates a FileStore and ensures the uploads directory exists.
func NewFileStore(root, baseURL string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &FileStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/"), logger: logger}, nil
}

// Save writes data under a name derived from its content hash and returns the
// relative URL path. If a file with the same hash already exists, its path is
// reused and nothing is written.
func (s *FileStore) Save(data []byte, originalName string) (string, error) {
	if len(data) == 0 {
		return "", apperror.Field(apperror.KindValidation, "image", "image file is empty")
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", apperror.Field(apperror.KindValidation, "image", "unsupported image format")
	}

	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:]) + ext
	dst := filepath.Join(s.root, name)

	if _, err := os.Stat(dst); err == nil {
		// Identical content already stored; reuse it.
		return s.baseURL + "/" + name, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to stat image file: %w", err)
	}

	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	s.logger.Debug("Stored image", zap.String("file", name), zap.Int("bytes", len(data)))
	return s.baseURL + "/" + name, nil
}

// Remove deletes the file behind relPath. A missing file is not an error;
// anything else is returned for the caller to log.
func (s *FileStore) Remove(relPath string) error {
	if relPath == "" {
		return nil
	}
	name := path.Base(relPath)
	if err := os.Remove(filepath.Join(s.root, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to remove image file: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	files map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

// Save stores data keyed by its content hash, mirroring FileStore's dedup.
func (s *MemoryStore) Save(data []byte, originalName string) (string, error) {
	if len(data) == 0 {
		return "", apperror.Field(apperror.KindValidation, "image", "image file is empty")
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", apperror.Field(apperror.KindValidation, "image", "unsupported image format")
	}
	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:]) + ext
	s.files[name] = data
	return "/uploads/" + name, nil
}

// Remove deletes the stored entry, if any.
func (s *MemoryStore) Remove(relPath string) error {
	delete(s.files, path.Base(relPath))
	return nil
}

// Len reports how many distinct files are stored.
func (s *MemoryStore) Len() int { return len(s.files) }

// Has reports whether the file behind relPath is stored.
func (s *MemoryStore) Has(relPath string) bool {
	_, ok := s.files[path.Base(relPath)]
	return ok
}
