package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is an opaque binary document store on the local filesystem.
// Save returns a reference that Read accepts later; callers never see
// filesystem paths.
type Store struct {
	baseDir     string
	maxFileSize int64
	logger      *zap.Logger
}

// New creates a document store rooted at baseDir
func New(baseDir string, maxFileSize int64, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Store{
		baseDir:     baseDir,
		maxFileSize: maxFileSize,
		logger:      logger,
	}, nil
}

// Save stores the uploaded file and returns its reference. The original
// file name survives only in the reference suffix for display.
func (s *Store) Save(fileName string, content []byte) (string, error) {
	if s.maxFileSize > 0 && int64(len(content)) > s.maxFileSize {
		return "", fmt.Errorf("file %s exceeds maximum size of %d bytes", fileName, s.maxFileSize)
	}

	ref := fmt.Sprintf("%s/%s_%s",
		time.Now().UTC().Format("2006/01"),
		uuid.NewString(),
		sanitizeFileName(fileName))

	fullPath, err := s.resolve(ref)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write document", zap.String("ref", ref), zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Document stored", zap.String("ref", ref), zap.Int("size", len(content)))
	return ref, nil
}

// Read returns the stored content for a reference
func (s *Store) Read(ref string) ([]byte, error) {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", ref, err)
	}
	return content, nil
}

// Delete removes a stored document. Deleting a missing reference is a no-op.
func (s *Store) Delete(ref string) error {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete document %s: %w", ref, err)
	}
	return nil
}

// resolve maps a reference to a filesystem path, refusing anything that
// escapes the base directory.
func (s *Store) resolve(ref string) (string, error) {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(ref))

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("reference escapes storage directory: %s", ref)
	}
	return absPath, nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." {
		name = "document"
	}
	return name
}
