// Package loader reads source documents from a directory tree.
package loader

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/akshayavb99/offline-rag-cli/internal/domain"
)

// Loader walks a directory and loads .txt and .pdf files as documents.
// Unreadable or empty files are skipped with a warning so one bad file
// cannot abort indexing.
type Loader struct {
	logger *zap.Logger
}

// New creates a loader that reports skipped files through the given logger.
func New(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadDirectory reads every supported file under dir. The returned documents
// carry a stable ID derived from the file path.
func (l *Loader) LoadDirectory(dir string) ([]domain.Document, error) {
	var documents []domain.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		var content string
		var loadErr error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt":
			content, loadErr = loadText(path)
		case ".pdf":
			content, loadErr = loadPDF(path)
		default:
			return nil
		}
		if loadErr != nil {
			l.logger.Warn("skipping unreadable document", zap.String("path", path), zap.Error(loadErr))
			return nil
		}
		if strings.TrimSpace(content) == "" {
			l.logger.Warn("skipping empty document", zap.String("path", path))
			return nil
		}
		documents = append(documents, domain.Document{
			ID:      hashString(path),
			Path:    path,
			Content: content,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	l.logger.Info("documents loaded", zap.String("dir", dir), zap.Int("count", len(documents)))
	return documents, nil
}

func loadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func loadPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
