// Package loader turns files into per-page documents.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"notebookrag/internal/domain"
)

// FileLoader dispatches on the file extension.
type FileLoader struct{}

func New() *FileLoader { return &FileLoader{} }

// Supported reports whether path has an extension the loader understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// Load extracts one document per page that has text. Page numbers count
// every page of the file, so skipped pages leave gaps.
func (l *FileLoader) Load(path string) ([]domain.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return LoadPDF(path)
	case ".txt", ".md":
		return LoadText(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrConfiguration, filepath.Ext(path))
	}
}

// LoadPDF extracts plain text page by page.
func LoadPDF(path string) ([]domain.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var docs []domain.Document
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf %s page %d: %w", path, i, err)
		}
		if doc, ok := newDocument(text, i, path); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// LoadText reads a plain text file. Form feeds separate pages.
func LoadText(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []domain.Document
	for i, text := range strings.Split(string(data), "\f") {
		if doc, ok := newDocument(text, i+1, path); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func newDocument(text string, page int, source string) (domain.Document, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Document{}, false
	}
	return domain.Document{Content: text, Metadata: domain.Metadata{Page: page, Source: source}}, true
}
