// Package loader turns source files on disk into markdown text for parsing.
// Markdown and plain-text files pass through untouched; PDFs go through a
// configurable extraction provider.
package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrUnsupportedFormat marks files whose extension no provider handles.
var ErrUnsupportedFormat = eris.New("loader: unsupported file format")

// PDFExtractor extracts text content from PDF files.
type PDFExtractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// Loader reads one source file and returns its markdown text.
type Loader interface {
	ExtractMarkdown(ctx context.Context, path string) (string, error)
}

// New creates a Loader whose PDF handling is selected by provider.
func New(provider, pdfToTextPath, mistralKey string) (Loader, error) {
	switch provider {
	case "local", "":
		return &FileLoader{pdf: NewPdfToText(pdfToTextPath)}, nil
	case "mistral":
		if mistralKey == "" {
			return nil, eris.New("loader: mistral provider requires mistral_api_key")
		}
		return &FileLoader{pdf: NewMistralOCR(mistralKey, "")}, nil
	default:
		return nil, eris.Errorf("loader: unknown provider %q", provider)
	}
}

// FileLoader dispatches on file extension.
type FileLoader struct {
	pdf PDFExtractor
}

// SupportedExtensions lists the extensions ExtractMarkdown accepts, used by
// directory discovery to filter candidate files.
var SupportedExtensions = []string{".md", ".markdown", ".txt", ".pdf"}

// Supported reports whether path has an extension ExtractMarkdown accepts.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

func (l *FileLoader) ExtractMarkdown(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", eris.Wrapf(err, "loader: read %s", path)
		}
		return string(data), nil
	case ".pdf":
		text, err := l.pdf.ExtractText(ctx, path)
		if err != nil {
			return "", eris.Wrapf(err, "loader: extract pdf %s", path)
		}
		return text, nil
	default:
		return "", eris.Wrapf(ErrUnsupportedFormat, "loader: %s", path)
	}
}
