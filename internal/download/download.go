// Package download streams verified PDFs to a caller-specified directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"pdfcrawler/pkg/types"
)

// Store writes verified PDFs to the local filesystem. Filenames derive from
// the declared filename, else the URL path, else a generated name; a
// collision gets a numeric disambiguator rather than overwriting.
type Store struct {
	dir    string
	logger *slog.Logger

	// used tracks names claimed during this crawl so two same-named PDFs
	// in one run disambiguate even before the first finishes writing.
	used      map[string]struct{}
	generated int
}

// NewStore creates the output directory. Failure here is a setup error and
// fatal to the crawl.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("output directory must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Store{dir: dir, logger: logger, used: make(map[string]struct{})}, nil
}

// Save streams the verified PDF to disk and returns the stored path and
// byte count. The PDF's body is always closed. A write failure removes the
// partial file.
func (s *Store) Save(ctx context.Context, pdf *types.VerifiedPdf) (string, int64, error) {
	if pdf == nil || pdf.Body == nil {
		return "", 0, errors.New("verified pdf has no body")
	}
	defer pdf.Body.Close()

	name := s.deriveFilename(pdf)
	name = s.disambiguate(name)
	fullPath := filepath.Join(s.dir, name)

	fh, err := os.Create(fullPath)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", fullPath, err)
	}

	written, err := io.Copy(fh, &contextReader{ctx: ctx, r: pdf.Body})
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(fullPath)
		return "", 0, fmt.Errorf("write %s: %w", fullPath, err)
	}

	s.used[name] = struct{}{}
	return fullPath, written, nil
}

func (s *Store) deriveFilename(pdf *types.VerifiedPdf) string {
	if name := SanitizeFilename(pdf.FilenameHint); name != "" {
		return name
	}
	if pdf.Candidate.URL != nil {
		base := path.Base(pdf.Candidate.URL.EscapedPath())
		if base != "." && base != "/" {
			if name := SanitizeFilename(base); name != "" {
				return name
			}
		}
	}
	s.generated++
	return fmt.Sprintf("document-%04d.pdf", s.generated)
}

// disambiguate appends -1, -2, ... before the extension until the name is
// free both on disk and within this crawl.
func (s *Store) disambiguate(name string) string {
	if s.isFree(name) {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if s.isFree(candidate) {
			s.logger.Debug("filename collision", "name", name, "stored_as", candidate)
			return candidate
		}
	}
}

func (s *Store) isFree(name string) bool {
	if _, claimed := s.used[name]; claimed {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, name))
	return os.IsNotExist(err)
}

// SanitizeFilename reduces a declared or URL-derived name to a safe local
// filename: query and fragment residue is stripped, characters outside
// letters, digits, space, dot, and underscore become underscores, and a
// .pdf suffix is guaranteed. Returns "" when nothing usable remains.
func SanitizeFilename(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
		raw = raw[:idx]
	}
	if raw == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), " .")
	if name == "" || strings.Trim(name, "_-") == "" {
		return ""
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

// contextReader aborts an in-flight copy when the crawl is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
