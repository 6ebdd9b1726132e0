package download

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdfcrawler/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func verifiedPDF(t *testing.T, rawURL, hint, body string) *types.VerifiedPdf {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %q: %v", rawURL, err)
	}
	return &types.VerifiedPdf{
		Candidate:    types.PdfCandidate{URL: u, Signal: types.SignalAnchor},
		Method:       types.VerifyContentType,
		FilenameHint: hint,
		Body:         io.NopCloser(strings.NewReader(body)),
	}
}

func TestSaveUsesDeclaredFilename(t *testing.T) {
	store := newTestStore(t)

	path, written, err := store.Save(context.Background(), verifiedPDF(t,
		"https://example.com/download?id=9", "Annual Report 2025.pdf", "%PDF-1.7 body"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := filepath.Base(path); got != "Annual Report 2025.pdf" {
		t.Errorf("filename = %q, want %q", got, "Annual Report 2025.pdf")
	}
	if written != int64(len("%PDF-1.7 body")) {
		t.Errorf("written = %d", written)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "%PDF-1.7 body" {
		t.Errorf("stored body = %q", data)
	}
}

func TestSaveFallsBackToURLPath(t *testing.T) {
	store := newTestStore(t)

	path, _, err := store.Save(context.Background(), verifiedPDF(t,
		"https://example.com/files/minutes.pdf", "", "%PDF-"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := filepath.Base(path); got != "minutes.pdf" {
		t.Errorf("filename = %q, want minutes.pdf", got)
	}
}

func TestSaveGeneratesNameWhenNothingUsable(t *testing.T) {
	store := newTestStore(t)

	path, _, err := store.Save(context.Background(), verifiedPDF(t,
		"https://example.com/", "", "%PDF-"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := filepath.Base(path); got != "document-0001.pdf" {
		t.Errorf("filename = %q, want document-0001.pdf", got)
	}
}

func TestSaveDisambiguatesCollisions(t *testing.T) {
	store := newTestStore(t)

	want := []string{"report.pdf", "report-1.pdf", "report-2.pdf"}
	for i, name := range want {
		path, _, err := store.Save(context.Background(), verifiedPDF(t,
			"https://example.com/report.pdf", "", "%PDF- copy"))
		if err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
		if got := filepath.Base(path); got != name {
			t.Errorf("Save #%d filename = %q, want %q", i, got, name)
		}
	}
}

func TestSaveCancelledContextRemovesPartial(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := store.Save(ctx, verifiedPDF(t, "https://example.com/big.pdf", "", strings.Repeat("x", 1<<16)))
	if err == nil {
		t.Fatal("Save succeeded with cancelled context")
	}
	entries, err := os.ReadDir(store.dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("partial file left behind: %v", entries)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Annual Report 2025.pdf", "Annual Report 2025.pdf"},
		{"notice.pdf?token=abc#frag", "notice.pdf"},
		{"회의록 2025.pdf", "___ 2025.pdf"},
		{"weird/..\\name.PDF", "weird_.._name.PDF"},
		{"no-extension", "no-extension.pdf"},
		{"  .. ", ""},
		{"", ""},
		{"___", ""},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
