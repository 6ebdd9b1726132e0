// Package verifier confirms that a candidate link really serves a PDF
// before any bandwidth is committed to a download.
package verifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"pdfcrawler/pkg/types"
)

// ErrNotPDF marks candidates whose content failed all three checks.
var ErrNotPDF = errors.New("candidate is not a pdf")

// pdfMagic is the literal PDF file signature.
var pdfMagic = []byte("%PDF-")

// Verifier runs the three-tier check: declared content type, declared
// filename, then leading magic bytes. Extension guessing alone is
// unreliable for servlet-style URLs, and a full download-then-check would
// waste bandwidth on large non-PDF responses.
type Verifier struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// New builds a verifier on the crawl's HTTP client so probes share the
// crawl cookie jar.
func New(client *http.Client, userAgent string, logger *slog.Logger) *Verifier {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{client: client, userAgent: userAgent, logger: logger}
}

// Verify probes the candidate URL. A lightweight header-only request runs
// first; if its metadata is conclusive the follow-up GET becomes the
// download stream directly. When the server omits both content type and
// disposition, the leading bytes of the GET body are checked against the
// PDF signature. Returns ErrNotPDF when every check fails. The returned
// VerifiedPdf carries the open body stream; the caller must close it.
func (v *Verifier) Verify(ctx context.Context, cand types.PdfCandidate) (*types.VerifiedPdf, error) {
	if cand.URL == nil {
		return nil, errors.New("candidate URL is nil")
	}

	method, hint, conclusive := v.probeHead(ctx, cand)

	resp, err := v.get(ctx, cand)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("candidate returned status %d", resp.StatusCode)
	}

	if !conclusive {
		method, hint, conclusive = inspectHeaders(resp.Header)
	}
	if conclusive {
		return v.verified(cand, method, hint, resp.ContentLength, resp.Body), nil
	}

	// Both metadata checks are inconclusive: partial-read the body and
	// accept only on the literal signature. This is also how a lying
	// Content-Type (text/html over real PDF bytes) is still accepted.
	head := make([]byte, len(pdfMagic))
	n, readErr := io.ReadFull(resp.Body, head)
	if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) && !errors.Is(readErr, io.EOF) {
		resp.Body.Close()
		return nil, fmt.Errorf("read candidate body: %w", readErr)
	}
	if n < len(pdfMagic) || !bytes.Equal(head, pdfMagic) {
		resp.Body.Close()
		return nil, ErrNotPDF
	}

	body := struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), resp.Body), resp.Body}
	return v.verified(cand, types.VerifyMagicBytes, "", resp.ContentLength, body), nil
}

func (v *Verifier) verified(cand types.PdfCandidate, method types.VerifyMethod, hint string, length int64, body io.ReadCloser) *types.VerifiedPdf {
	if hint == "" {
		hint = cand.FilenameHint
	}
	return &types.VerifiedPdf{
		Candidate:     cand,
		Method:        method,
		FilenameHint:  hint,
		ContentLength: length,
		Body:          body,
	}
}

// probeHead issues the header-only request. A failed or rejected HEAD is
// simply inconclusive; many document servlets do not implement it.
func (v *Verifier) probeHead(ctx context.Context, cand types.PdfCandidate) (types.VerifyMethod, string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, cand.URL.String(), nil)
	if err != nil {
		return "", "", false
	}
	if v.userAgent != "" {
		req.Header.Set("User-Agent", v.userAgent)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return "", "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", "", false
	}
	return inspectHeaders(resp.Header)
}

func (v *Verifier) get(ctx context.Context, cand types.PdfCandidate) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cand.URL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build candidate request: %w", err)
	}
	if v.userAgent != "" {
		req.Header.Set("User-Agent", v.userAgent)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch candidate: %w", err)
	}
	return resp, nil
}

// inspectHeaders applies the two metadata checks: a declared
// application/pdf content type, or a content-disposition filename ending
// in .pdf.
func inspectHeaders(h http.Header) (types.VerifyMethod, string, bool) {
	if ct := h.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil &&
			mediaType == "application/pdf" {
			return types.VerifyContentType, dispositionFilename(h), true
		}
	}
	if name := dispositionFilename(h); strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return types.VerifyContentDisposition, name, true
	}
	return "", "", false
}

func dispositionFilename(h http.Header) string {
	cd := h.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	return params["filename"]
}
