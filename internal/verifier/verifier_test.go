package verifier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfcrawler/pkg/types"
)

func candidateFor(t *testing.T, rawURL string) types.PdfCandidate {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return types.PdfCandidate{URL: u, Signal: types.SignalAnchor}
}

func verifyAgainst(t *testing.T, handler http.HandlerFunc) (*types.VerifiedPdf, error) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	v := New(srv.Client(), "test-agent/1.0", nil)
	return v.Verify(context.Background(), candidateFor(t, srv.URL+"/doc"))
}

func TestVerifyByContentType(t *testing.T) {
	t.Parallel()

	const payload = "%PDF-1.7\nreal pdf bytes"
	pdf, err := verifyAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, payload)
	})
	require.NoError(t, err)
	defer pdf.Body.Close()

	assert.Equal(t, types.VerifyContentType, pdf.Method)
	body, err := io.ReadAll(pdf.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestVerifyByContentDisposition(t *testing.T) {
	t.Parallel()

	pdf, err := verifyAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="board notice 12.pdf"`)
		io.WriteString(w, "%PDF-1.4 ...")
	})
	require.NoError(t, err)
	defer pdf.Body.Close()

	assert.Equal(t, types.VerifyContentDisposition, pdf.Method)
	assert.Equal(t, "board notice 12.pdf", pdf.FilenameHint)
}

func TestVerifyByMagicBytesDespiteLyingContentType(t *testing.T) {
	t.Parallel()

	const payload = "%PDF-1.4\nserved with a text/html header"
	pdf, err := verifyAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, payload)
	})
	require.NoError(t, err)
	defer pdf.Body.Close()

	assert.Equal(t, types.VerifyMagicBytes, pdf.Method)
	// The peeked signature bytes must still be at the front of the stream.
	body, err := io.ReadAll(pdf.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestVerifyRejectsNonPDF(t *testing.T) {
	t.Parallel()

	_, err := verifyAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html><body>error page pretending to be a download</body></html>")
	})
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestVerifyRejectsShortBody(t *testing.T) {
	t.Parallel()

	_, err := verifyAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		io.WriteString(w, "%PD")
	})
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestVerifyErrorStatus(t *testing.T) {
	t.Parallel()

	_, err := verifyAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotPDF)
}

func TestVerifySurvivesHeadRejection(t *testing.T) {
	t.Parallel()

	// Document servlets frequently reject HEAD; the GET must still carry
	// the verification on its own.
	pdf, err := verifyAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, "%PDF-1.6 body")
	})
	require.NoError(t, err)
	defer pdf.Body.Close()
	assert.Equal(t, types.VerifyContentType, pdf.Method)
}

func TestVerifySendsUserAgent(t *testing.T) {
	t.Parallel()

	var got string
	pdf, err := verifyAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, "%PDF-1.5")
	})
	require.NoError(t, err)
	pdf.Body.Close()
	assert.Equal(t, "test-agent/1.0", got)
}
