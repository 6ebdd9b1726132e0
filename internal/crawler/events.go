package crawler

import (
	"pdfcrawler/pkg/types"
)

// ErrorKind classifies per-URL and per-item failures carried on events.
type ErrorKind string

const (
	KindInvalidURL         ErrorKind = "invalid-url"
	KindFetchError         ErrorKind = "fetch-error"
	KindRedirectLoop       ErrorKind = "redirect-loop"
	KindRobotsDisallowed   ErrorKind = "robots-disallowed"
	KindRenderTimeout      ErrorKind = "render-timeout"
	KindVerificationFailed ErrorKind = "verification-failed"
	KindDownloadWriteError ErrorKind = "download-write-error"
)

// TerminationReason explains why a crawl left the running state.
type TerminationReason string

const (
	ReasonFrontierExhausted TerminationReason = "frontier-exhausted"
	ReasonMaxPages          TerminationReason = "max-pages"
	ReasonMaxPDFs           TerminationReason = "max-pdfs"
	ReasonCancelled         TerminationReason = "cancelled"
)

// Event is one item on the crawl's event stream. The stream replaces any
// global logging state: everything the control surface needs arrives here.
type Event interface {
	event()
}

// LogMessage is an informational progress line.
type LogMessage struct {
	Text string
}

// PdfFound reports a candidate confirmed as a real PDF.
type PdfFound struct {
	URL    string
	Signal types.Signal
}

// PdfSaved reports a verified PDF written to the output directory.
type PdfSaved struct {
	URL       string
	Path      string
	SizeBytes int64
}

// Warning reports a recoverable oddity, such as an unreachable robots.txt.
type Warning struct {
	Text string
}

// ErrorEvent reports a per-URL or per-item failure that was skipped.
type ErrorEvent struct {
	URL  string
	Kind ErrorKind
	Err  error
}

// Finished is the final event of every crawl.
type Finished struct {
	PagesVisited int
	PdfsSaved    int
	Reason       TerminationReason
}

func (LogMessage) event() {}
func (PdfFound) event()   {}
func (PdfSaved) event()   {}
func (Warning) event()    {}
func (ErrorEvent) event() {}
func (Finished) event()   {}
