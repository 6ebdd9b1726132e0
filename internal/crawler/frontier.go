package crawler

import (
	"net/url"
)

// Origin distinguishes normally discovered frontier entries from the
// page-scope drill-down pass. Drill-down entries are never re-expanded.
type Origin string

const (
	OriginDirect    Origin = "direct"
	OriginDrilldown Origin = "drilldown"
)

// Entry is one URL awaiting processing.
type Entry struct {
	URL       *url.URL
	Canonical string
	Depth     int
	Origin    Origin
}

// Frontier is the FIFO queue of URLs awaiting processing. Enqueueing is
// deduplicated by canonical form so a URL is queued at most once per crawl.
type Frontier struct {
	queue    []Entry
	enqueued map[string]struct{}
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{enqueued: make(map[string]struct{})}
}

// Push appends an entry unless its canonical form was queued before.
// Reports whether the entry was accepted.
func (f *Frontier) Push(e Entry) bool {
	if e.URL == nil || e.Canonical == "" {
		return false
	}
	if _, seen := f.enqueued[e.Canonical]; seen {
		return false
	}
	f.enqueued[e.Canonical] = struct{}{}
	f.queue = append(f.queue, e)
	return true
}

// Pop removes and returns the oldest entry, preserving BFS order.
func (f *Frontier) Pop() (Entry, bool) {
	if len(f.queue) == 0 {
		return Entry{}, false
	}
	e := f.queue[0]
	f.queue = f.queue[1:]
	return e, true
}

// Len reports the number of queued entries.
func (f *Frontier) Len() int {
	return len(f.queue)
}
