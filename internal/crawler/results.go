package crawler

import "sync"

// ResultSet collects extracted pages in completion order.
type ResultSet struct {
	mu    sync.Mutex
	pages []PageRecord
}

// Append adds a page record.
func (r *ResultSet) Append(rec PageRecord) {
	r.mu.Lock()
	r.pages = append(r.pages, rec)
	r.mu.Unlock()
}

// Snapshot returns a copy of the collected records.
func (r *ResultSet) Snapshot() []PageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PageRecord, len(r.pages))
	copy(out, r.pages)
	return out
}

// Len returns the number of records.
func (r *ResultSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}
