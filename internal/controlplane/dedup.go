package controlplane

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/edgestream/streamsup/internal/model"
)

const (
	// dedupMaxEntries bounds the fingerprint set; halved (oldest-first) when exceeded.
	dedupMaxEntries = 1000
	// dedupMaxAge bounds fingerprint lifetime regardless of set size.
	dedupMaxAge = 10 * time.Minute
)

// Dedup is the bounded, time-aware fingerprint set used to drop replayed or
// resent inbound events before they reach the supervisor core. It
// fingerprints on {action, courtId, streamKey, cameraUrl, serverSequence} so
// two legitimate consecutive events landing in the same coarse time window
// never collide with each other, and is bounded both by count (halve past
// dedupMaxEntries) and by age (evict past dedupMaxAge), whichever is
// stricter. Intentional resends and accidental replays are dropped
// identically here; the supervisor's own precondition checks are what make
// that safe.
type Dedup struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	limiter *rate.Limiter
}

// NewDedup returns an empty Dedup set. The limiter paces compaction so a
// burst of inbound events cannot turn housekeeping into a hot loop.
func NewDedup() *Dedup {
	return &Dedup{
		seen:    make(map[string]time.Time),
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Seen reports whether evt's fingerprint has already been observed within
// the dedup window, recording it if not.
func (d *Dedup) Seen(evt model.Event, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	fp := evt.Fingerprint()
	if t, ok := d.seen[fp]; ok && now.Sub(t) < dedupMaxAge {
		return true
	}
	d.seen[fp] = now

	if d.limiter.Allow() {
		d.compactLocked(now)
	}
	return false
}

func (d *Dedup) compactLocked(now time.Time) {
	for fp, t := range d.seen {
		if now.Sub(t) >= dedupMaxAge {
			delete(d.seen, fp)
		}
	}
	if len(d.seen) <= dedupMaxEntries {
		return
	}
	// Halve by dropping the oldest half of remaining entries.
	type entry struct {
		fp string
		t  time.Time
	}
	entries := make([]entry, 0, len(d.seen))
	for fp, t := range d.seen {
		entries = append(entries, entry{fp, t})
	}
	// Simple partial selection: repeatedly find and drop the oldest until
	// halved. Bounded by dedupMaxEntries so this stays cheap in practice.
	for len(d.seen) > dedupMaxEntries/2 {
		oldestIdx := -1
		var oldestTime time.Time
		for i, e := range entries {
			if _, stillPresent := d.seen[e.fp]; !stillPresent {
				continue
			}
			if oldestIdx == -1 || e.t.Before(oldestTime) {
				oldestIdx = i
				oldestTime = e.t
			}
		}
		if oldestIdx == -1 {
			break
		}
		delete(d.seen, entries[oldestIdx].fp)
	}
}
