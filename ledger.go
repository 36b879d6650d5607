package rtccore

// defaultLedgerCapacity bounds the number of outstanding frame requests a
// pacer remembers before the oldest is evicted.
const defaultLedgerCapacity = 64

type ledgerEntry struct {
	id     uint32
	timeMs int64
}

// requestLedger is a bounded FIFO correlating outstanding request ids to the
// scheduled timestamp recorded when the request was issued. Ids are appended
// in issue order and are monotonically increasing per pacer. Not safe for
// concurrent use; the owning pacer guards it.
type requestLedger struct {
	capacity int
	entries  []ledgerEntry
}

func newRequestLedger(capacity int) *requestLedger {
	if capacity <= 0 {
		capacity = defaultLedgerCapacity
	}
	return &requestLedger{
		capacity: capacity,
		entries:  make([]ledgerEntry, 0, capacity),
	}
}

// push appends an entry, evicting the oldest one first if the ledger is full.
func (l *requestLedger) push(id uint32, timeMs int64) {
	if len(l.entries) >= l.capacity {
		n := copy(l.entries, l.entries[1:])
		l.entries = l.entries[:n]
	}
	l.entries = append(l.entries, ledgerEntry{id: id, timeMs: timeMs})
}

// findAndPruneThrough scans from the front for id. If found, the entry and
// everything older than it are removed and its recorded timestamp is
// returned. If absent (evicted, or foreclosed by a newer completion) the
// ledger is left untouched.
func (l *requestLedger) findAndPruneThrough(id uint32) (int64, bool) {
	for i, e := range l.entries {
		if e.id == id {
			n := copy(l.entries, l.entries[i+1:])
			l.entries = l.entries[:n]
			return e.timeMs, true
		}
	}
	return 0, false
}

func (l *requestLedger) len() int { return len(l.entries) }

func (l *requestLedger) clear() { l.entries = l.entries[:0] }
