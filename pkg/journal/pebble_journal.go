package journal

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

// Key schema:
//   sub:{unix-nanos, 20 digits}:{seq, 10 digits}:{orderID} → Entry (JSON)
// Zero padding keeps keys in time order for iteration; seq breaks ties
// between entries recorded in the same nanosecond.
const prefixEntry = "sub:"

func entryKey(e Entry, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d:%010d:%s", prefixEntry, e.At.UnixNano(), seq, e.OrderID))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

type PebbleJournal struct {
	db  *pebble.DB
	seq atomic.Uint64
}

func OpenPebble(path string) (*PebbleJournal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &PebbleJournal{db: db}, nil
}

func (j *PebbleJournal) Close() error { return j.db.Close() }

// Record appends an entry. Writes are not synced: losing the tail of the
// audit trail on a crash is acceptable.
func (j *PebbleJournal) Record(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	if err := j.db.Set(entryKey(e, j.seq.Add(1)), data, pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *PebbleJournal) Recent(limit int) ([]Entry, error) {
	prefix := []byte(prefixEntry)
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal iterator: %w", err)
	}
	defer iter.Close()

	var entries []Entry
	for iter.Last(); iter.Valid() && len(entries) < limit; iter.Prev() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue // Skip invalid entries
		}
		entries = append(entries, e)
	}
	return entries, nil
}
