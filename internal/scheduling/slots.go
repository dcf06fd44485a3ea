package scheduling

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/google/uuid"
)

// SlotGranularity is the fixed slot length in minutes.
const SlotGranularity = 30

// SlotKey identifies a slot inside its parent window.
type SlotKey struct {
	WindowID uuid.UUID
	Start    Clock
}

// ID derives a stable UUID for the slot. The same key always yields the
// same id and distinct keys never share one.
func (k SlotKey) ID() uuid.UUID {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(k.Start))
	return uuid.NewSHA1(k.WindowID, b[:])
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s@%s", k.WindowID, k.Start)
}

// Slot is a derived, never persisted subdivision of a window.
type Slot struct {
	Key       SlotKey
	Start     Clock
	End       Clock
	Available bool
}

// GenerateSlots decomposes w into consecutive [cursor, cursor+granularity)
// ranges. A trailing range shorter than granularity is dropped. The returned
// sequence can be iterated any number of times.
func GenerateSlots(w Window, granularity int) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if granularity <= 0 {
			return
		}
		for cursor := w.Start; cursor.Add(granularity) <= w.End; cursor = cursor.Add(granularity) {
			s := Slot{
				Key:       SlotKey{WindowID: w.ID, Start: cursor},
				Start:     cursor,
				End:       cursor.Add(granularity),
				Available: true,
			}
			if !yield(s) {
				return
			}
		}
	}
}
