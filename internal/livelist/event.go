package livelist

import (
	"encoding/json"
	"fmt"
)

// Kind is the type of row change carried by an Event.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Event is one change pushed by the server. Record is the full row; for a
// delete it is the last snapshot and only its key matters.
type Event[T any] struct {
	Kind   Kind
	Record T
}

// DecodeEvent builds an Event from the wire form of a change.
func DecodeEvent[T any](kind string, record []byte) (Event[T], error) {
	var ev Event[T]
	switch Kind(kind) {
	case KindInsert, KindUpdate, KindDelete:
		ev.Kind = Kind(kind)
	default:
		return ev, fmt.Errorf("unknown event kind %q", kind)
	}
	if err := json.Unmarshal(record, &ev.Record); err != nil {
		return ev, fmt.Errorf("decode %s record: %w", kind, err)
	}
	return ev, nil
}
