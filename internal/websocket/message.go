package websocket

import (
	"encoding/json"
	"fmt"
)

// EventType is the kind of row change a Message carries.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

func (e EventType) Valid() bool {
	return e == EventInsert || e == EventUpdate || e == EventDelete
}

// Tables that can be subscribed to.
const (
	TableChores      = "chores"
	TableGroceries   = "groceries"
	TableNotes       = "notes"
	TableRedemptions = "redemptions"
	TableRewards     = "rewards"
	TableProfiles    = "profiles"
)

var tables = map[string]bool{
	TableChores:      true,
	TableGroceries:   true,
	TableNotes:       true,
	TableRedemptions: true,
	TableRewards:     true,
	TableProfiles:    true,
}

// ValidTable reports whether table can be subscribed to.
func ValidTable(table string) bool {
	return tables[table]
}

// Topic is one realtime channel: a table within a family.
type Topic struct {
	Table    string
	FamilyID string
}

// Message is a row change pushed to subscribers. Record is the full row;
// for deletes it is the last snapshot before removal.
type Message struct {
	Type      string          `json:"type"`
	Table     string          `json:"table"`
	FamilyID  string          `json:"family_id"`
	EventType EventType       `json:"event_type,omitempty"`
	Record    json.RawMessage `json:"record,omitempty"`

	// Owner, when set, is the profile the row belongs to. Subscribers scoped
	// to another profile do not receive it.
	Owner string `json:"-"`
}

// NewMessage encodes record into a Message for the given topic.
func NewMessage(table, familyID string, event EventType, record any) (Message, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s record: %w", table, err)
	}
	return Message{
		Type:      fmt.Sprintf("%s_%s", table, event),
		Table:     table,
		FamilyID:  familyID,
		EventType: event,
		Record:    raw,
	}, nil
}

// TypeSubscribed is the first message on every connection. It is sent once
// the client is registered, so anything published afterwards reaches it.
const TypeSubscribed = "subscribed"

func subscribedMessage(t Topic) []byte {
	data, _ := json.Marshal(Message{Type: TypeSubscribed, Table: t.Table, FamilyID: t.FamilyID})
	return data
}

func (m Message) Topic() Topic {
	return Topic{Table: m.Table, FamilyID: m.FamilyID}
}
