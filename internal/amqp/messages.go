package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"montaxi/internal/core"
)

// Operations carried by a change message
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// RecordChangedMessage tells consumers that one record of a collection changed.
// It carries only identifiers; consumers reload the collection from the store.
type RecordChangedMessage struct {
	Kind      core.Kind `json:"kind"`
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordChangedMessage(kind core.Kind, id, op string) *RecordChangedMessage {
	return &RecordChangedMessage{
		Kind:      kind,
		ID:        id,
		Op:        op,
		Timestamp: time.Now().UTC(),
	}
}

func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangedMessageFromJSON decodes and checks a message body.
func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Kind.Valid() {
		return nil, fmt.Errorf("unknown record kind %q", msg.Kind)
	}
	switch msg.Op {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return nil, fmt.Errorf("unknown operation %q", msg.Op)
	}
	return &msg, nil
}
