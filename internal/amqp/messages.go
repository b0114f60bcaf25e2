package amqp

import (
	"encoding/json"
	"time"
)

// Op names the kind of mutation a ChangeMessage reports.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpReload Op = "reload"
)

// ChangeMessage announces that the nota collection changed. It carries only
// enough to order events; consumers reload the collection from the store.
type ChangeMessage struct {
	Op        Op        `json:"op"`
	ID        string    `json:"id,omitempty"`
	Date      string    `json:"date,omitempty"`
	Count     int       `json:"count"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage stamps a change with the current time.
func NewChangeMessage(op Op, id, date string, count int, version int64) *ChangeMessage {
	return &ChangeMessage{
		Op:        op,
		ID:        id,
		Date:      date,
		Count:     count,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
