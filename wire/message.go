package wire

import (
	jsoniter "github.com/json-iterator/go"
)

// Message is spec.md §3's Message: {timestamp, next_timestamp, data,
// configuration}. On the wire, Configuration is always present (empty if
// unset, never nil) — Serialize enforces that; Deserialize always
// returns a non-nil Configuration for the same reason. Stripping it back
// off before handing a Message to user code (unless the user asked for
// it) is done by instance.Instance.ReceiveMessage via Stripped, not by
// this package.
type Message struct {
	Timestamp     float64
	NextTimestamp *float64
	Data          Payload
	Configuration *Configuration
}

func NewMessage(timestamp float64, nextTimestamp *float64, data Payload) *Message {
	return &Message{Timestamp: timestamp, NextTimestamp: nextTimestamp, Data: data, Configuration: NewConfiguration()}
}

// Equal implements spec.md §8 invariant 5 (serialize/deserialize
// round-trip equality), comparing configuration content rather than
// pointer identity.
func (m *Message) Equal(o *Message) bool {
	if m.Timestamp != o.Timestamp {
		return false
	}
	if (m.NextTimestamp == nil) != (o.NextTimestamp == nil) {
		return false
	}
	if m.NextTimestamp != nil && *m.NextTimestamp != *o.NextTimestamp {
		return false
	}
	if !m.Data.Equal(o.Data) {
		return false
	}
	return m.Configuration.Equal(o.Configuration)
}

type messageWire struct {
	Timestamp     float64        `json:"timestamp"`
	NextTimestamp *float64       `json:"next_timestamp,omitempty"`
	Data          Payload        `json:"data"`
	Configuration *Configuration `json:"configuration"`
}

// Serialize encodes a Message for the transport layer. This is the wire
// envelope only — the Payload codec proper (how scalar/bytes/list/dict
// values themselves are represented) is spec.md §1's external
// "serialization codec for payload values" collaborator; jsoniter here
// plays the same "fast stdlib drop-in" role it plays throughout the
// teacher's cmn/ai s packages, not the codec itself.
func Serialize(m *Message) ([]byte, error) {
	cfg := m.Configuration
	if cfg == nil {
		cfg = NewConfiguration()
	}
	return jsoniter.Marshal(messageWire{
		Timestamp:     m.Timestamp,
		NextTimestamp: m.NextTimestamp,
		Data:          m.Data,
		Configuration: cfg,
	})
}

func Deserialize(data []byte) (*Message, error) {
	var w messageWire
	if err := jsoniter.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	cfg := w.Configuration
	if cfg == nil {
		cfg = NewConfiguration()
	}
	return &Message{Timestamp: w.Timestamp, NextTimestamp: w.NextTimestamp, Data: w.Data, Configuration: cfg}, nil
}

// Stripped returns a copy of m with an empty Configuration, used when
// handing a message to user code that did not request the overlay
// (spec.md §3: "stripped unless the user requested it").
func (m *Message) Stripped() *Message {
	return &Message{Timestamp: m.Timestamp, NextTimestamp: m.NextTimestamp, Data: m.Data, Configuration: NewConfiguration()}
}
