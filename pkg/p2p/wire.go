package p2p

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Envelope is the gossip wire format for one monitoring event.
type Envelope struct {
	Topic   string          `json:"topic"`
	Account common.Address  `json:"account"`
	Seq     uint64          `json:"seq"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

func encodeEnvelope(topic string, acct common.Address, seq uint64, at time.Time, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return json.Marshal(Envelope{Topic: topic, Account: acct, Seq: seq, Time: at.UTC(), Payload: raw})
}

func decodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Topic == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing topic")
	}
	return env, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}
