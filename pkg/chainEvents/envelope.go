package chainEvents

import (
	"encoding/json"
	"time"
)

// Envelope is an event as delivered by the chain listener, before decoding.
type Envelope struct {
	Name            string  `json:"name"`
	Address         string  `json:"address"`
	TransactionHash string  `json:"transactionHash"`
	LogIndex        *uint64 `json:"logIndex,omitempty"`
	Params          []Param `json:"params"`
}

type Param struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalJSON also accepts the snake cased transaction_hash key.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type envelope Envelope
	var raw struct {
		envelope
		SnakeTransactionHash string `json:"transaction_hash"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Envelope(raw.envelope)
	if e.TransactionHash == "" {
		e.TransactionHash = raw.SnakeTransactionHash
	}
	return nil
}

// Block is the context an event was mined in. Timestamp is in unix seconds.
type Block struct {
	Number    uint64 `json:"number"`
	Timestamp int64  `json:"timestamp"`
}

// BlockNumber returns the number of block, or 0 when it is absent.
func BlockNumber(block *Block) uint64 {
	if block == nil {
		return 0
	}
	return block.Number
}

// BlockTime returns the UTC time of block, or now when it is absent.
func BlockTime(block *Block) time.Time {
	if block == nil {
		return time.Now().UTC()
	}
	return time.Unix(block.Timestamp, 0).UTC()
}

// Event is a decoded envelope. Addresses are normalized.
type Event struct {
	Name            string
	Address         string
	TransactionHash string
	LogIndex        *uint64
	Payload         Payload
}
