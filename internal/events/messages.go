package events

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// RoutingKeyTransactionsChanged is published whenever an owner's
// transactions are created, edited or deleted.
const RoutingKeyTransactionsChanged = "transactions.changed"

// ErrInvalidMessage is returned for bodies that cannot be processed.
var ErrInvalidMessage = errors.New("invalid message")

// TransactionsChanged tells consumers that derived data for an owner is stale.
type TransactionsChanged struct {
	OwnerID   string    `json:"owner_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionsChanged creates a message stamped with the current time.
func NewTransactionsChanged(ownerID string) *TransactionsChanged {
	return &TransactionsChanged{
		OwnerID:   ownerID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionsChanged) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionsChangedFromJSON decodes and validates a message body.
func TransactionsChangedFromJSON(data []byte) (*TransactionsChanged, error) {
	var msg TransactionsChanged
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Join(ErrInvalidMessage, err)
	}
	msg.OwnerID = strings.TrimSpace(msg.OwnerID)
	if msg.OwnerID == "" {
		return nil, errors.Join(ErrInvalidMessage, errors.New("owner_id is required"))
	}
	return &msg, nil
}
