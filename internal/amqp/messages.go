package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sources of a sync event.
const (
	SourceImport = "import"
	SourceManual = "manual"
	SourceUpdate = "update"
)

// TransactionsSyncMessage announces freshly stored transactions. It only
// carries ids; the worker reloads the rows from the database.
type TransactionsSyncMessage struct {
	BatchID   string    `json:"batch_id,omitempty"`
	OwnerID   int64     `json:"owner_id"`
	IDs       []int64   `json:"ids"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionsSyncMessage(ownerID int64, batchID, source string, ids []int64) *TransactionsSyncMessage {
	return &TransactionsSyncMessage{
		BatchID:   batchID,
		OwnerID:   ownerID,
		IDs:       append([]int64(nil), ids...),
		Source:    source,
		Timestamp: time.Now(),
	}
}

func (m *TransactionsSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionsSyncMessageFromJSON decodes and sanity-checks a message body.
func TransactionsSyncMessageFromJSON(data []byte) (*TransactionsSyncMessage, error) {
	var msg TransactionsSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID <= 0 {
		return nil, fmt.Errorf("sync message without owner")
	}
	if len(msg.IDs) == 0 {
		return nil, fmt.Errorf("sync message without ids")
	}
	return &msg, nil
}
