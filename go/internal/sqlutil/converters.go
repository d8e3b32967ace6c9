package sqlutil

import (
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between Go types and nullable SQL types

// ToNullRawMessage converts a raw JSON document to pqtype.NullRawMessage.
// A nil document maps to SQL NULL.
func ToNullRawMessage(doc []byte) pqtype.NullRawMessage {
	if doc == nil {
		return pqtype.NullRawMessage{Valid: false}
	}
	return pqtype.NullRawMessage{RawMessage: json.RawMessage(doc), Valid: true}
}

// FromNullRawMessage converts pqtype.NullRawMessage to a raw JSON document
func FromNullRawMessage(val pqtype.NullRawMessage) []byte {
	if !val.Valid || len(val.RawMessage) == 0 {
		return nil
	}
	return []byte(val.RawMessage)
}
