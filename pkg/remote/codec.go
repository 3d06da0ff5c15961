package remote

import (
	"encoding/json"
	"fmt"
)

// MarshalBody encodes rec as a JSON document body. The id is left out; stores keep it
// as the key.
func MarshalBody(rec Record) (string, error) {
	body := rec.Clone()
	delete(body, FieldID)

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("error encoding document: %w", err)
	}

	return string(raw), nil
}

// UnmarshalBody decodes a JSON document body stored under id. Dates come back as
// RFC 3339 strings.
func UnmarshalBody(id, body string) (Record, error) {
	rec := Record{}
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, fmt.Errorf("error decoding document %s: %w", id, err)
	}

	rec[FieldID] = id

	return rec, nil
}
