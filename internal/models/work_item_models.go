package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// WorkItem is one unit of queue work: a pointer to a raw dump object in blob
// storage. Key may be empty; the coordinator substitutes the default key.
type WorkItem struct {
	Key string `json:"key"`
}

// DecodeWorkItems parses a queue payload into work items. Payloads are either
// a single `{"key": ...}` object or a JSON array of them.
func DecodeWorkItems(data []byte) ([]WorkItem, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var items []WorkItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode work item list: %w", err)
		}
		return items, nil
	}

	var item WorkItem
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, fmt.Errorf("failed to decode work item: %w", err)
	}
	return []WorkItem{item}, nil
}
