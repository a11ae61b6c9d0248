package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// RawItem is one decoded entry from a raw dump. Dumps come from scrapers with
// no schema guarantees, so fields are coerced at access time instead of being
// bound to a struct at unmarshal time.
type RawItem map[string]any

// String coerces the value under key to text. Numeric ids show up as JSON
// numbers in some dumps; they come back formatted, not dropped.
func (r RawItem) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Value returns the raw value under key, nil when absent.
func (r RawItem) Value(key string) any {
	return r[key]
}

// List returns the entries under key as raw items. The returned length always
// matches the underlying list; entries that are not objects come back empty
// rather than dropped, so nested-list counts stay aligned with what callers
// derive from them.
func (r RawItem) List(key string) []RawItem {
	raw, ok := r[key].([]any)
	if !ok {
		return nil
	}

	items := make([]RawItem, len(raw))
	for i, el := range raw {
		if m, ok := el.(map[string]any); ok {
			items[i] = RawItem(m)
		} else {
			items[i] = RawItem{}
		}
	}
	return items
}

// DecodeRawItems parses a raw dump body. A dump is either a JSON array of
// items or a single item object; both decode to a slice. Numbers are kept as
// json.Number so large numeric ids survive without float formatting.
func DecodeRawItems(data []byte) ([]RawItem, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty dump body")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var items []RawItem
	if trimmed[0] == '[' {
		if err := dec.Decode(&items); err != nil {
			return nil, fmt.Errorf("failed to decode dump list: %w", err)
		}
	} else {
		var item RawItem
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("failed to decode dump item: %w", err)
		}
		items = []RawItem{item}
	}

	// A dump is a single JSON value; anything after it is corruption, not
	// extra items.
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after dump body")
	}
	return items, nil
}
