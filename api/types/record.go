package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// RawRecord is one item as returned by a provider. It keeps the key order of the
// source document so that exports and audits reproduce the payload faithfully.
// Nested objects decode to RawRecord, arrays to []any and numbers to json.Number.
type RawRecord struct {
	keys   []string
	values map[string]any
}

// NewRawRecord builds a record from alternating key/value pairs.
func NewRawRecord(kv ...any) RawRecord {
	r := RawRecord{}
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		r.Set(k, kv[i+1])
	}
	return r
}

// Get returns the value stored under key.
func (r RawRecord) Get(key string) (any, bool) {
	if r.values == nil {
		return nil, false
	}
	v, ok := r.values[key]
	return v, ok
}

// Set stores value under key, appending the key if it is new.
func (r *RawRecord) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Keys returns the keys in document order.
func (r RawRecord) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r RawRecord) Len() int {
	return len(r.keys)
}

func (r RawRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshaling key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *RawRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("raw record must be a JSON object, got %v", tok)
	}
	out, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*r = out
	return nil
}

// decodeObject reads the members of an object whose opening brace was already consumed.
func decodeObject(dec *json.Decoder) (RawRecord, error) {
	out := RawRecord{values: map[string]any{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return out, err
		}
		key, ok := tok.(string)
		if !ok {
			return out, fmt.Errorf("expected object key, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return out, fmt.Errorf("decoding %q: %w", key, err)
		}
		out.Set(key, val)
	}
	// closing brace
	if _, err := dec.Token(); err != nil {
		return out, err
	}
	return out, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err == io.EOF {
		return nil, io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			items := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return items, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return t, nil
	}
}

// Engagement holds the interaction counters of a record. Absent counters are zero.
type Engagement struct {
	Views     int64 `json:"views"`
	Likes     int64 `json:"likes"`
	Replies   int64 `json:"replies"`
	Reshares  int64 `json:"reshares"`
	Quotes    int64 `json:"quotes"`
	Bookmarks int64 `json:"bookmarks"`
	Reactions int64 `json:"reactions"`
}

// CanonicalRecord is the provider independent shape every backend result is reduced to.
type CanonicalRecord struct {
	ID           string     `json:"id"`
	SourceTarget string     `json:"source_target"`
	Provider     ProviderId `json:"provider"`
	Timestamp    string     `json:"timestamp"`
	Author       string     `json:"author"`
	BodyText     string     `json:"body_text"`
	Engagement   Engagement `json:"engagement"`
	CanonicalURL string     `json:"canonical_url"`
	MediaURLs    []string   `json:"media_urls"`
	IsReshare    bool       `json:"is_reshare"`
	Lang         string     `json:"lang,omitempty"`
	ProviderRaw  RawRecord  `json:"provider_raw"`
}
