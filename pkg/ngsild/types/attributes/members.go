package attributes

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Members is an insertion ordered mapping from member name to contents.
// The contents of a member is either a nested *Attribute or a raw JSON
// compatible value (reserved metadata and user data).
type Members struct {
	keys   []string
	values map[string]any
}

func NewMembers() *Members {
	return &Members{values: map[string]any{}}
}

func (m *Members) Len() int {
	return len(m.keys)
}

func (m *Members) Get(name string) (any, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Set stores a member, keeping the original position when the name is
// already present.
func (m *Members) Set(name string, value any) {
	if _, ok := m.values[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.values[name] = value
}

func (m *Members) Delete(name string) bool {
	if _, ok := m.values[name]; !ok {
		return false
	}

	delete(m.values, name)
	for i, k := range m.keys {
		if k == name {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}

	return true
}

func (m *Members) Each(callback func(name string, contents any)) {
	for _, k := range m.keys {
		callback(k, m.values[k])
	}
}

// RawMember is a single key/value pair of a JSON object, decoded in
// document order.
type RawMember struct {
	Name string
	Raw  json.RawMessage
}

// DecodeObject splits a JSON object into its members while preserving the
// order in which the keys appear in the document. Plain unmarshalling into
// a map would lose it.
func DecodeObject(raw []byte) ([]RawMember, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	members := make([]RawMember, 0, 8)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key, got %v", keyTok)
		}

		var value json.RawMessage
		err = dec.Decode(&value)
		if err != nil {
			return nil, err
		}

		members = append(members, RawMember{Name: key, Raw: value})
	}

	_, err = dec.Token()
	if err != nil {
		return nil, err
	}

	return members, nil
}
