package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Value is one JSON value that survives a decode/encode round trip without
// churn: scalars keep their exact source bytes and objects keep their member
// order. Settings documents are user-edited files, so rewrites must not
// reorder keys or reformat numbers the user wrote.
type Value struct {
	object *Object
	array  []*Value
	raw    json.RawMessage
}

// NewValue builds a Value from any Go value by round-tripping it through
// encoding/json.
func NewValue(v any) (*Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var out Value
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// NewObjectValue returns a Value holding an empty object.
func NewObjectValue() *Value {
	return &Value{object: newObject()}
}

// Object returns the value as an object, if it is one.
func (v *Value) Object() (*Object, bool) {
	return v.object, v.object != nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty JSON value")
	}

	*v = Value{}

	switch trimmed[0] {
	case '{':
		obj := newObject()
		if err := json.Unmarshal(trimmed, obj); err != nil {
			return err
		}

		v.object = obj

	case '[':
		var arr []*Value
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return err
		}

		v.array = arr

	default:
		v.raw = append(json.RawMessage(nil), trimmed...)
	}

	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (v *Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.object != nil:
		return json.Marshal(v.object)
	case v.array != nil:
		return json.Marshal(v.array)
	case v.raw != nil:
		return v.raw, nil
	default:
		return []byte("null"), nil
	}
}

// Object is a JSON object that remembers the order its members appeared in.
// Duplicate keys in the source keep the first occurrence's position and the
// last occurrence's value.
type Object struct {
	keys    []string
	members map[string]*Value
}

func newObject() *Object {
	return &Object{members: make(map[string]*Value)}
}

// Len returns the member count.
func (o *Object) Len() int {
	return len(o.keys)
}

// Keys returns the member names in document order.
func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

// Get returns the member for key, if present.
func (o *Object) Get(key string) (*Value, bool) {
	v, ok := o.members[key]

	return v, ok
}

// Set adds or replaces a member. New keys append at the end; existing keys
// keep their position.
func (o *Object) Set(key string, v *Value) {
	if o.members == nil {
		o.members = make(map[string]*Value)
	}

	if _, ok := o.members[key]; !ok {
		o.keys = append(o.keys, key)
	}

	o.members[key] = v
}

// Delete removes a member if present.
func (o *Object) Delete(key string) {
	if _, ok := o.members[key]; !ok {
		return
	}

	delete(o.members, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (o *Object) UnmarshalJSON(data []byte) error {
	o.keys = nil

	if o.members == nil {
		o.members = make(map[string]*Value)
	} else {
		clear(o.members)
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if tok != json.Delim('{') {
		return fmt.Errorf("not a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}

		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("object key is not a string: %v", keyTok)
		}

		var v Value
		if err := dec.Decode(&v); err != nil {
			return err
		}

		o.Set(key, &v)
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}

	return nil
}

// MarshalJSON implements the json.Marshaler interface. Members are written
// in document order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}

		buf.Write(keyJSON)
		buf.WriteByte(':')

		valJSON, err := json.Marshal(o.members[key])
		if err != nil {
			return nil, err
		}

		buf.Write(valJSON)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
