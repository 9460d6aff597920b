// Package tree implements the generic tree value decoded from responses and
// the structural rewrites applied to it.
package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Sequence
	Map
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Sequence:
		return "sequence"
	case Map:
		return "map"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a JSON-shaped tree: Null | Bool | Number | String | Sequence | Map.
// The zero Value is Null. Numbers keep their literal text so re-encoding is
// exact; maps keep key insertion order.
type Value struct {
	kind Kind
	b    bool
	text string
	seq  []Value
	m    *orderedmap.OrderedMap[string, Value]
}

// Entry is a single key/value pair of a Map value.
type Entry struct {
	Key   string
	Value Value
}

func NullValue() Value { return Value{} }
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }
func StringValue(s string) Value { return Value{kind: String, text: s} }

// NumberValue wraps a JSON number literal such as "42" or "1.5e3".
func NumberValue(literal string) Value { return Value{kind: Number, text: literal} }

func IntValue(n int64) Value { return NumberValue(strconv.FormatInt(n, 10)) }

func SequenceOf(items ...Value) Value {
	seq := make([]Value, len(items))
	copy(seq, items)
	return Value{kind: Sequence, seq: seq}
}

// NewMap returns an empty Map value.
func NewMap() Value {
	return Value{kind: Map, m: orderedmap.New[string, Value]()}
}

// MapOf builds a Map value from entries, keeping their order.
func MapOf(entries ...Entry) Value {
	v := NewMap()
	for _, e := range entries {
		v.m.Set(e.Key, e.Value)
	}
	return v
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }
func (v Value) IsScalar() bool { return v.kind != Sequence && v.kind != Map }

// Bool returns the boolean payload; false for other kinds.
func (v Value) Bool() bool { return v.kind == Bool && v.b }

// Str returns the payload of a String value; empty for other kinds.
func (v Value) Str() string {
	if v.kind != String {
		return ""
	}
	return v.text
}

// Literal returns the literal text of a Number value.
func (v Value) Literal() string {
	if v.kind != Number {
		return ""
	}
	return v.text
}

// Text renders the value as a plain string: strings unquoted, numbers and
// booleans as literals, null as empty and containers as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case Null:
		return ""
	case Bool:
		return strconv.FormatBool(v.b)
	case Number, String:
		return v.text
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// Len is the number of children of a container, 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case Sequence:
		return len(v.seq)
	case Map:
		return v.m.Len()
	}
	return 0
}

// Items returns the elements of a Sequence value.
func (v Value) Items() []Value {
	if v.kind != Sequence {
		return nil
	}
	out := make([]Value, len(v.seq))
	copy(out, v.seq)
	return out
}

// Entries returns the pairs of a Map value in insertion order.
func (v Value) Entries() []Entry {
	if v.kind != Map {
		return nil
	}
	out := make([]Entry, 0, v.m.Len())
	for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Entry{Key: pair.Key, Value: pair.Value})
	}
	return out
}

// Keys returns the keys of a Map value in insertion order.
func (v Value) Keys() []string {
	if v.kind != Map {
		return nil
	}
	out := make([]string, 0, v.m.Len())
	for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Get looks up a key of a Map value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Map {
		return Value{}, false
	}
	return v.m.Get(key)
}

// Set stores key in a Map value. It reports false when v is not a Map.
func (v Value) Set(key string, child Value) bool {
	if v.kind != Map {
		return false
	}
	v.m.Set(key, child)
	return true
}

// Child resolves one path component: a key for maps, a decimal index for
// sequences.
func (v Value) Child(part string) (Value, bool) {
	switch v.kind {
	case Map:
		return v.m.Get(part)
	case Sequence:
		i, err := strconv.Atoi(part)
		if err != nil || i < 0 || i >= len(v.seq) {
			return Value{}, false
		}
		return v.seq[i], true
	}
	return Value{}, false
}

// Walk follows path from v. A missing component stops the walk and reports false.
func (v Value) Walk(path []string) (Value, bool) {
	cur := v
	for _, part := range path {
		next, ok := cur.Child(part)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Equal reports structural equality. Map key order is ignored; numbers are
// equal when their literals match or they denote the same float.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.b == o.b
	case String:
		return v.text == o.text
	case Number:
		if v.text == o.text {
			return true
		}
		a, errA := strconv.ParseFloat(v.text, 64)
		b, errB := strconv.ParseFloat(o.text, 64)
		return errA == nil && errB == nil && a == b
	case Sequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case Map:
		if v.m.Len() != o.m.Len() {
			return false
		}
		for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
			other, ok := o.m.Get(pair.Key)
			if !ok || !pair.Value.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Null:
		return []byte("null"), nil
	case Bool:
		return []byte(strconv.FormatBool(v.b)), nil
	case Number:
		return []byte(v.text), nil
	case String:
		return json.Marshal(v.text)
	case Sequence:
		if len(v.seq) == 0 {
			return []byte("[]"), nil
		}
		return json.Marshal(v.seq)
	case Map:
		return v.m.MarshalJSON()
	}
	return nil, fmt.Errorf("tree: cannot marshal %s", v.kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("tree: empty input")
	}
	switch data[0] {
	case '{':
		m := orderedmap.New[string, Value]()
		if err := m.UnmarshalJSON(data); err != nil {
			return err
		}
		*v = Value{kind: Map, m: m}
	case '[':
		var seq []Value
		if err := json.Unmarshal(data, &seq); err != nil {
			return err
		}
		if seq == nil {
			seq = []Value{}
		}
		*v = Value{kind: Sequence, seq: seq}
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case 'n':
		if string(data) != "null" {
			return fmt.Errorf("tree: invalid literal %q", data)
		}
		*v = Value{}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = NumberValue(n.String())
	}
	return nil
}

// Parse decodes a JSON document into a Value.
func Parse(data []byte) (Value, error) {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// FromAny converts a generic decoded value (as produced by encoding/json or
// XML-to-map decoders) into a Value. Keys of Go maps are sorted so the result
// does not depend on map iteration order.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case bool:
		return BoolValue(t)
	case string:
		return StringValue(t)
	case json.Number:
		return NumberValue(t.String())
	case float64:
		return NumberValue(strconv.FormatFloat(t, 'f', -1, 64))
	case float32:
		return NumberValue(strconv.FormatFloat(float64(t), 'f', -1, 32))
	case int:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case []any:
		seq := make([]Value, len(t))
		for i, item := range t {
			seq[i] = FromAny(item)
		}
		return Value{kind: Sequence, seq: seq}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewMap()
		for _, k := range keys {
			out.m.Set(k, FromAny(t[k]))
		}
		return out
	}
	return StringValue(fmt.Sprint(x))
}
