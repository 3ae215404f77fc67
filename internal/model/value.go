package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a metadata value extracted from a model reply: a scalar, a
// sequence of values, or an ordered mapping of string keys to values.
// The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	seq  []Value
	mp   Mapping
}

func Null() Value                { return Value{} }
func String(s string) Value      { return Value{kind: KindString, str: s} }
func Number(f float64) Value     { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Sequence(vs ...Value) Value { return Value{kind: KindSequence, seq: vs} }
func Map(m Mapping) Value        { return Value{kind: KindMapping, mp: m} }

func (v Value) Kind() Kind       { return v.kind }
func (v Value) Str() string      { return v.str }
func (v Value) Num() float64     { return v.num }
func (v Value) Bool() bool       { return v.b }
func (v Value) Items() []Value   { return v.seq }
func (v Value) Mapping() Mapping { return v.mp }

// Text renders a scalar the way search compares it. Containers and null
// render as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Contains reports whether q, which must already be lower-cased, is a
// substring of some scalar leaf reachable from v.
func (v Value) Contains(q string) bool {
	switch v.kind {
	case KindString, KindNumber, KindBool:
		return strings.Contains(strings.ToLower(v.Text()), q)
	case KindSequence:
		for _, item := range v.seq {
			if item.Contains(q) {
				return true
			}
		}
		return false
	case KindMapping:
		return v.mp.Contains(q)
	}
	return false
}

// Equal reports structural equality. Mapping key order is significant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		return v.mp.Equal(o.mp)
	}
	return false
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return fmt.Errorf("unsupported number %v", v.num)
		}
		buf.WriteString(formatNumber(v.num))
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindSequence:
		buf.WriteByte('[')
		for i, item := range v.seq {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMapping:
		return v.mp.writeJSON(buf)
	}
	return nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid JSON value")
	}
	*v = FromJSON(gjson.ParseBytes(data))
	return nil
}

// FromJSON converts a parsed gjson result into a Value, keeping object key
// order as it appears in the source text.
func FromJSON(r gjson.Result) Value {
	switch r.Type {
	case gjson.String:
		return String(r.Str)
	case gjson.Number:
		return Number(r.Num)
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	case gjson.JSON:
		if r.IsArray() {
			items := []Value{}
			r.ForEach(func(_, item gjson.Result) bool {
				items = append(items, FromJSON(item))
				return true
			})
			return Sequence(items...)
		}
		m := NewMapping()
		r.ForEach(func(key, item gjson.Result) bool {
			m.Set(key.String(), FromJSON(item))
			return true
		})
		return Map(m)
	}
	return Null()
}

func (v Value) MarshalYAML() (interface{}, error) {
	return v.yamlNode(), nil
}

func (v Value) yamlNode() *yaml.Node {
	switch v.kind {
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.str}
	case KindNumber:
		tag := "!!float"
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1e15 {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: formatNumber(v.num)}
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.b)}
	case KindSequence:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.seq {
			n.Content = append(n.Content, item.yamlNode())
		}
		return n
	case KindMapping:
		return v.mp.yamlNode()
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	out, err := fromYAML(node)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func fromYAML(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null(), nil
		}
		return fromYAML(node.Content[0])
	case yaml.AliasNode:
		return fromYAML(node.Alias)
	case yaml.SequenceNode:
		items := []Value{}
		for _, c := range node.Content {
			item, err := fromYAML(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Sequence(items...), nil
	case yaml.MappingNode:
		m := NewMapping()
		if err := m.UnmarshalYAML(node); err != nil {
			return Value{}, err
		}
		return Map(m), nil
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return Null(), nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return Value{}, err
			}
			return Bool(b), nil
		case "!!int", "!!float":
			var f float64
			if err := node.Decode(&f); err != nil {
				return Value{}, err
			}
			return Number(f), nil
		default:
			return String(node.Value), nil
		}
	}
	return Value{}, fmt.Errorf("unsupported yaml node kind %d", node.Kind)
}

// formatNumber prints f in plain decimal for magnitudes in [1e-6, 1e21) and
// in exponent form otherwise, e.g. 1e+21 and 1.5e-7.
func formatNumber(f float64) string {
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
		return mant + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Mapping is an ordered map of string keys to Values. The zero Mapping is
// empty and ready to use; copies share the same underlying entries.
type Mapping struct {
	om *orderedmap.OrderedMap[string, Value]
}

// NewMapping returns an empty mapping.
func NewMapping() Mapping {
	return Mapping{om: orderedmap.New[string, Value]()}
}

func (m Mapping) Len() int {
	if m.om == nil {
		return 0
	}
	return m.om.Len()
}

func (m Mapping) Get(key string) (Value, bool) {
	if m.om == nil {
		return Value{}, false
	}
	return m.om.Get(key)
}

// Set inserts or replaces key. A replaced key keeps its original position.
func (m *Mapping) Set(key string, v Value) {
	if m.om == nil {
		m.om = orderedmap.New[string, Value]()
	}
	m.om.Set(key, v)
}

// Each visits entries in insertion order until fn returns false.
func (m Mapping) Each(fn func(key string, v Value) bool) {
	if m.om == nil {
		return
	}
	for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

func (m Mapping) Keys() []string {
	keys := make([]string, 0, m.Len())
	m.Each(func(k string, _ Value) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Contains reports whether q (lower-cased) is found in any value. Keys are
// not searched.
func (m Mapping) Contains(q string) bool {
	found := false
	m.Each(func(_ string, v Value) bool {
		found = v.Contains(q)
		return !found
	})
	return found
}

func (m Mapping) Equal(o Mapping) bool {
	if m.Len() != o.Len() {
		return false
	}
	ka, kb := m.Keys(), o.Keys()
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
		va, _ := m.Get(ka[i])
		vb, _ := o.Get(kb[i])
		if !va.Equal(vb) {
			return false
		}
	}
	return true
}

func (m Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m Mapping) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	var err error
	first := true
	m.Each(func(k string, v Value) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, kerr := json.Marshal(k)
		if kerr != nil {
			err = kerr
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if err = v.writeJSON(buf); err != nil {
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func (m *Mapping) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid JSON mapping")
	}
	r := gjson.ParseBytes(data)
	if r.Type == gjson.Null {
		*m = NewMapping()
		return nil
	}
	if !r.IsObject() {
		return fmt.Errorf("metadata must be a JSON object, got %s", r.Type)
	}
	*m = FromJSON(r).mp
	return nil
}

func (m Mapping) MarshalYAML() (interface{}, error) {
	return m.yamlNode(), nil
}

func (m Mapping) yamlNode() *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Each(func(k string, v Value) bool {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			v.yamlNode())
		return true
	})
	return n
}

func (m *Mapping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("metadata must be a yaml mapping")
	}
	out := NewMapping()
	for i := 0; i+1 < len(node.Content); i += 2 {
		v, err := fromYAML(node.Content[i+1])
		if err != nil {
			return err
		}
		out.Set(node.Content[i].Value, v)
	}
	*m = out
	return nil
}
