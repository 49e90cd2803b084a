package wire

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Kind tags a Payload's active variant (DESIGN.md "dynamic-typed
// payload"): Payload is a tagged sum, never an interface{} dispatched
// polymorphically.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindClosePort
)

// Payload is spec.md §3's Payload sum type: scalar (bool/int/float/
// string), byte blob, list, dict, or the ClosePort sentinel.
type Payload struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	bytes []byte
	list  []Payload
	m     map[string]Payload
}

func Bool(v bool) Payload       { return Payload{kind: KindBool, b: v} }
func Int(v int64) Payload       { return Payload{kind: KindInt, i: v} }
func Float(v float64) Payload   { return Payload{kind: KindFloat, f: v} }
func String(v string) Payload   { return Payload{kind: KindString, s: v} }
func Bytes(v []byte) Payload    { return Payload{kind: KindBytes, bytes: append([]byte(nil), v...)} }
func List(v ...Payload) Payload { return Payload{kind: KindList, list: append([]Payload(nil), v...)} }
func Map(v map[string]Payload) Payload {
	cp := make(map[string]Payload, len(v))
	for k, vv := range v {
		cp[k] = vv
	}
	return Payload{kind: KindMap, m: cp}
}

// ClosePortPayload is the sentinel end-of-stream payload (spec.md §3, §5).
func ClosePortPayload() Payload { return Payload{kind: KindClosePort} }

func (p Payload) Kind() Kind        { return p.kind }
func (p Payload) IsClosePort() bool { return p.kind == KindClosePort }

func (p Payload) AsBool() (bool, bool)          { return p.b, p.kind == KindBool }
func (p Payload) AsInt() (int64, bool)          { return p.i, p.kind == KindInt }
func (p Payload) AsFloat() (float64, bool)      { return p.f, p.kind == KindFloat }
func (p Payload) AsString() (string, bool)      { return p.s, p.kind == KindString }
func (p Payload) AsBytes() ([]byte, bool)       { return p.bytes, p.kind == KindBytes }
func (p Payload) AsList() ([]Payload, bool)     { return p.list, p.kind == KindList }
func (p Payload) AsMap() (map[string]Payload, bool) { return p.m, p.kind == KindMap }

func (p Payload) Equal(o Payload) bool {
	if p.kind != o.kind {
		return false
	}
	switch p.kind {
	case KindBool:
		return p.b == o.b
	case KindInt:
		return p.i == o.i
	case KindFloat:
		return p.f == o.f
	case KindString:
		return p.s == o.s
	case KindBytes:
		return string(p.bytes) == string(o.bytes)
	case KindList:
		if len(p.list) != len(o.list) {
			return false
		}
		for i := range p.list {
			if !p.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(p.m) != len(o.m) {
			return false
		}
		for k, v := range p.m {
			ov, ok := o.m[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	default: // ClosePort
		return true
	}
}

func (p Payload) String() string {
	switch p.kind {
	case KindBool:
		return fmt.Sprintf("%t", p.b)
	case KindInt:
		return fmt.Sprintf("%d", p.i)
	case KindFloat:
		return fmt.Sprintf("%g", p.f)
	case KindString:
		return p.s
	case KindBytes:
		return fmt.Sprintf("<%d bytes>", len(p.bytes))
	case KindList:
		return fmt.Sprintf("<list len=%d>", len(p.list))
	case KindMap:
		return fmt.Sprintf("<map len=%d>", len(p.m))
	default:
		return "<close-port>"
	}
}

// wire representation: a small tagged envelope, the same "kind + value"
// shape cmn/cos's custom (Un)MarshalJSON methods use for FsID.
type payloadWire struct {
	Kind  string            `json:"kind"`
	Bool  bool              `json:"bool,omitempty"`
	Int   int64             `json:"int,omitempty"`
	Float float64           `json:"float,omitempty"`
	Str   string            `json:"str,omitempty"`
	Bytes []byte            `json:"bytes,omitempty"`
	List  []Payload         `json:"list,omitempty"`
	Map   map[string]Payload `json:"map,omitempty"`
}

var kindNames = map[Kind]string{
	KindBool: "bool", KindInt: "int", KindFloat: "float", KindString: "string",
	KindBytes: "bytes", KindList: "list", KindMap: "map", KindClosePort: "close_port",
}
var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

func (p Payload) MarshalJSON() ([]byte, error) {
	w := payloadWire{Kind: kindNames[p.kind]}
	switch p.kind {
	case KindBool:
		w.Bool = p.b
	case KindInt:
		w.Int = p.i
	case KindFloat:
		w.Float = p.f
	case KindString:
		w.Str = p.s
	case KindBytes:
		w.Bytes = p.bytes
	case KindList:
		w.List = p.list
	case KindMap:
		w.Map = p.m
	}
	return jsoniter.Marshal(w)
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var w payloadWire
	if err := jsoniter.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, ok := kindByName[w.Kind]
	if !ok {
		return fmt.Errorf("wire: unknown payload kind %q", w.Kind)
	}
	*p = Payload{kind: kind, b: w.Bool, i: w.Int, f: w.Float, s: w.Str, bytes: w.Bytes, list: w.List, m: w.Map}
	return nil
}
