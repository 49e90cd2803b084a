package wire

import (
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/hpcmsg/muscore/ref"
)

// ParamKind tags a ParameterValue's active variant — a narrower sum than
// Payload's (spec.md §3): only the types permitted in configuration.
type ParamKind uint8

const (
	ParamBool ParamKind = iota
	ParamInt
	ParamFloat
	ParamString
	ParamFloatList
	ParamFloatMatrix
)

func (k ParamKind) String() string {
	switch k {
	case ParamBool:
		return "bool"
	case ParamInt:
		return "i64"
	case ParamFloat:
		return "f64"
	case ParamString:
		return "string"
	case ParamFloatList:
		return "list<f64>"
	case ParamFloatMatrix:
		return "list<list<f64>>"
	default:
		return "unknown"
	}
}

// ParameterValue is spec.md §3's ParameterValue ∈ {bool, i64, f64,
// string, list<f64>, list<list<f64>>}.
type ParameterValue struct {
	kind   ParamKind
	b      bool
	i      int64
	f      float64
	s      string
	vec    []float64
	matrix [][]float64
}

func ParamFromBool(v bool) ParameterValue     { return ParameterValue{kind: ParamBool, b: v} }
func ParamFromInt(v int64) ParameterValue     { return ParameterValue{kind: ParamInt, i: v} }
func ParamFromFloat(v float64) ParameterValue { return ParameterValue{kind: ParamFloat, f: v} }
func ParamFromString(v string) ParameterValue { return ParameterValue{kind: ParamString, s: v} }
func ParamFromFloatList(v []float64) ParameterValue {
	return ParameterValue{kind: ParamFloatList, vec: append([]float64(nil), v...)}
}
func ParamFromFloatMatrix(v [][]float64) ParameterValue {
	cp := make([][]float64, len(v))
	for i, row := range v {
		cp[i] = append([]float64(nil), row...)
	}
	return ParameterValue{kind: ParamFloatMatrix, matrix: cp}
}

func (v ParameterValue) Kind() ParamKind { return v.kind }

func (v ParameterValue) Bool() (bool, bool)           { return v.b, v.kind == ParamBool }
func (v ParameterValue) Int() (int64, bool)           { return v.i, v.kind == ParamInt }
func (v ParameterValue) Float() (float64, bool)       { return v.f, v.kind == ParamFloat }
func (v ParameterValue) String() (string, bool)       { return v.s, v.kind == ParamString }
func (v ParameterValue) FloatList() ([]float64, bool) { return v.vec, v.kind == ParamFloatList }
func (v ParameterValue) FloatMatrix() ([][]float64, bool) {
	return v.matrix, v.kind == ParamFloatMatrix
}

func (v ParameterValue) Equal(o ParameterValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ParamBool:
		return v.b == o.b
	case ParamInt:
		return v.i == o.i
	case ParamFloat:
		return v.f == o.f
	case ParamString:
		return v.s == o.s
	case ParamFloatList:
		return floatSliceEqual(v.vec, o.vec)
	case ParamFloatMatrix:
		if len(v.matrix) != len(o.matrix) {
			return false
		}
		for i := range v.matrix {
			if !floatSliceEqual(v.matrix[i], o.matrix[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func floatSliceEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Coerce converts v to expected if the two types are compatible under
// config.ConfigurationStore's coercion rules (spec.md §4.4): bool<->bool
// only, numeric widening i64->f64 allowed, every other cross-type
// coercion rejected. ok is false (rather than an error) so callers that
// don't care about the specific expected type can skip the check.
func (v ParameterValue) Coerce(expected ParamKind) (ParameterValue, bool) {
	if v.kind == expected {
		return v, true
	}
	if v.kind == ParamInt && expected == ParamFloat {
		return ParamFromFloat(float64(v.i)), true
	}
	return ParameterValue{}, false
}

type paramWire struct {
	Kind   string        `json:"kind"`
	Bool   bool          `json:"bool,omitempty"`
	Int    int64         `json:"int,omitempty"`
	Float  float64       `json:"float,omitempty"`
	Str    string        `json:"str,omitempty"`
	Vec    []float64     `json:"vec,omitempty"`
	Matrix [][]float64   `json:"matrix,omitempty"`
}

var paramKindNames = map[ParamKind]string{
	ParamBool: "bool", ParamInt: "int", ParamFloat: "float", ParamString: "string",
	ParamFloatList: "vec", ParamFloatMatrix: "matrix",
}
var paramKindByName = func() map[string]ParamKind {
	m := make(map[string]ParamKind, len(paramKindNames))
	for k, v := range paramKindNames {
		m[v] = k
	}
	return m
}()

func (v ParameterValue) MarshalJSON() ([]byte, error) {
	w := paramWire{Kind: paramKindNames[v.kind]}
	switch v.kind {
	case ParamBool:
		w.Bool = v.b
	case ParamInt:
		w.Int = v.i
	case ParamFloat:
		w.Float = v.f
	case ParamString:
		w.Str = v.s
	case ParamFloatList:
		w.Vec = v.vec
	case ParamFloatMatrix:
		w.Matrix = v.matrix
	}
	return jsoniter.Marshal(w)
}

func (v *ParameterValue) UnmarshalJSON(data []byte) error {
	var w paramWire
	if err := jsoniter.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, ok := paramKindByName[w.Kind]
	if !ok {
		return fmt.Errorf("wire: unknown parameter kind %q", w.Kind)
	}
	*v = ParameterValue{kind: kind, b: w.Bool, i: w.Int, f: w.Float, s: w.Str, vec: w.Vec, matrix: w.Matrix}
	return nil
}

// Configuration is spec.md §3's Configuration: a mapping from setting
// name (a Reference) to ParameterValue. Two configurations are equal iff
// they have the same keys and equal values.
//
// ref.Reference embeds a slice and so is not map-key comparable; entries
// are indexed by Reference.Key() with the original Reference retained
// for iteration (Keys/Entries).
type Configuration struct {
	names  map[string]ref.Reference
	values map[string]ParameterValue
}

func NewConfiguration() *Configuration {
	return &Configuration{names: map[string]ref.Reference{}, values: map[string]ParameterValue{}}
}

func (c *Configuration) Len() int {
	if c == nil {
		return 0
	}
	return len(c.values)
}

func (c *Configuration) Set(name ref.Reference, v ParameterValue) {
	key := name.Key()
	c.names[key] = name
	c.values[key] = v
}

func (c *Configuration) Get(name ref.Reference) (ParameterValue, bool) {
	if c == nil {
		return ParameterValue{}, false
	}
	v, ok := c.values[name.Key()]
	return v, ok
}

// GetByKey looks up a setting by its already-rendered Reference.Key(),
// for callers (config.ConfigurationStore) that build composite keys like
// "instance.name" without reparsing them back into a Reference.
func (c *Configuration) GetByKey(key string) (ParameterValue, bool) {
	if c == nil {
		return ParameterValue{}, false
	}
	v, ok := c.values[key]
	return v, ok
}

func (c *Configuration) Keys() []ref.Reference {
	if c == nil {
		return nil
	}
	out := make([]ref.Reference, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Clone returns an independent deep-enough copy (ParameterValue is
// itself immutable after construction).
func (c *Configuration) Clone() *Configuration {
	out := NewConfiguration()
	if c == nil {
		return out
	}
	for k, n := range c.names {
		out.names[k] = n
		out.values[k] = c.values[k]
	}
	return out
}

// MergeOver returns a new Configuration with base's entries overridden by
// this configuration's entries — "merge it over the configuration
// attached to the message" (spec.md §4.1 step 1).
func (c *Configuration) MergeOver(base *Configuration) *Configuration {
	out := base.Clone()
	if c == nil {
		return out
	}
	for k, n := range c.names {
		out.names[k] = n
		out.values[k] = c.values[k]
	}
	return out
}

// MarshalJSON encodes a Configuration as {name: ParameterValue}, using
// Reference.String() as the JSON key; UnmarshalJSON reparses each key
// back into a Reference via ref.Parse so the wire form round-trips
// through Set/Get like any other Configuration.
func (c *Configuration) MarshalJSON() ([]byte, error) {
	out := make(map[string]ParameterValue, c.Len())
	for k, v := range c.values {
		out[k] = v
	}
	return jsoniter.Marshal(out)
}

func (c *Configuration) UnmarshalJSON(data []byte) error {
	var in map[string]ParameterValue
	if err := jsoniter.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = *NewConfiguration()
	for k, v := range in {
		name, err := ref.Parse(k)
		if err != nil {
			return err
		}
		c.Set(name, v)
	}
	return nil
}

func (c *Configuration) Equal(o *Configuration) bool {
	if c.Len() != o.Len() {
		return false
	}
	for k, v := range c.values {
		ov, ok := o.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
