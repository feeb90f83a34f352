// Package jsonenc renders normalized model trees as JSON text. It owns the
// rendering of scalars encoding/json has no opinion on: calendar dates and
// arbitrary-precision numbers.
package jsonenc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"slices"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DateLayout is used for times with no clock component.
const DateLayout = "2006-01-02"

// Encoder marshals ordered mappings, sequences and scalars.
type Encoder struct {
	prefix     string
	indent     string
	sortKeys   bool
	timeLayout string
}

// Option configures an Encoder.
type Option func(*Encoder)

// Indent pretty-prints output like json.MarshalIndent.
func Indent(prefix, indent string) Option {
	return func(e *Encoder) {
		e.prefix = prefix
		e.indent = indent
	}
}

// SortKeys emits mapping keys in lexicographic order instead of field order.
func SortKeys(on bool) Option {
	return func(e *Encoder) { e.sortKeys = on }
}

// TimeLayout sets the layout for times that carry a clock component.
func TimeLayout(layout string) Option {
	return func(e *Encoder) { e.timeLayout = layout }
}

// New returns an Encoder configured by opts.
func New(opts ...Option) *Encoder {
	e := &Encoder{timeLayout: time.RFC3339Nano}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Marshal renders v as JSON.
func (e *Encoder) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(e.prepare(v))
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	if e.prefix == "" && e.indent == "" {
		return data, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, e.prefix, e.indent); err != nil {
		return nil, fmt.Errorf("indent json: %w", err)
	}
	return buf.Bytes(), nil
}

// prepare copies v, replacing scalars encoding/json would render poorly.
func (e *Encoder) prepare(v any) any {
	switch t := v.(type) {
	case *orderedmap.OrderedMap[string, any]:
		if t == nil {
			return nil
		}
		out := orderedmap.New[string, any]()
		var keys []string
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			keys = append(keys, pair.Key)
		}
		if e.sortKeys {
			slices.Sort(keys)
		}
		for _, k := range keys {
			val, _ := t.Get(k)
			out.Set(k, e.prepare(val))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = e.prepare(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = e.prepare(val)
		}
		return out
	case time.Time:
		return e.formatTime(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return e.formatTime(*t)
	case *big.Int:
		if t == nil {
			return nil
		}
		return json.Number(t.String())
	case *big.Float:
		if t == nil {
			return nil
		}
		// JSON has no infinity; render it as the string "+Inf" or "-Inf".
		if t.IsInf() {
			return t.Text('g', -1)
		}
		return json.Number(t.Text('g', -1))
	case *big.Rat:
		if t == nil {
			return nil
		}
		if t.IsInt() {
			return json.Number(t.Num().String())
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}

func (e *Encoder) formatTime(t time.Time) string {
	h, m, s := t.Clock()
	if h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format(e.timeLayout)
}
