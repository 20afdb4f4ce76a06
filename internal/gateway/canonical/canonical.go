// Package canonical turns engine-defined domain values into one
// deterministic JSON representation. Operators supply ordered override
// tables keyed by sub-type tag; any value without an override falls back to
// a structural default projection, so a logged occurrence always has a
// defined shape.
package canonical

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/drblury/chargestream/internal/gateway/jsoncodec"
)

// Override produces the JSON fragment for a single domain value. The
// returned bytes must be a valid JSON value.
type Override func(value any) ([]byte, error)

// OverrideTable maps a sub-type tag to its override. Tags come from
// TypeTag() when the value implements Tagger, otherwise from the reflected
// type name.
type OverrideTable map[string]Override

// Tagger lets a domain value pick its own sub-type tag instead of the
// reflected type name.
type Tagger interface {
	TypeTag() string
}

// Canonicalizer composes an ordered chain of override tables over a default
// structural projection. The zero chain is valid: everything defaults.
type Canonicalizer struct {
	chain []OverrideTable
}

// New builds a Canonicalizer from the supplied tables. Earlier tables win:
// the first table containing a tag supplies the fragment for that sub-type.
func New(chain ...OverrideTable) *Canonicalizer {
	tables := make([]OverrideTable, 0, len(chain))
	for _, t := range chain {
		if len(t) > 0 {
			tables = append(tables, t)
		}
	}
	return &Canonicalizer{chain: tables}
}

// TagOf returns the sub-type tag used to look up overrides for v.
func TagOf(v any) string {
	if t, ok := v.(Tagger); ok {
		return t.TypeTag()
	}
	rt := reflect.TypeOf(v)
	if rt == nil {
		return ""
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Name() != "" {
		return rt.Name()
	}
	return rt.String()
}

func (c *Canonicalizer) lookup(tag string) (Override, bool) {
	if tag == "" {
		return nil, false
	}
	for _, table := range c.chain {
		if fn, ok := table[tag]; ok && fn != nil {
			return fn, true
		}
	}
	return nil, false
}

// Canonicalize projects v to its canonical JSON form. Overrides are
// consulted for v itself and for every nested struct value reachable from
// it; the output is byte-identical for identical inputs and override chains.
func (c *Canonicalizer) Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.write(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Canonicalizer) write(buf *bytes.Buffer, v any) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}

	if fn, ok := c.lookup(TagOf(v)); ok {
		frag, err := fn(v)
		if err != nil {
			return fmt.Errorf("override for %s: %w", TagOf(v), err)
		}
		if !jsoncodec.Valid(frag) {
			return fmt.Errorf("override for %s produced invalid JSON", TagOf(v))
		}
		buf.Write(frag)
		return nil
	}

	// Types with bespoke JSON behaviour keep it.
	switch tv := v.(type) {
	case time.Time:
		return c.marshalDefault(buf, tv)
	case error:
		return c.marshalDefault(buf, tv.Error())
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		return c.writeStruct(buf, rv)
	case reflect.Map:
		return c.writeMap(buf, rv)
	case reflect.Slice, reflect.Array:
		// []byte keeps the standard base64 projection.
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return c.marshalDefault(buf, rv.Interface())
		}
		return c.writeSlice(buf, rv)
	default:
		return c.marshalDefault(buf, rv.Interface())
	}
}

func (c *Canonicalizer) writeStruct(buf *bytes.Buffer, rv reflect.Value) error {
	if rv.CanInterface() {
		// Honour custom marshalers on nested values, MarshalJSON output is
		// already deterministic for a given value.
		if m, ok := rv.Interface().(interface{ MarshalJSON() ([]byte, error) }); ok {
			raw, err := m.MarshalJSON()
			if err != nil {
				return err
			}
			buf.Write(raw)
			return nil
		}
	}

	buf.WriteByte('{')
	first := true
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonFieldName(field)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := c.writeKey(buf, name); err != nil {
			return err
		}
		if err := c.write(buf, fv.Interface()); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func (c *Canonicalizer) writeMap(buf *bytes.Buffer, rv reflect.Value) error {
	if rv.IsNil() {
		buf.WriteString("null")
		return nil
	}
	if rv.Type().Key().Kind() != reflect.String {
		return c.marshalDefault(buf, rv.Interface())
	}

	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := c.writeKey(buf, k); err != nil {
			return err
		}
		if err := c.write(buf, rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func (c *Canonicalizer) writeSlice(buf *bytes.Buffer, rv reflect.Value) error {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		buf.WriteString("null")
		return nil
	}
	buf.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := c.write(buf, rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func (c *Canonicalizer) writeKey(buf *bytes.Buffer, name string) error {
	encoded, err := jsoncodec.Marshal(name)
	if err != nil {
		return err
	}
	buf.Write(encoded)
	buf.WriteByte(':')
	return nil
}

func (c *Canonicalizer) marshalDefault(buf *bytes.Buffer, v any) error {
	raw, err := jsoncodec.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(raw)
	return nil
}

func jsonFieldName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	name = field.Name
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return name, false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] == "-" && len(parts) == 1 {
		return "", false, true
	}
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}
