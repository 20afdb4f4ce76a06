package canonical

import (
	"bytes"

	"github.com/drblury/chargestream/internal/gateway/jsoncodec"
)

// Object builds a JSON object with a fixed field order, so payload envelopes
// come out byte-identical for identical inputs. Errors are sticky; check
// Bytes once at the end.
type Object struct {
	buf bytes.Buffer
	n   int
	err error
}

func NewObject() *Object {
	o := &Object{}
	o.buf.WriteByte('{')
	return o
}

// PutRaw appends a pre-encoded JSON value under name.
func (o *Object) PutRaw(name string, raw []byte) *Object {
	if o.err != nil {
		return o
	}
	key, err := jsoncodec.Marshal(name)
	if err != nil {
		o.err = err
		return o
	}
	if o.n > 0 {
		o.buf.WriteByte(',')
	}
	o.buf.Write(key)
	o.buf.WriteByte(':')
	o.buf.Write(raw)
	o.n++
	return o
}

// Put marshals v through the codec and appends it under name.
func (o *Object) Put(name string, v any) *Object {
	if o.err != nil {
		return o
	}
	raw, err := jsoncodec.Marshal(v)
	if err != nil {
		o.err = err
		return o
	}
	return o.PutRaw(name, raw)
}

func (o *Object) Bytes() ([]byte, error) {
	if o.err != nil {
		return nil, o.err
	}
	out := make([]byte, 0, o.buf.Len()+1)
	out = append(out, o.buf.Bytes()...)
	out = append(out, '}')
	return out, nil
}
