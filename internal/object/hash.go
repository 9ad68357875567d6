package object

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// MapKey is the hash bucket a value falls into. Two structurally equal
// values always share a MapKey; values that share one are told apart by
// Equal.
type MapKey struct {
	Type  ObjectType
	Value uint64
}

// KeyOf hashes the canonical encoding of obj with xxhash.
func KeyOf(obj Object) (MapKey, error) {
	var buf bytes.Buffer
	if err := encodeKey(&buf, obj); err != nil {
		return MapKey{}, err
	}
	return MapKey{Type: obj.Type(), Value: xxhash.Sum64(buf.Bytes())}, nil
}

// encodeKey writes a prefix-free encoding: a kind byte, then length
// prefixed content, so distinct values never share an encoding.
func encodeKey(buf *bytes.Buffer, obj Object) error {
	switch v := obj.(type) {
	case *I64:
		buf.WriteByte('i')
		buf.WriteByte(byte(v.Value.Sign() + 1))
		writeBytes(buf, v.Value.Bytes())
	case *Boolean:
		buf.WriteByte('b')
		if v.Value {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case *String:
		buf.WriteByte('s')
		writeBytes(buf, []byte(v.Value))
	case *Option:
		buf.WriteByte('o')
		if v.Value == nil {
			buf.WriteByte(0)
			return nil
		}
		buf.WriteByte(1)
		return encodeKey(buf, v.Value)
	case *Result:
		buf.WriteByte('r')
		if v.Ok {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		return encodeKey(buf, v.Value)
	case *Tagged:
		buf.WriteByte('g')
		writeBytes(buf, []byte(v.Tag))
		payload := v.Value
		if payload == nil {
			payload = UNIT
		}
		return encodeKey(buf, payload)
	case *Tuple:
		buf.WriteByte('t')
		return encodeSeq(buf, v.Items)
	case *List:
		buf.WriteByte('l')
		return encodeSeq(buf, v.Items())
	case *Record:
		buf.WriteByte('c')
		keys := make([]string, 0, len(v.Fields))
		for k := range v.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		writeLen(buf, len(keys))
		for _, k := range keys {
			writeBytes(buf, []byte(k))
			if err := encodeKey(buf, v.Fields[k]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("Invalid map key type: %s", obj.Type())
	}
	return nil
}

func encodeSeq(buf *bytes.Buffer, items []Object) error {
	writeLen(buf, len(items))
	for _, it := range items {
		if err := encodeKey(buf, it); err != nil {
			return err
		}
	}
	return nil
}

func writeLen(buf *bytes.Buffer, n int) {
	var tmp [binary.MaxVarintLen64]byte
	buf.Write(tmp[:binary.PutUvarint(tmp[:], uint64(n))])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeLen(buf, len(b))
	buf.Write(b)
}

// Equal is structural equality. Lambdas compare by identity.
func Equal(a, b Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch x := a.(type) {
	case *I64:
		y, ok := b.(*I64)
		return ok && x.Value.Cmp(y.Value) == 0
	case *Boolean:
		y, ok := b.(*Boolean)
		return ok && x.Value == y.Value
	case *String:
		y, ok := b.(*String)
		return ok && x.Value == y.Value
	case *Option:
		y, ok := b.(*Option)
		return ok && Equal(x.Value, y.Value)
	case *Result:
		y, ok := b.(*Result)
		return ok && x.Ok == y.Ok && Equal(x.Value, y.Value)
	case *Tagged:
		y, ok := b.(*Tagged)
		return ok && x.Tag == y.Tag && Equal(payloadOf(x), payloadOf(y))
	case *Tuple:
		y, ok := b.(*Tuple)
		return ok && equalSeq(x.Items, y.Items)
	case *List:
		y, ok := b.(*List)
		return ok && x.Len() == y.Len() && equalSeq(x.Items(), y.Items())
	case *Record:
		y, ok := b.(*Record)
		if !ok || len(x.Fields) != len(y.Fields) {
			return false
		}
		for k, v := range x.Fields {
			w, ok := y.Fields[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case *Map:
		y, ok := b.(*Map)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, p := range x.pairs {
			w, found, err := y.Get(p.Key)
			if err != nil || !found || !Equal(p.Value, w) {
				return false
			}
		}
		return true
	}
	return a == b
}

func payloadOf(t *Tagged) Object {
	if t.Value == nil {
		return UNIT
	}
	return t.Value
}

func equalSeq(a, b []Object) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
