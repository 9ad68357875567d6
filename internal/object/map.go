package object

import (
	"bytes"
)

type MapPair struct {
	Key   Object
	Value Object
}

// Map is an immutable hash map that remembers insertion order. Put returns
// a new map and leaves the receiver untouched.
type Map struct {
	pairs []MapPair
	index map[MapKey][]int
}

func NewMap() *Map {
	return &Map{index: make(map[MapKey][]int)}
}

func (m *Map) Type() ObjectType { return MAP_OBJ }
func (m *Map) Inspect() string {
	var out bytes.Buffer
	out.WriteString("(map")
	for _, p := range m.pairs {
		out.WriteString(" (" + p.Key.Inspect() + " " + p.Value.Inspect() + ")")
	}
	out.WriteString(")")
	return out.String()
}

func (m *Map) Len() int { return len(m.pairs) }

func (m *Map) find(key Object) (MapKey, int, error) {
	mk, err := KeyOf(key)
	if err != nil {
		return mk, -1, err
	}
	for _, i := range m.index[mk] {
		if Equal(m.pairs[i].Key, key) {
			return mk, i, nil
		}
	}
	return mk, -1, nil
}

func (m *Map) Get(key Object) (Object, bool, error) {
	_, i, err := m.find(key)
	if err != nil || i < 0 {
		return nil, false, err
	}
	return m.pairs[i].Value, true, nil
}

func (m *Map) Contains(key Object) (bool, error) {
	_, i, err := m.find(key)
	return i >= 0, err
}

func (m *Map) Put(key, value Object) (*Map, error) {
	mk, i, err := m.find(key)
	if err != nil {
		return nil, err
	}
	out := &Map{
		pairs: make([]MapPair, len(m.pairs), len(m.pairs)+1),
		index: make(map[MapKey][]int, len(m.index)+1),
	}
	copy(out.pairs, m.pairs)
	for k, bucket := range m.index {
		out.index[k] = bucket
	}
	if i >= 0 {
		out.pairs[i] = MapPair{Key: m.pairs[i].Key, Value: value}
		return out, nil
	}
	out.pairs = append(out.pairs, MapPair{Key: key, Value: value})
	bucket := make([]int, 0, len(m.index[mk])+1)
	bucket = append(bucket, m.index[mk]...)
	out.index[mk] = append(bucket, len(out.pairs)-1)
	return out, nil
}

// Keys are returned in insertion order.
func (m *Map) Keys() []Object {
	out := make([]Object, len(m.pairs))
	for i, p := range m.pairs {
		out[i] = p.Key
	}
	return out
}
