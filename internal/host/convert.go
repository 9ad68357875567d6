package host

import (
	"fmt"
	"math/big"

	"iris/internal/object"
)

// ToGo converts a value into plain Go data for tool implementations.
// Integers that fit become int64, otherwise *big.Int. None becomes nil.
func ToGo(v object.Object) interface{} {
	switch v := v.(type) {
	case *object.I64:
		if n, ok := v.Int64(); ok {
			return n
		}
		return new(big.Int).Set(v.Value)
	case *object.Boolean:
		return v.Value
	case *object.String:
		return v.Value
	case *object.Option:
		if !v.IsSome() {
			return nil
		}
		return ToGo(v.Value)
	case *object.Result:
		if v.Ok {
			return map[string]interface{}{"ok": ToGo(v.Value)}
		}
		return map[string]interface{}{"err": ToGo(v.Value)}
	case *object.List:
		return seqToGo(v.Items())
	case *object.Tuple:
		return seqToGo(v.Items)
	case *object.Record:
		out := make(map[string]interface{}, len(v.Fields))
		for k, f := range v.Fields {
			out[k] = ToGo(f)
		}
		return out
	case *object.Tagged:
		return map[string]interface{}{"tag": v.Tag, "value": ToGo(v.Value)}
	case *object.Map:
		out := make(map[string]interface{}, v.Len())
		for _, k := range v.Keys() {
			val, _, _ := v.Get(k)
			out[object.Display(k)] = ToGo(val)
		}
		return out
	}
	return nil
}

func seqToGo(items []object.Object) []interface{} {
	out := make([]interface{}, len(items))
	for i, it := range items {
		out[i] = ToGo(it)
	}
	return out
}

// FromGo converts tool results back into values. Values pass through
// unchanged; nil becomes None; maps become records.
func FromGo(v interface{}) object.Object {
	switch v := v.(type) {
	case nil:
		return object.NONE
	case object.Object:
		return v
	case int:
		return object.NewI64(int64(v))
	case int32:
		return object.NewI64(int64(v))
	case int64:
		return object.NewI64(v)
	case uint64:
		return &object.I64{Value: new(big.Int).SetUint64(v)}
	case float64:
		return object.NewI64(int64(v))
	case *big.Int:
		return &object.I64{Value: new(big.Int).Set(v)}
	case bool:
		return object.NativeBool(v)
	case string:
		return object.NewString(v)
	case []byte:
		return object.NewString(string(v))
	case []string:
		items := make([]object.Object, len(v))
		for i, s := range v {
			items[i] = object.NewString(s)
		}
		return object.NewList(items...)
	case []interface{}:
		items := make([]object.Object, len(v))
		for i, it := range v {
			items[i] = FromGo(it)
		}
		return object.NewList(items...)
	case map[string]interface{}:
		fields := make(map[string]object.Object, len(v))
		for k, it := range v {
			fields[k] = FromGo(it)
		}
		return &object.Record{Fields: fields}
	}
	return object.NewString(fmt.Sprint(v))
}
