package capability

import (
	"encoding/json"
	"fmt"

	"go.starlark.net/starlark"
)

// ToStarlark converts a decoded JSON value into its interpreter
// representation. Context variables and data arrive through this path.
func ToStarlark(v any) (starlark.Value, error) {
	switch v := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(v), nil
	case string:
		return starlark.String(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case float64:
		return starlark.Float(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", v.String(), err)
		}
		return starlark.Float(f), nil
	case []any:
		elems := make([]starlark.Value, len(v))
		for i, elem := range v {
			sv, err := ToStarlark(elem)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		d := starlark.NewDict(len(v))
		for key, val := range v {
			sv, err := ToStarlark(val)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(key), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

// FromStarlark converts an interpreter value back into a JSON-encodable Go
// value for the terminal response. Integers that overflow int64 keep their
// full precision as decimal strings.
func FromStarlark(v starlark.Value) (any, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.String:
		return string(v), nil
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i, nil
		}
		return v.String(), nil
	case starlark.Float:
		return float64(v), nil
	case starlark.Tuple:
		return fromSequence(v.Len(), v.Index)
	case *starlark.List:
		return fromSequence(v.Len(), v.Index)
	case *starlark.Set:
		elems := make([]any, 0, v.Len())
		iter := v.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for iter.Next(&elem) {
			gv, err := FromStarlark(elem)
			if err != nil {
				return nil, err
			}
			elems = append(elems, gv)
		}
		return elems, nil
	case *starlark.Dict:
		m := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key, val := item[0], item[1]
			name, ok := starlark.AsString(key)
			if !ok {
				name = key.String()
			}
			gv, err := FromStarlark(val)
			if err != nil {
				return nil, err
			}
			m[name] = gv
		}
		return m, nil
	default:
		// Functions, modules and other exotic values render as their
		// printable form rather than failing the whole run.
		return v.String(), nil
	}
}

func fromSequence(n int, index func(int) starlark.Value) (any, error) {
	elems := make([]any, n)
	for i := 0; i < n; i++ {
		gv, err := FromStarlark(index(i))
		if err != nil {
			return nil, err
		}
		elems[i] = gv
	}
	return elems, nil
}
