package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Values cross the store boundary in normalized Go types:
//
//	int      → int64
//	bool     → bool          (stored as 0/1)
//	float    → float64
//	string   → string
//	binary   → []byte
//	date     → time.Time     (stored as UTC unix nanoseconds)
//	any      → one of the above, or nil (stored as tagged JSON)
//	link     → int64 row key, or nil
//	linklist → []int64 row keys (stored as a JSON array)

// encodeValue converts a normalized value into its column representation.
func encodeValue(kind Kind, v any) (any, error) {
	if v == nil {
		if kind == KindLinkList {
			return "[]", nil
		}
		return nil, nil
	}

	switch kind {
	case KindInt, KindLink:
		if n, ok := v.(int64); ok {
			return n, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case KindFloat:
		if f, ok := v.(float64); ok {
			return f, nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBinary:
		if b, ok := v.([]byte); ok {
			if b == nil {
				b = []byte{}
			}
			return b, nil
		}
	case KindDate:
		if t, ok := v.(time.Time); ok {
			return t.UnixNano(), nil
		}
	case KindAny:
		return encodeAny(v)
	case KindLinkList:
		if keys, ok := v.([]int64); ok {
			if keys == nil {
				keys = []int64{}
			}
			data, err := json.Marshal(keys)
			if err != nil {
				return nil, fmt.Errorf("marshal link list: %w", err)
			}
			return string(data), nil
		}
	}
	return nil, Error.New("cannot store %T in %s column", v, kind)
}

// decodeValue converts a raw column value back into its normalized type.
func decodeValue(kind Kind, raw any) (any, error) {
	if raw == nil {
		if kind == KindLinkList {
			return []int64{}, nil
		}
		return nil, nil
	}

	switch kind {
	case KindInt, KindLink:
		return asInt64(raw)
	case KindBool:
		n, err := asInt64(raw)
		if err != nil {
			return nil, err
		}
		return n != 0, nil
	case KindFloat:
		switch f := raw.(type) {
		case float64:
			return f, nil
		case int64:
			return float64(f), nil
		}
	case KindString:
		switch s := raw.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case KindBinary:
		switch b := raw.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
	case KindDate:
		n, err := asInt64(raw)
		if err != nil {
			return nil, err
		}
		return time.Unix(0, n).UTC(), nil
	case KindAny:
		return decodeAny(raw)
	case KindLinkList:
		var keys []int64
		if err := json.Unmarshal(asBytes(raw), &keys); err != nil {
			return nil, Error.New("decode link list: %v", err)
		}
		if keys == nil {
			keys = []int64{}
		}
		return keys, nil
	}
	return nil, Error.New("unexpected %T in %s column", raw, kind)
}

func asInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	}
	return 0, Error.New("unexpected %T in integer column", raw)
}

func asBytes(raw any) []byte {
	switch v := raw.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return nil
}

// anyValue is the tagged JSON envelope of an any column.
type anyValue struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v"`
}

func encodeAny(v any) (any, error) {
	var tag string
	payload := v
	switch val := v.(type) {
	case int64:
		tag = "int"
	case float64:
		tag = "float"
	case bool:
		tag = "bool"
	case string:
		tag = "string"
	case []byte:
		tag = "data"
	case time.Time:
		tag = "date"
		payload = val.UTC().Format(time.RFC3339Nano)
	default:
		return nil, Error.New("cannot store %T in any column", v)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal any value: %w", err)
	}
	data, err := json.Marshal(anyValue{T: tag, V: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal any envelope: %w", err)
	}
	return string(data), nil
}

func decodeAny(raw any) (any, error) {
	var env anyValue
	if err := json.Unmarshal(asBytes(raw), &env); err != nil {
		return nil, Error.New("decode any value: %v", err)
	}

	var err error
	switch env.T {
	case "int":
		var n int64
		err = json.Unmarshal(env.V, &n)
		return n, err
	case "float":
		var f float64
		err = json.Unmarshal(env.V, &f)
		return f, err
	case "bool":
		var b bool
		err = json.Unmarshal(env.V, &b)
		return b, err
	case "string":
		var s string
		err = json.Unmarshal(env.V, &s)
		return s, err
	case "data":
		var b []byte
		err = json.Unmarshal(env.V, &b)
		return b, err
	case "date":
		var s string
		if err = json.Unmarshal(env.V, &s); err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	return nil, Error.New("unknown any tag %q", env.T)
}
