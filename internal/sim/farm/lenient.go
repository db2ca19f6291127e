package farm

import (
	"encoding/json"
	"math"
)

// doc reads a persisted object field by field so one malformed field only
// costs that field its value.
type doc map[string]json.RawMessage

func (d doc) float(key string) (float64, bool) {
	raw, ok := d[key]
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (d doc) int64(key string) (int64, bool) {
	v, ok := d.float(key)
	if !ok || math.Abs(v) > 1<<53 {
		return 0, false
	}
	return int64(math.Floor(v)), true
}

func (d doc) int(key string) (int, bool) {
	v, ok := d.int64(key)
	if !ok || v > math.MaxInt32 || v < math.MinInt32 {
		return 0, false
	}
	return int(v), true
}

func (d doc) str(key string) (string, bool) {
	raw, ok := d[key]
	if !ok {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

func (d doc) bool(key string) (bool, bool) {
	raw, ok := d[key]
	if !ok {
		return false, false
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, false
	}
	return v, true
}

func (d doc) obj(key string) (doc, bool) {
	raw, ok := d[key]
	if !ok {
		return nil, false
	}
	var v doc
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// counts decodes a string->number object, skipping entries that are not numbers.
func (d doc) counts(key string) map[string]float64 {
	o, ok := d.obj(key)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(o))
	for k := range o {
		if v, ok := o.float(k); ok {
			out[k] = v
		}
	}
	return out
}

func (d doc) array(key string) ([]json.RawMessage, bool) {
	raw, ok := d[key]
	if !ok {
		return nil, false
	}
	var v []json.RawMessage
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}
