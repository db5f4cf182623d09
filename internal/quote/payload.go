package quote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

type record map[string]any

// decodeRecords walks path through nested objects and returns the records
// found there. The container may be an array or an object keyed by position.
func decodeRecords(body []byte, path []string) ([]record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}

	node := root
	for _, key := range path {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected object, got %T", key, node)
		}
		node, ok = obj[key]
		if !ok {
			return nil, fmt.Errorf("%s: missing", key)
		}
	}

	switch c := node.(type) {
	case nil:
		// eastmoney answers "data": null when nothing matches
		return nil, nil
	case []any:
		out := make([]record, 0, len(c))
		for i, v := range c {
			r, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("record %d: expected object, got %T", i, v)
			}
			out = append(out, r)
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, errA := strconv.Atoi(keys[i])
			b, errB := strconv.Atoi(keys[j])
			if errA == nil && errB == nil {
				return a < b
			}
			return keys[i] < keys[j]
		})
		out := make([]record, 0, len(c))
		for _, k := range keys {
			r, ok := c[k].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("record %s: expected object, got %T", k, c[k])
			}
			out = append(out, r)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("records: expected array or object, got %T", node)
	}
}

var errMissingValue = errors.New("missing value")

// number reads a numeric attribute. Feeds send numbers, numeric strings or "-".
func number(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, errMissingValue
	case json.Number:
		return x.Float64()
	case float64:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" || s == "-" {
			return 0, errMissingValue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

func integer(v any) (int64, error) {
	f, err := number(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int64(f), nil
}
