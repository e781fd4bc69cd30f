package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errNotNumber = errors.New("not a number")

// lookup returns the value for a field, falling back to its default. Nil
// values and blank strings count as absent.
func lookup(field FieldConfig, values Values) (interface{}, bool) {
	return resolve(field, values, isEmpty)
}

// lookupText is lookup for plain string fields, where "" is a real value.
func lookupText(field FieldConfig, values Values) (interface{}, bool) {
	return resolve(field, values, func(v interface{}) bool { return v == nil })
}

func resolve(field FieldConfig, values Values, absent func(interface{}) bool) (interface{}, bool) {
	if v, ok := values[field.ID]; ok && !absent(v) {
		return v, true
	}
	if !absent(field.Default) {
		return field.Default, true
	}
	return nil, false
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}

// numberLiteral coerces v to the canonical text of a JSON number. Integers
// keep full precision so 64-bit seeds survive.
func numberLiteral(v interface{}) (string, float64, error) {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t), float64(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), float64(t), nil
	case int64:
		return strconv.FormatInt(t, 10), float64(t), nil
	case uint64:
		return strconv.FormatUint(t, 10), float64(t), nil
	case float32:
		return floatLiteral(float64(t))
	case float64:
		return floatLiteral(t)
	case json.Number:
		return parseNumber(t.String())
	case string:
		return parseNumber(t)
	default:
		return "", 0, fmt.Errorf("%w: %T", errNotNumber, v)
	}
}

func parseNumber(s string) (string, float64, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10), float64(i), nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return strconv.FormatUint(u, 10), float64(u), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", errNotNumber, s)
	}
	return floatLiteral(f)
}

func floatLiteral(f float64) (string, float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", 0, fmt.Errorf("%w: %v", errNotNumber, f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), f, nil
}

// stringValue renders a value the way a form would submit it.
func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
