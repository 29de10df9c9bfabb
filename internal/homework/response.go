package homework

import (
	"encoding/json"
	"fmt"
	"math"
)

// CheckResponse validates a decoded API body and returns its homeworks list unchanged.
//
// An empty list is reported as an *InvalidResponseError wrapping ErrNoHomeworks.
func CheckResponse(body any) ([]any, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return nil, &InvalidResponseError{Reason: fmt.Sprintf("ответ не является словарём (%T)", body)}
	}
	raw, ok := m[keyHomeworks]
	if !ok {
		return nil, &InvalidResponseError{Reason: fmt.Sprintf("нет ключа %q", keyHomeworks)}
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &InvalidResponseError{Reason: fmt.Sprintf("домашние работы представлены не списком (%T)", raw)}
	}
	if len(list) == 0 {
		return nil, &InvalidResponseError{Reason: "за последнее время нет домашних работ", Err: ErrNoHomeworks}
	}
	return list, nil
}

// Latest returns the first, most recent, submission record of a valid body.
func Latest(body any) (any, error) {
	list, err := CheckResponse(body)
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

// CurrentDate reads the server-side "current_date" unix timestamp, if present.
func CurrentDate(body any) (int64, bool) {
	m, ok := body.(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := m[keyCurrentDate].(type) {
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
