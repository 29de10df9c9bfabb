package homework

import (
	"errors"
	"fmt"
)

// ErrNoHomeworks marks a response whose homeworks list is empty.
// It is wrapped in an *InvalidResponseError; callers that treat an empty list
// as "nothing new" match it with errors.Is.
var ErrNoHomeworks = errors.New("homeworks list is empty")

// InvalidResponseError reports a response body whose shape is not what the API promises.
type InvalidResponseError struct {
	Reason string
	Err    error
}

func (e *InvalidResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("некорректный ответ API: %s: %v", e.Reason, e.Err)
	}
	return "некорректный ответ API: " + e.Reason
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// MissingFieldError reports a submission record lacking a required key.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("в ответе API нет ключа %q", e.Field)
}

// UnknownStatusError reports a status value outside the known set.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("неизвестный статус домашней работы: %q", e.Status)
}
