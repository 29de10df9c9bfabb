package homework

import "fmt"

const (
	keyHomeworks   = "homeworks"
	keyName        = "homework_name"
	keyStatus      = "status"
	keyCurrentDate = "current_date"
)

// Submission is one homework review record.
type Submission struct {
	Name   string
	Status Status
}

// Message renders the status-change notification for s.
func (s Submission) Message() string {
	return fmt.Sprintf("Изменился статус проверки работы \"%s\". %s", s.Name, s.Status.Verdict())
}

// ParseSubmission decodes one element of the homeworks list.
func ParseSubmission(record any) (Submission, error) {
	m, ok := record.(map[string]any)
	if !ok {
		return Submission{}, &InvalidResponseError{Reason: fmt.Sprintf("запись о работе не является словарём (%T)", record)}
	}

	rawStatus, ok := m[keyStatus]
	if !ok {
		return Submission{}, &MissingFieldError{Field: keyStatus}
	}
	rawName, ok := m[keyName]
	if !ok {
		return Submission{}, &MissingFieldError{Field: keyName}
	}

	status, ok := rawStatus.(string)
	if !ok {
		return Submission{}, &InvalidResponseError{Reason: fmt.Sprintf("поле %q не является строкой", keyStatus)}
	}
	name, ok := rawName.(string)
	if !ok {
		return Submission{}, &InvalidResponseError{Reason: fmt.Sprintf("поле %q не является строкой", keyName)}
	}

	st, err := ParseStatus(status)
	if err != nil {
		return Submission{}, err
	}
	return Submission{Name: name, Status: st}, nil
}

// ParseStatusMessage validates record and returns its notification text.
func ParseStatusMessage(record any) (string, error) {
	sub, err := ParseSubmission(record)
	if err != nil {
		return "", err
	}
	return sub.Message(), nil
}
