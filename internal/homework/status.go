package homework

// Status is the review state of a submission.
type Status int

const (
	StatusApproved Status = iota
	StatusReviewing
	StatusRejected

	statusCount
)

var statusNames = [...]string{
	StatusApproved:  "approved",
	StatusReviewing: "reviewing",
	StatusRejected:  "rejected",
}

var verdicts = [...]string{
	StatusApproved:  "Работа проверена: ревьюеру всё понравилось. Ура!",
	StatusReviewing: "Работа взята на проверку ревьюером.",
	StatusRejected:  "Работа проверена: у ревьюера есть замечания.",
}

// Both tables must cover every Status; a new constant without entries fails to compile.
var (
	_ = [1]struct{}{}[len(statusNames)-int(statusCount)]
	_ = [1]struct{}{}[len(verdicts)-int(statusCount)]
)

// ParseStatus maps the API status string onto Status.
func ParseStatus(s string) (Status, error) {
	for i, name := range statusNames {
		if name == s {
			return Status(i), nil
		}
	}
	return 0, &UnknownStatusError{Status: s}
}

func (s Status) String() string {
	if s < 0 || s >= statusCount {
		return "unknown"
	}
	return statusNames[s]
}

// Verdict returns the display text for the status.
func (s Status) Verdict() string {
	if s < 0 || s >= statusCount {
		return ""
	}
	return verdicts[s]
}
