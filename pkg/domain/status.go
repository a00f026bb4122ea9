package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Status is the triage verdict attached to every record.
type Status uint8

// The status ladder. Clean is the zero value so untouched records default to it.
const (
	StatusClean Status = iota
	StatusPending
	StatusRejected
	StatusConfirmed
)

var statusNames = [...]string{
	StatusClean:     "Clean",
	StatusPending:   "Pending",
	StatusRejected:  "Rejected",
	StatusConfirmed: "Confirmed",
}

// Statuses lists every status in ladder order.
func Statuses() []Status {
	return []Status{StatusClean, StatusPending, StatusRejected, StatusConfirmed}
}

// Valid reports whether s is one of the four defined statuses.
func (s Status) Valid() bool {
	return int(s) < len(statusNames)
}

// Locked reports whether the cascade must leave a record with this status untouched.
func (s Status) Locked() bool {
	switch s {
	case StatusRejected, StatusConfirmed:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	if !s.Valid() {
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
	return statusNames[s]
}

// ParseStatus resolves a status name. Matching ignores case and surrounding space.
func ParseStatus(raw string) (Status, error) {
	name := strings.TrimSpace(raw)
	for i, candidate := range statusNames {
		if strings.EqualFold(candidate, name) {
			return Status(i), nil
		}
	}
	return 0, ErrInvalidInput{Field: "status", Value: raw, Reason: "must be one of Clean, Pending, Rejected, Confirmed"}
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrInvalidInput{Field: "status", Value: s.String(), Reason: "unknown status"}
	}
	return json.Marshal(statusNames[s])
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrInvalidInput{Field: "status", Value: string(data), Reason: "must be a string"}
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
