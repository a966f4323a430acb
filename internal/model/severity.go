package model

import (
	"errors"
	"fmt"
)

var ErrInvalidSeverity = errors.New("model: invalid notification severity")

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityUrgent  Severity = "urgent"
	SeverityWarning Severity = "warning"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeveritySuccess, SeverityError, SeverityUrgent, SeverityWarning:
		return true
	default:
		return false
	}
}

func ParseSeverity(raw string) (Severity, error) {
	s := Severity(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, raw)
	}
	return s, nil
}
