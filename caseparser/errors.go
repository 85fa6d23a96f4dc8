package caseparser

import "fmt"

// MalformedCaseError reports a required case field that is missing or has the wrong type.
type MalformedCaseError struct {
	CaseID string // best-effort, "unknown" when the id itself is unreadable
	Field  string
	Err    error
}

func (e *MalformedCaseError) Error() string {
	return fmt.Sprintf("case %s: field %q: %v", e.CaseID, e.Field, e.Err)
}

func (e *MalformedCaseError) Unwrap() error {
	return e.Err
}

// FileNamingError reports a raw file name that does not follow prefix-<drugId>-<drugName>.json.
type FileNamingError struct {
	Name   string
	Reason string
}

func (e *FileNamingError) Error() string {
	return fmt.Sprintf("invalid case file name %q: %s", e.Name, e.Reason)
}
