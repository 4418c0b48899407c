package database

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrUniqueViolation = errors.New("unique constraint violated")
	ErrNotNull         = errors.New("not null constraint failed")
)

// ConstraintError carries the table/column parsed out of a sqlite
// constraint failure message.
type ConstraintError struct {
	Type    string
	Table   string
	Column  string
	Message string
	Cause   error
}

func (e *ConstraintError) Error() string {
	return e.Message
}

func (e *ConstraintError) Unwrap() error {
	return e.Cause
}

var (
	uniquePattern = regexp.MustCompile(`UNIQUE constraint failed: ([^\s]+)`)
	notNullRegex  = regexp.MustCompile(`NOT NULL constraint failed: ([^\s]+)`)
)

// ClassifyError maps sqlite driver errors onto the sentinel constraint
// errors above. Unrecognized errors pass through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	if matches := uniquePattern.FindStringSubmatch(errStr); len(matches) == 2 {
		return constraintError("unique", ErrUniqueViolation, matches[1], "A record with this value already exists")
	}

	if matches := notNullRegex.FindStringSubmatch(errStr); len(matches) == 2 {
		return constraintError("not_null", ErrNotNull, matches[1], "Required field is missing")
	}

	return err
}

func constraintError(kind string, cause error, target, message string) *ConstraintError {
	ce := &ConstraintError{
		Type:    kind,
		Cause:   cause,
		Message: message,
	}
	if parts := strings.Split(target, "."); len(parts) == 2 {
		ce.Table = parts[0]
		ce.Column = parts[1]
	}
	return ce
}

func IsUniqueError(err error) bool {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Type == "unique"
	}
	return false
}
