package docstore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument signals caller misuse: nil item, empty id,
	// malformed collection or field name.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound signals that the referenced document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable signals that the backing store did not
	// acknowledge a write or delete.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrLostUpdate signals a compare-and-swap race lost: another writer
	// modified the document between this writer's read and write.
	ErrLostUpdate = errors.New("lost update")
)

// SchemaMismatchError reports stored or given data at the wrong schema
// version outside migration mode.
type SchemaMismatchError struct {
	Collection string
	Mismatches int64
}

func (e *SchemaMismatchError) Error() string {
	if e.Mismatches > 0 {
		return fmt.Sprintf("collection %q has %d schema mismatches", e.Collection, e.Mismatches)
	}
	return fmt.Sprintf("schema mismatch in collection %q", e.Collection)
}

// IsSchemaMismatch reports whether err is a SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	var sm *SchemaMismatchError
	return errors.As(err, &sm)
}
