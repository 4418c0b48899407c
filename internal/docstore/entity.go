// Package docstore provides a generic document repository over the SQLite
// access layer. Each repository owns one collection, enforces a declared
// schema version, and protects concurrent writers with a stamp
// compare-and-swap on every update.
package docstore

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the base persisted record. Embed it (by value) in any struct
// stored through a Repository.
type Entity struct {
	// ID is globally unique and assigned at creation.
	ID string `json:"id"`

	// Created is the creation instant, immutable after insert.
	Created time.Time `json:"created"`

	// SchemaVersion is set by the repository on write; caller-supplied
	// values are not trusted.
	SchemaVersion int `json:"schema_version"`

	// ConcurrencyStamp identifies the committed revision of the record.
	// It is regenerated on every successful update; an update must
	// present the stamp it last read.
	ConcurrencyStamp string `json:"concurrency_stamp"`
}

// NewEntity returns an Entity with a fresh id and stamp.
func NewEntity() Entity {
	return Entity{
		ID:               uuid.NewString(),
		Created:          time.Now().UTC(),
		ConcurrencyStamp: uuid.NewString(),
	}
}

// Meta returns the embedded entity metadata.
func (e *Entity) Meta() *Entity {
	return e
}

// Doc is implemented by any pointer to a struct embedding Entity.
type Doc interface {
	Meta() *Entity
}

// Ptr constrains a repository's document type to a pointer to T that
// carries entity metadata.
type Ptr[T any] interface {
	*T
	Doc
}
