package timeline

import (
	"context"
	"fmt"

	"github.com/curio-sh/curio/internal/database"
	"github.com/curio-sh/curio/internal/docstore"
	"github.com/curio-sh/curio/internal/eventlog"
)

// Store is the repository surface the timeline needs.
type Store interface {
	Insert(ctx context.Context, msg *Message) error
	QuerySorted(ctx context.Context, where []docstore.Where, sortField string, ascending bool, pageNumber, pageSize int) ([]*Message, error)
	Count(ctx context.Context, where ...docstore.Where) (int64, error)
}

// NewRepository creates the document repository backing the timeline.
func NewRepository(ctx context.Context, db *database.DB, logger eventlog.Logger) (*docstore.Repository[Message, *Message], error) {
	return docstore.NewRepository[Message](ctx, db, docstore.Options{
		Collection:    Collection,
		SchemaVersion: SchemaVersion,
		Logger:        logger,
	})
}

// Service manages the timeline.
type Service struct {
	store Store
}

// NewService creates a timeline service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// AddMessage validates and appends a message to the timeline.
func (s *Service) AddMessage(ctx context.Context, msg *Message) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", docstore.ErrInvalidArgument)
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", docstore.ErrInvalidArgument, err)
	}

	return s.store.Insert(ctx, msg)
}

// Recent returns a page of messages, newest first. Page numbers are
// 0-based; a pageSize of 0 returns everything.
func (s *Service) Recent(ctx context.Context, pageNumber, pageSize int) ([]*Message, error) {
	return s.store.QuerySorted(ctx, nil, "created", false, pageNumber, pageSize)
}

// MessagesOfType returns a page of messages of one variant, newest first.
func (s *Service) MessagesOfType(ctx context.Context, t MessageType, pageNumber, pageSize int) ([]*Message, error) {
	where := []docstore.Where{{Field: "type", Op: database.OpEq, Value: int(t)}}
	return s.store.QuerySorted(ctx, where, "created", false, pageNumber, pageSize)
}

// Len returns the total number of messages on the timeline.
func (s *Service) Len(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}
