// Package watchlist stores the watched profiles and runs the two
// recurring monitors that keep the watchlist and the timeline current.
package watchlist

import (
	"context"

	"github.com/curio-sh/curio/internal/database"
	"github.com/curio-sh/curio/internal/docstore"
	"github.com/curio-sh/curio/internal/eventlog"
	"github.com/curio-sh/curio/internal/social"
)

// Collection is the backing collection for watchlist profiles.
const Collection = "watchlist"

// SchemaVersion is the current profile schema version.
const SchemaVersion = 1

// Profile is a watched account. Its document id is the account's screen
// name.
type Profile struct {
	docstore.Entity

	UserID          int64  `json:"user_id"`
	Name            string `json:"name"`
	Biography       string `json:"biography"`
	ProfileImageURI string `json:"profile_image_uri"`
	BannerImageURI  string `json:"banner_image_uri"`

	// FriendIDs is the last-known list of accounts this profile follows.
	FriendIDs []int64 `json:"friend_ids"`
}

// ScreenName returns the profile's screen name.
func (p *Profile) ScreenName() string {
	return p.ID
}

// NewProfile builds a Profile from a resolved user and its friend list.
func NewProfile(user social.User, friendIDs []int64) *Profile {
	entity := docstore.NewEntity()
	entity.ID = user.ScreenName

	return &Profile{
		Entity:          entity,
		UserID:          user.UserID,
		Name:            user.Name,
		Biography:       user.Biography,
		ProfileImageURI: user.ProfileImageURI,
		BannerImageURI:  user.BannerImageURI,
		FriendIDs:       friendIDs,
	}
}

// Store is the repository surface the monitors need.
type Store interface {
	Insert(ctx context.Context, p *Profile) error
	Update(ctx context.Context, p *Profile) error
	DeleteByID(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Profile, error)
	Query(ctx context.Context, where []docstore.Where, pageNumber, pageSize int) ([]*Profile, error)
	QuerySorted(ctx context.Context, where []docstore.Where, sortField string, ascending bool, pageNumber, pageSize int) ([]*Profile, error)
}

// NewRepository creates the document repository backing the watchlist.
func NewRepository(ctx context.Context, db *database.DB, logger eventlog.Logger) (*docstore.Repository[Profile, *Profile], error) {
	return docstore.NewRepository[Profile](ctx, db, docstore.Options{
		Collection:    Collection,
		SchemaVersion: SchemaVersion,
		Logger:        logger,
	})
}
