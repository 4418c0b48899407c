// Package social defines the contract for the upstream social-network
// client. The network is treated as an opaque, rate-limited data source;
// the wire format lives entirely behind this interface.
package social

import "context"

// User is a resolved account on the social network.
type User struct {
	UserID          int64  `json:"user_id"`
	ScreenName      string `json:"screen_name"`
	Name            string `json:"name"`
	Biography       string `json:"biography"`
	ProfileImageURI string `json:"profile_image_uri"`
	BannerImageURI  string `json:"banner_image_uri"`
}

// Client reads friend lists and resolves users.
type Client interface {
	// FriendIDs returns the account ids the named account follows.
	FriendIDs(ctx context.Context, screenName string) ([]int64, error)

	// FriendIDsByUserID is FriendIDs keyed by numeric account id.
	FriendIDsByUserID(ctx context.Context, userID int64) ([]int64, error)

	// UsersByIDs resolves accounts from their numeric ids.
	UsersByIDs(ctx context.Context, ids []int64) ([]User, error)
}
