// Package timeline models the timeline of watchlist changes as a closed
// set of message variants.
package timeline

import (
	"fmt"

	"github.com/curio-sh/curio/internal/docstore"
)

// Collection is the backing collection for timeline messages.
const Collection = "timeline"

// SchemaVersion is the current message schema version.
const SchemaVersion = 1

// MessageType discriminates the message variants. The set is closed;
// (de)serialization switches on this tag and never on runtime types.
type MessageType int

const (
	MessageTypeNone MessageType = iota

	// MessageTypeWatchlistAdded: new profiles joined the watchlist.
	MessageTypeWatchlistAdded

	// MessageTypeWatchlistRemoved: profiles left the watchlist.
	MessageTypeWatchlistRemoved

	// MessageTypeFriendsFollowed: a watched profile followed new people.
	MessageTypeFriendsFollowed

	// MessageTypeFriendsUnfollowed: a watched profile unfollowed people.
	MessageTypeFriendsUnfollowed
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeWatchlistAdded:
		return "watchlist_added"
	case MessageTypeWatchlistRemoved:
		return "watchlist_removed"
	case MessageTypeFriendsFollowed:
		return "friends_followed"
	case MessageTypeFriendsUnfollowed:
		return "friends_unfollowed"
	default:
		return "none"
	}
}

// WatchlistAddedPayload reports profiles added to the watchlist.
type WatchlistAddedPayload struct {
	AddedScreenNames []string `json:"added_screen_names"`
}

// WatchlistRemovedPayload reports profiles removed from the watchlist.
type WatchlistRemovedPayload struct {
	RemovedScreenNames []string `json:"removed_screen_names"`
}

// FriendsFollowedPayload reports accounts a watched profile started
// following.
type FriendsFollowedPayload struct {
	ProfileScreenName   string   `json:"profile_screen_name"`
	ProfileAvatarURI    string   `json:"profile_avatar_uri"`
	FollowedScreenNames []string `json:"followed_screen_names"`
}

// FriendsUnfollowedPayload reports accounts a watched profile stopped
// following.
type FriendsUnfollowedPayload struct {
	ProfileScreenName     string   `json:"profile_screen_name"`
	ProfileAvatarURI      string   `json:"profile_avatar_uri"`
	UnfollowedScreenNames []string `json:"unfollowed_screen_names"`
}

// Message is one entry on the timeline: an explicit type tag plus exactly
// one variant payload matching the tag.
type Message struct {
	docstore.Entity

	Type MessageType `json:"type"`

	WatchlistAdded    *WatchlistAddedPayload    `json:"watchlist_added,omitempty"`
	WatchlistRemoved  *WatchlistRemovedPayload  `json:"watchlist_removed,omitempty"`
	FriendsFollowed   *FriendsFollowedPayload   `json:"friends_followed,omitempty"`
	FriendsUnfollowed *FriendsUnfollowedPayload `json:"friends_unfollowed,omitempty"`
}

// NewWatchlistAddedMessage builds the message for profiles joining the
// watchlist.
func NewWatchlistAddedMessage(screenNames []string) *Message {
	return &Message{
		Entity:         docstore.NewEntity(),
		Type:           MessageTypeWatchlistAdded,
		WatchlistAdded: &WatchlistAddedPayload{AddedScreenNames: screenNames},
	}
}

// NewWatchlistRemovedMessage builds the message for profiles leaving the
// watchlist.
func NewWatchlistRemovedMessage(screenNames []string) *Message {
	return &Message{
		Entity:           docstore.NewEntity(),
		Type:             MessageTypeWatchlistRemoved,
		WatchlistRemoved: &WatchlistRemovedPayload{RemovedScreenNames: screenNames},
	}
}

// NewFriendsFollowedMessage builds the message for a profile following
// new accounts.
func NewFriendsFollowedMessage(profileScreenName, profileAvatarURI string, followed []string) *Message {
	return &Message{
		Entity: docstore.NewEntity(),
		Type:   MessageTypeFriendsFollowed,
		FriendsFollowed: &FriendsFollowedPayload{
			ProfileScreenName:   profileScreenName,
			ProfileAvatarURI:    profileAvatarURI,
			FollowedScreenNames: followed,
		},
	}
}

// NewFriendsUnfollowedMessage builds the message for a profile
// unfollowing accounts.
func NewFriendsUnfollowedMessage(profileScreenName, profileAvatarURI string, unfollowed []string) *Message {
	return &Message{
		Entity: docstore.NewEntity(),
		Type:   MessageTypeFriendsUnfollowed,
		FriendsUnfollowed: &FriendsUnfollowedPayload{
			ProfileScreenName:     profileScreenName,
			ProfileAvatarURI:      profileAvatarURI,
			UnfollowedScreenNames: unfollowed,
		},
	}
}

// Validate checks that the message carries exactly the payload its tag
// names.
func (m *Message) Validate() error {
	payloads := 0
	var matching bool

	if m.WatchlistAdded != nil {
		payloads++
		matching = m.Type == MessageTypeWatchlistAdded
	}
	if m.WatchlistRemoved != nil {
		payloads++
		matching = m.Type == MessageTypeWatchlistRemoved
	}
	if m.FriendsFollowed != nil {
		payloads++
		matching = m.Type == MessageTypeFriendsFollowed
	}
	if m.FriendsUnfollowed != nil {
		payloads++
		matching = m.Type == MessageTypeFriendsUnfollowed
	}

	if m.Type == MessageTypeNone {
		if payloads != 0 {
			return fmt.Errorf("message %q: untyped message carries a payload", m.ID)
		}
		return nil
	}

	if payloads != 1 || !matching {
		return fmt.Errorf("message %q: type %s requires exactly its own payload", m.ID, m.Type)
	}

	return nil
}
