package watchlist

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/curio-sh/curio/internal/diff"
	"github.com/curio-sh/curio/internal/docstore"
	"github.com/curio-sh/curio/internal/eventlog"
	"github.com/curio-sh/curio/internal/social"
	"github.com/curio-sh/curio/internal/timeline"
)

// defaultProfilePageSize bounds how many profiles load per page while the
// friends monitor walks the watchlist.
const defaultProfilePageSize = 50

// FriendsMonitor is the recurring task that walks the watchlist, pulls
// each profile's current friend list, reports follows and unfollows to
// the timeline, and stores the new snapshot on the profile.
type FriendsMonitor struct {
	client   social.Client
	profiles Store
	timeline *timeline.Service
	logger   eventlog.Logger
	cron     string
	pageSize int
}

// NewFriendsMonitor creates the friends monitor running on the given
// cron schedule.
func NewFriendsMonitor(client social.Client, profiles Store, tl *timeline.Service, logger eventlog.Logger, cron string) *FriendsMonitor {
	if logger == nil {
		logger = eventlog.Nop{}
	}

	return &FriendsMonitor{
		client:   client,
		profiles: profiles,
		timeline: tl,
		logger:   logger,
		cron:     cron,
		pageSize: defaultProfilePageSize,
	}
}

// Schedule returns the monitor's cron expression.
func (m *FriendsMonitor) Schedule() string {
	return m.cron
}

// Execute processes every watched profile. A failure on one profile does
// not stop the walk; all failures are joined into the returned error.
func (m *FriendsMonitor) Execute(ctx context.Context) error {
	start := time.Now().UTC()

	var errs []error
	processed := 0

	for page := 0; ; page++ {
		profiles, err := m.profiles.QuerySorted(ctx, nil, "id", true, page, m.pageSize)
		if err != nil {
			return fmt.Errorf("loading watchlist page %d: %w", page, err)
		}
		if len(profiles) == 0 {
			break
		}

		for _, profile := range profiles {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := m.processProfile(ctx, profile); err != nil {
				errs = append(errs, fmt.Errorf("profile %q: %w", profile.ScreenName(), err))
				continue
			}
			processed++
		}

		if len(profiles) < m.pageSize {
			break
		}
	}

	end := time.Now().UTC()
	m.logger.LogEvent("FriendsMonitor:Run", map[string]string{
		"start":     start.Format(time.RFC3339),
		"end":       end.Format(time.RFC3339),
		"duration":  end.Sub(start).String(),
		"processed": strconv.Itoa(processed),
		"failed":    strconv.Itoa(len(errs)),
	})

	return errors.Join(errs...)
}

func (m *FriendsMonitor) processProfile(ctx context.Context, profile *Profile) error {
	friendIDs, err := m.client.FriendIDsByUserID(ctx, profile.UserID)
	if err != nil {
		return fmt.Errorf("fetching friend list: %w", err)
	}

	// The upstream API sometimes returns an empty friend list; skip
	// rather than report everyone unfollowed.
	if len(friendIDs) == 0 {
		return nil
	}

	changes := diff.Analyze(friendIDs, profile.FriendIDs)

	if len(changes.Added) > 0 {
		msg := timeline.NewFriendsFollowedMessage(
			profile.ScreenName(), profile.ProfileImageURI, m.resolveScreenNames(ctx, changes.Added))
		if err := m.timeline.AddMessage(ctx, msg); err != nil {
			return fmt.Errorf("reporting follows: %w", err)
		}
	}

	if len(changes.Removed) > 0 {
		msg := timeline.NewFriendsUnfollowedMessage(
			profile.ScreenName(), profile.ProfileImageURI, m.resolveScreenNames(ctx, changes.Removed))
		if err := m.timeline.AddMessage(ctx, msg); err != nil {
			return fmt.Errorf("reporting unfollows: %w", err)
		}
	}

	profile.FriendIDs = friendIDs
	return m.updateProfile(ctx, profile)
}

// updateProfile stores the new friend snapshot. On a lost update it
// re-reads the profile, reapplies the snapshot, and retries exactly once;
// a second race is returned to the caller.
func (m *FriendsMonitor) updateProfile(ctx context.Context, profile *Profile) error {
	err := m.profiles.Update(ctx, profile)
	if err == nil {
		return nil
	}
	if !errors.Is(err, docstore.ErrLostUpdate) {
		return fmt.Errorf("updating profile: %w", err)
	}

	fresh, getErr := m.profiles.GetByID(ctx, profile.ID)
	if getErr != nil {
		return fmt.Errorf("re-reading profile after lost update: %w", getErr)
	}

	fresh.FriendIDs = profile.FriendIDs
	if err := m.profiles.Update(ctx, fresh); err != nil {
		return fmt.Errorf("retrying profile update: %w", err)
	}

	return nil
}

// resolveScreenNames maps account ids to screen names, falling back to
// the numeric id for accounts that no longer resolve.
func (m *FriendsMonitor) resolveScreenNames(ctx context.Context, ids []int64) []string {
	users, err := m.client.UsersByIDs(ctx, ids)
	if err != nil {
		m.logger.LogException(err, map[string]string{"op": "resolveScreenNames"})
		users = nil
	}

	byID := make(map[int64]string, len(users))
	for _, u := range users {
		byID[u.UserID] = u.ScreenName
	}

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			names = append(names, name)
			continue
		}
		names = append(names, strconv.FormatInt(id, 10))
	}

	return names
}
