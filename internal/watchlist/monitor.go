package watchlist

import (
	"context"
	"fmt"
	"time"

	"github.com/curio-sh/curio/internal/diff"
	"github.com/curio-sh/curio/internal/eventlog"
	"github.com/curio-sh/curio/internal/social"
	"github.com/curio-sh/curio/internal/timeline"
)

// Monitor is the recurring task that keeps the watchlist in sync with
// the service account's friend list. Accounts the service account starts
// following join the watchlist; accounts it unfollows leave it. Both
// changes are reported to the timeline.
type Monitor struct {
	client   social.Client
	profiles Store
	timeline *timeline.Service
	logger   eventlog.Logger
	account  string
	cron     string
}

// NewMonitor creates the watchlist monitor for the given service
// account, running on the given cron schedule.
func NewMonitor(client social.Client, profiles Store, tl *timeline.Service, logger eventlog.Logger, account, cron string) *Monitor {
	if logger == nil {
		logger = eventlog.Nop{}
	}

	return &Monitor{
		client:   client,
		profiles: profiles,
		timeline: tl,
		logger:   logger,
		account:  account,
		cron:     cron,
	}
}

// Schedule returns the monitor's cron expression.
func (m *Monitor) Schedule() string {
	return m.cron
}

// Execute pulls the service account's current friend list, diffs it
// against the stored watchlist, and applies the changes.
func (m *Monitor) Execute(ctx context.Context) error {
	start := time.Now().UTC()

	friendIDs, err := m.client.FriendIDs(ctx, m.account)
	if err != nil {
		return fmt.Errorf("fetching friend list for %q: %w", m.account, err)
	}

	// The upstream API sometimes returns an empty friend list; skip the
	// pass rather than empty the watchlist.
	if len(friendIDs) == 0 {
		m.logger.LogEvent("WatchlistMonitor:EmptyFriendList", map[string]string{
			"account": m.account,
		})
		return nil
	}

	current, err := m.profiles.Query(ctx, nil, 0, 0)
	if err != nil {
		return fmt.Errorf("loading watchlist: %w", err)
	}

	currentIDs := make([]int64, 0, len(current))
	for _, p := range current {
		currentIDs = append(currentIDs, p.UserID)
	}

	changes := diff.Analyze(friendIDs, currentIDs)

	if len(changes.Added) > 0 {
		if err := m.addProfiles(ctx, changes.Added); err != nil {
			return err
		}
	}

	if len(changes.Removed) > 0 {
		if err := m.removeProfiles(ctx, current, changes.Removed); err != nil {
			return err
		}
	}

	end := time.Now().UTC()
	m.logger.LogEvent("WatchlistMonitor:Run", map[string]string{
		"start":    start.Format(time.RFC3339),
		"end":      end.Format(time.RFC3339),
		"duration": end.Sub(start).String(),
		"added":    fmt.Sprint(len(changes.Added)),
		"removed":  fmt.Sprint(len(changes.Removed)),
	})

	return nil
}

// addProfiles resolves the new friends, stores them on the watchlist,
// and reports the additions to the timeline.
func (m *Monitor) addProfiles(ctx context.Context, ids []int64) error {
	users, err := m.client.UsersByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("resolving added friends: %w", err)
	}

	screenNames := make([]string, 0, len(users))
	for _, user := range users {
		friendIDs, err := m.client.FriendIDs(ctx, user.ScreenName)
		if err != nil {
			return fmt.Errorf("fetching friend list for %q: %w", user.ScreenName, err)
		}

		if err := m.profiles.Insert(ctx, NewProfile(user, friendIDs)); err != nil {
			return fmt.Errorf("adding %q to watchlist: %w", user.ScreenName, err)
		}

		screenNames = append(screenNames, user.ScreenName)
	}

	return m.timeline.AddMessage(ctx, timeline.NewWatchlistAddedMessage(screenNames))
}

// removeProfiles drops unfollowed accounts from the watchlist and
// reports the removals to the timeline.
func (m *Monitor) removeProfiles(ctx context.Context, current []*Profile, ids []int64) error {
	removed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		removed[id] = true
	}

	var screenNames []string
	for _, p := range current {
		if !removed[p.UserID] {
			continue
		}

		if err := m.profiles.DeleteByID(ctx, p.ID); err != nil {
			return fmt.Errorf("removing %q from watchlist: %w", p.ScreenName(), err)
		}
		screenNames = append(screenNames, p.ScreenName())
	}

	if len(screenNames) == 0 {
		return nil
	}

	return m.timeline.AddMessage(ctx, timeline.NewWatchlistRemovedMessage(screenNames))
}
