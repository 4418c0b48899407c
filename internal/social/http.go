package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPClient talks to the social gateway, a thin REST facade over the
// upstream network. Endpoints return JSON; everything beyond the facade
// is opaque to this service.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client for the gateway at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) FriendIDs(ctx context.Context, screenName string) ([]int64, error) {
	var out struct {
		FriendIDs []int64 `json:"friend_ids"`
	}
	path := "/friends/" + url.PathEscape(screenName)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.FriendIDs, nil
}

func (c *HTTPClient) FriendIDsByUserID(ctx context.Context, userID int64) ([]int64, error) {
	var out struct {
		FriendIDs []int64 `json:"friend_ids"`
	}
	path := "/friends/id/" + strconv.FormatInt(userID, 10)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.FriendIDs, nil
}

func (c *HTTPClient) UsersByIDs(ctx context.Context, ids []int64) ([]User, error) {
	params := make([]string, 0, len(ids))
	for _, id := range ids {
		params = append(params, strconv.FormatInt(id, 10))
	}

	var out struct {
		Users []User `json:"users"`
	}
	path := "/users?ids=" + strings.Join(params, ",")
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling social gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("social gateway returned %s for %s", resp.Status, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding gateway response: %w", err)
	}

	return nil
}
