package social

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func gatewayStub(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/friends/id/42", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"friend_ids": [7, 8]}`))
	})
	mux.HandleFunc("/friends/alice", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"friend_ids": [1, 2, 3]}`))
	})
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "1,2" {
			http.Error(w, "unexpected ids", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"users": [
			{"user_id": 1, "screen_name": "alice"},
			{"user_id": 2, "screen_name": "bob"}
		]}`))
	})
	mux.HandleFunc("/friends/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClientFriendIDs(t *testing.T) {
	srv := gatewayStub(t)
	client := NewHTTPClient(srv.URL, time.Second)
	ctx := context.Background()

	ids, err := client.FriendIDs(ctx, "alice")
	if err != nil {
		t.Fatalf("friend ids: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 {
		t.Errorf("ids = %v", ids)
	}

	byID, err := client.FriendIDsByUserID(ctx, 42)
	if err != nil {
		t.Fatalf("friend ids by user id: %v", err)
	}
	if len(byID) != 2 || byID[0] != 7 {
		t.Errorf("ids = %v", byID)
	}
}

func TestHTTPClientUsersByIDs(t *testing.T) {
	srv := gatewayStub(t)
	client := NewHTTPClient(srv.URL, time.Second)

	users, err := client.UsersByIDs(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if len(users) != 2 || users[0].ScreenName != "alice" || users[1].UserID != 2 {
		t.Errorf("users = %+v", users)
	}
}

func TestHTTPClientErrorStatus(t *testing.T) {
	srv := gatewayStub(t)
	client := NewHTTPClient(srv.URL, time.Second)

	if _, err := client.FriendIDs(context.Background(), "broken"); err == nil {
		t.Error("expected an error on a non-200 response")
	}
}

func TestHTTPClientTrimsTrailingSlash(t *testing.T) {
	srv := gatewayStub(t)
	client := NewHTTPClient(srv.URL+"/", time.Second)

	if _, err := client.FriendIDs(context.Background(), "alice"); err != nil {
		t.Errorf("trailing slash: %v", err)
	}
}
