package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/curio-sh/curio/internal/config"
	"github.com/curio-sh/curio/internal/database"
)

type note struct {
	Entity
	Title string `json:"title"`
	Rank  int    `json:"rank"`
}

func newNote(title string, rank int) *note {
	return &note{Entity: NewEntity(), Title: title, Rank: rank}
}

func testDB(t *testing.T) *database.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		WALMode:      true,
		CacheSize:    -2000,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func testRepo(t *testing.T, db *database.DB) *Repository[note, *note] {
	t.Helper()

	repo, err := NewRepository[note](context.Background(), db, Options{
		Collection:    "notes",
		SchemaVersion: 1,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	return repo
}

func TestInsertAndGet(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	n := newNote("first", 3)
	n.SchemaVersion = 99

	if err := repo.Insert(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if n.SchemaVersion != 1 {
		t.Errorf("expected schema version 1 after insert, got %d", n.SchemaVersion)
	}

	got, err := repo.GetByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "first" || got.Rank != 3 {
		t.Errorf("unexpected document: %+v", got)
	}
	if got.ConcurrencyStamp != n.ConcurrencyStamp {
		t.Errorf("stamp changed on read: %q vs %q", got.ConcurrencyStamp, n.ConcurrencyStamp)
	}
}

func TestInsertValidation(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	if err := repo.Insert(ctx, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil item: expected ErrInvalidArgument, got %v", err)
	}

	blank := &note{Title: "no id"}
	if err := repo.Insert(ctx, blank); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty id: expected ErrInvalidArgument, got %v", err)
	}

	n := newNote("dup", 1)
	if err := repo.Insert(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}

	again := newNote("dup again", 2)
	again.ID = n.ID
	if err := repo.Insert(ctx, again); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("duplicate id: expected ErrInvalidArgument, got %v", err)
	}
}

func TestInsertBackfillsStamp(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	n := newNote("stamped", 0)
	n.ConcurrencyStamp = ""

	if err := repo.Insert(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n.ConcurrencyStamp == "" {
		t.Error("expected a stamp to be assigned on insert")
	}
}

func TestUpdate(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	n := newNote("before", 1)
	if err := repo.Insert(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}

	original := n.ConcurrencyStamp
	n.Title = "after"

	if err := repo.Update(ctx, n); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.ConcurrencyStamp == original {
		t.Error("expected a fresh stamp after update")
	}

	got, err := repo.GetByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "after" {
		t.Errorf("expected title %q, got %q", "after", got.Title)
	}
	if got.ConcurrencyStamp != n.ConcurrencyStamp {
		t.Errorf("stored stamp %q does not match item stamp %q", got.ConcurrencyStamp, n.ConcurrencyStamp)
	}
}

func TestUpdateLostUpdate(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	n := newNote("shared", 1)
	if err := repo.Insert(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}

	first, err := repo.GetByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	second, err := repo.GetByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("get second: %v", err)
	}

	first.Title = "winner"
	if err := repo.Update(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}

	staleStamp := second.ConcurrencyStamp
	second.Title = "loser"
	err = repo.Update(ctx, second)
	if !errors.Is(err, ErrLostUpdate) {
		t.Fatalf("expected ErrLostUpdate, got %v", err)
	}
	if second.ConcurrencyStamp != staleStamp {
		t.Errorf("stamp not restored after lost update: %q vs %q", second.ConcurrencyStamp, staleStamp)
	}

	got, err := repo.GetByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "winner" {
		t.Errorf("expected the first writer's document, got title %q", got.Title)
	}

	// The loser can retry after re-reading the current revision.
	second.ConcurrencyStamp = got.ConcurrencyStamp
	if err := repo.Update(ctx, second); err != nil {
		t.Fatalf("retry after re-read: %v", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	n := newNote("ghost", 1)
	n.SchemaVersion = 1
	if err := repo.Update(ctx, n); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSchemaGate(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	n := newNote("gated", 1)
	if err := repo.Insert(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}

	n.SchemaVersion = 0
	n.Title = "stale write"
	err := repo.Update(ctx, n)
	if !IsSchemaMismatch(err) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}

	got, err := repo.GetByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "gated" {
		t.Errorf("store modified by rejected update: title %q", got.Title)
	}
}

func TestDelete(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	if err := repo.DeleteByID(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty id: expected ErrInvalidArgument, got %v", err)
	}

	// A well-formed but absent id is acknowledged.
	if err := repo.DeleteByID(ctx, "no-such-id"); err != nil {
		t.Errorf("absent id: expected success, got %v", err)
	}

	n := newNote("doomed", 1)
	if err := repo.Insert(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Delete(ctx, n); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := repo.GetByID(ctx, n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	exists, err := repo.Contains(ctx, n.ID)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if exists {
		t.Error("expected Contains to report false after delete")
	}
}

func TestCount(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Insert(ctx, newNote("note", i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	total, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 5 {
		t.Errorf("expected 5 documents, got %d", total)
	}

	high, err := repo.Count(ctx, Where{Field: "rank", Op: database.OpGte, Value: 3})
	if err != nil {
		t.Fatalf("count filtered: %v", err)
	}
	if high != 2 {
		t.Errorf("expected 2 documents with rank >= 3, got %d", high)
	}

	if _, err := repo.Count(ctx, Where{Field: "rank); DROP TABLE", Op: database.OpEq, Value: 1}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("malformed field: expected ErrInvalidArgument, got %v", err)
	}
}

func TestQueryPagination(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if err := repo.Insert(ctx, newNote("page", i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	all, err := repo.Query(ctx, nil, 0, 0)
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 7 {
		t.Fatalf("expected 7 documents, got %d", len(all))
	}

	page0, err := repo.QuerySorted(ctx, nil, "rank", true, 0, 3)
	if err != nil {
		t.Fatalf("page 0: %v", err)
	}
	page2, err := repo.QuerySorted(ctx, nil, "rank", true, 2, 3)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}

	if len(page0) != 3 || len(page2) != 1 {
		t.Fatalf("expected pages of 3 and 1, got %d and %d", len(page0), len(page2))
	}
	if page0[0].Rank != 0 || page2[0].Rank != 6 {
		t.Errorf("unexpected page boundaries: first=%d last=%d", page0[0].Rank, page2[0].Rank)
	}
}

func TestQuerySortedDescending(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := repo.Insert(ctx, newNote("sorted", i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	docs, err := repo.QuerySorted(ctx, nil, "rank", false, 0, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	for i := 1; i < len(docs); i++ {
		if docs[i-1].Rank < docs[i].Rank {
			t.Fatalf("not descending at %d: %d before %d", i, docs[i-1].Rank, docs[i].Rank)
		}
	}
}

func TestQuerySortedByCreated(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Mixed sub-second precision: whole seconds, two fractional digits,
	// one fractional digit. Text ordering on the created column must
	// still match chronological order.
	stamps := []time.Time{
		base.Add(150 * time.Millisecond),
		base,
		base.Add(100 * time.Millisecond),
		base.Add(time.Second),
	}
	for i, ts := range stamps {
		n := newNote("stamped", i)
		n.Created = ts
		if err := repo.Insert(ctx, n); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	docs, err := repo.QuerySorted(ctx, nil, "created", true, 0, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != len(stamps) {
		t.Fatalf("expected %d documents, got %d", len(stamps), len(docs))
	}
	for i := 1; i < len(docs); i++ {
		if docs[i].Created.Before(docs[i-1].Created) {
			t.Fatalf("not chronological at %d: %v before %v", i, docs[i].Created, docs[i-1].Created)
		}
	}
}

func TestSelectWithBuilder(t *testing.T) {
	repo := testRepo(t, testDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Insert(ctx, newNote("built", i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	qb := repo.Builder().
		Filter("json_extract(data, '$.rank')", database.OpGte, 2).
		Sort("json_extract(data, '$.rank')", database.SortAsc).
		Limit(2)

	docs, err := repo.Select(ctx, qb)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Rank != 2 || docs[1].Rank != 3 {
		t.Fatalf("unexpected ranks: %d, %d", docs[0].Rank, docs[1].Rank)
	}
}

func TestNewRepositoryValidatesCollection(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, name := range []string{"", "Notes", "1notes", "notes; drop"} {
		_, err := NewRepository[note](ctx, db, Options{Collection: name, SchemaVersion: 1})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("collection %q: expected ErrInvalidArgument, got %v", name, err)
		}
	}
}

func TestNewRepositorySchemaMismatch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	repo := testRepo(t, db)
	if err := repo.Insert(ctx, newNote("v1", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := NewRepository[note](ctx, db, Options{Collection: "notes", SchemaVersion: 2})
	if !IsSchemaMismatch(err) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}

	var sm *SchemaMismatchError
	if errors.As(err, &sm) {
		if sm.Collection != "notes" || sm.Mismatches != 1 {
			t.Errorf("unexpected mismatch detail: %+v", sm)
		}
	}

	// Migration mode opens the same collection regardless.
	if _, err := NewRepository[note](ctx, db, Options{Collection: "notes", SchemaVersion: 2, MigrationMode: true}); err != nil {
		t.Errorf("migration mode: %v", err)
	}

	// A negative declared version disables the check entirely.
	if _, err := NewRepository[note](ctx, db, Options{Collection: "notes", SchemaVersion: -1}); err != nil {
		t.Errorf("unversioned: %v", err)
	}
}
