package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/curio-sh/curio/internal/database"
	"github.com/curio-sh/curio/internal/eventlog"
	"github.com/curio-sh/curio/internal/metrics"
)

// Where is a predicate term over a document. Field names address the
// metadata columns (id, created, schema_version, concurrency_stamp)
// directly and any other document field through the JSON body.
type Where struct {
	Field string
	Op    database.FilterOp
	Value any
}

// Options configures a Repository.
type Options struct {
	// Collection names the backing collection. Required.
	Collection string

	// SchemaVersion is the declared schema version for the collection.
	// A negative value disables version enforcement.
	SchemaVersion int

	// MigrationMode suppresses the startup mismatch check so a migration
	// process can upgrade records in place.
	MigrationMode bool

	// Logger receives every caught error. Defaults to eventlog.Nop.
	Logger eventlog.Logger
}

// Repository provides typed CRUD and query operations over one
// collection of documents.
type Repository[T any, PT Ptr[T]] struct {
	db            *database.DB
	collection    string
	table         string
	schemaVersion int
	migrationMode bool
	logger        eventlog.Logger
}

// createdFormat keeps the created column fixed-width so it sorts
// correctly as text. time.RFC3339Nano trims trailing fractional zeros,
// which breaks lexicographic ordering across sub-second precision.
const createdFormat = "2006-01-02T15:04:05.000000000Z"

var collectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// fieldPattern intentionally excludes quotes and parens so field names
// can be spliced into SQL identifiers and JSON paths.
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// NewRepository creates the repository for a collection, ensuring the
// backing table exists. Unless opts.MigrationMode is set, it fails with a
// SchemaMismatchError if any stored document's schema version differs
// from the declared one.
func NewRepository[T any, PT Ptr[T]](ctx context.Context, db *database.DB, opts Options) (*Repository[T, PT], error) {
	if !collectionPattern.MatchString(opts.Collection) {
		return nil, fmt.Errorf("%w: collection name %q", ErrInvalidArgument, opts.Collection)
	}
	if opts.Logger == nil {
		opts.Logger = eventlog.Nop{}
	}

	r := &Repository[T, PT]{
		db:            db,
		collection:    opts.Collection,
		table:         "docs_" + opts.Collection,
		schemaVersion: opts.SchemaVersion,
		migrationMode: opts.MigrationMode,
		logger:        opts.Logger,
	}

	if err := r.initialize(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Repository[T, PT]) initialize(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		created TEXT NOT NULL,
		schema_version INTEGER NOT NULL,
		concurrency_stamp TEXT NOT NULL,
		data TEXT NOT NULL
	)`, r.table)

	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return r.fail("initialize", fmt.Errorf("creating collection %q: %w", r.collection, err))
	}

	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_schema ON %s (schema_version)", r.table, r.table)
	if _, err := r.db.ExecContext(ctx, idx); err != nil {
		return r.fail("initialize", fmt.Errorf("indexing collection %q: %w", r.collection, err))
	}

	if r.schemaVersion < 0 || r.migrationMode {
		return nil
	}

	var mismatches int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE schema_version != ?", r.table)
	if err := r.db.QueryRowContext(ctx, query, r.schemaVersion).Scan(&mismatches); err != nil {
		return r.fail("initialize", fmt.Errorf("checking schema versions: %w", err))
	}

	if mismatches > 0 {
		return r.fail("initialize", &SchemaMismatchError{Collection: r.collection, Mismatches: mismatches})
	}

	return nil
}

// Collection returns the collection name.
func (r *Repository[T, PT]) Collection() string {
	return r.collection
}

// SchemaVersion returns the declared schema version.
func (r *Repository[T, PT]) SchemaVersion() int {
	return r.schemaVersion
}

// Insert writes a new document. The repository's declared schema version
// unconditionally overwrites whatever the caller set on the item.
func (r *Repository[T, PT]) Insert(ctx context.Context, item PT) error {
	if item == nil {
		return r.fail("insert", fmt.Errorf("%w: nil item", ErrInvalidArgument))
	}

	meta := item.Meta()
	if strings.TrimSpace(meta.ID) == "" {
		return r.fail("insert", fmt.Errorf("%w: empty id", ErrInvalidArgument))
	}

	meta.SchemaVersion = r.schemaVersion
	if meta.ConcurrencyStamp == "" {
		meta.ConcurrencyStamp = uuid.NewString()
	}

	data, err := json.Marshal(item)
	if err != nil {
		return r.fail("insert", fmt.Errorf("%w: encoding document: %v", ErrInvalidArgument, err))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (id, created, schema_version, concurrency_stamp, data) VALUES (?, ?, ?, ?, ?)",
		r.table)
	_, err = r.db.ExecContext(ctx, query,
		meta.ID, meta.Created.UTC().Format(createdFormat), meta.SchemaVersion, meta.ConcurrencyStamp, string(data))
	if err != nil {
		classified := database.ClassifyError(err)
		if database.IsUniqueError(classified) {
			return r.fail("insert", fmt.Errorf("%w: id %q already exists", ErrInvalidArgument, meta.ID))
		}
		return r.fail("insert", fmt.Errorf("%w: insert not acknowledged: %v", ErrStoreUnavailable, classified))
	}

	metrics.StoreOperation(r.collection, "insert", "ok")
	return nil
}

// Update replaces an existing document if and only if no other writer
// modified it since this writer's read. On success the item carries a
// fresh concurrency stamp; on any failure the original stamp is restored
// on the in-memory item.
func (r *Repository[T, PT]) Update(ctx context.Context, item PT) error {
	if item == nil {
		return r.fail("update", fmt.Errorf("%w: nil item", ErrInvalidArgument))
	}

	meta := item.Meta()
	if strings.TrimSpace(meta.ID) == "" {
		return r.fail("update", fmt.Errorf("%w: empty id", ErrInvalidArgument))
	}

	// Newer versions must be writable during migration; only stale-schema
	// data is blocked.
	if r.schemaVersion >= 0 && meta.SchemaVersion < r.schemaVersion {
		return r.fail("update", &SchemaMismatchError{Collection: r.collection})
	}

	exists, err := r.Contains(ctx, meta.ID)
	if err != nil {
		return r.fail("update", err)
	}
	if !exists {
		return r.fail("update", fmt.Errorf("%w: id %q", ErrNotFound, meta.ID))
	}

	// Stash the stamp read by the caller; it is restored before returning
	// any error so the item still reflects the revision it was read at.
	stamp := meta.ConcurrencyStamp
	meta.ConcurrencyStamp = uuid.NewString()

	data, err := json.Marshal(item)
	if err != nil {
		meta.ConcurrencyStamp = stamp
		return r.fail("update", fmt.Errorf("%w: encoding document: %v", ErrInvalidArgument, err))
	}

	query := fmt.Sprintf(
		"UPDATE %s SET created = ?, schema_version = ?, concurrency_stamp = ?, data = ? WHERE id = ? AND concurrency_stamp = ?",
		r.table)
	res, err := r.db.ExecContext(ctx, query,
		meta.Created.UTC().Format(createdFormat), meta.SchemaVersion, meta.ConcurrencyStamp, string(data),
		meta.ID, stamp)
	if err != nil {
		meta.ConcurrencyStamp = stamp
		return r.fail("update", fmt.Errorf("%w: update not acknowledged: %v", ErrStoreUnavailable, err))
	}

	matched, err := res.RowsAffected()
	if err != nil {
		meta.ConcurrencyStamp = stamp
		return r.fail("update", fmt.Errorf("%w: update not acknowledged: %v", ErrStoreUnavailable, err))
	}

	if matched == 0 {
		meta.ConcurrencyStamp = stamp
		return r.fail("update", fmt.Errorf("%w: id %q", ErrLostUpdate, meta.ID))
	}

	metrics.StoreOperation(r.collection, "update", "ok")
	return nil
}

// Delete removes the given document.
func (r *Repository[T, PT]) Delete(ctx context.Context, item PT) error {
	if item == nil {
		return r.fail("delete", fmt.Errorf("%w: nil item", ErrInvalidArgument))
	}
	return r.DeleteByID(ctx, item.Meta().ID)
}

// DeleteByID removes the document with the given id. Deleting an id that
// is well-formed but absent succeeds: the store acknowledges the delete
// with zero rows affected.
func (r *Repository[T, PT]) DeleteByID(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return r.fail("delete", fmt.Errorf("%w: empty id", ErrInvalidArgument))
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.table)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return r.fail("delete", fmt.Errorf("%w: delete not acknowledged: %v", ErrStoreUnavailable, err))
	}

	metrics.StoreOperation(r.collection, "delete", "ok")
	return nil
}

// GetByID loads the document with the given id.
func (r *Repository[T, PT]) GetByID(ctx context.Context, id string) (PT, error) {
	if strings.TrimSpace(id) == "" {
		return nil, r.fail("get", fmt.Errorf("%w: empty id", ErrInvalidArgument))
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE id = ?", r.table)

	var data string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.fail("get", fmt.Errorf("%w: id %q", ErrNotFound, id))
	}
	if err != nil {
		return nil, r.fail("get", fmt.Errorf("querying document: %w", err))
	}

	item, err := r.decode(data)
	if err != nil {
		return nil, r.fail("get", err)
	}

	metrics.StoreOperation(r.collection, "get", "ok")
	return item, nil
}

// Count returns the number of documents matching all the given terms. No
// terms means the whole collection.
func (r *Repository[T, PT]) Count(ctx context.Context, where ...Where) (int64, error) {
	qb, err := r.builder(where)
	if err != nil {
		return 0, r.fail("count", err)
	}

	query, args := qb.BuildCount()

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, r.fail("count", fmt.Errorf("counting documents: %w", err))
	}

	metrics.StoreOperation(r.collection, "count", "ok")
	return count, nil
}

// Contains reports whether a document with the given id exists.
func (r *Repository[T, PT]) Contains(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, r.fail("contains", fmt.Errorf("%w: empty id", ErrInvalidArgument))
	}

	count, err := r.Count(ctx, Where{Field: "id", Op: database.OpEq, Value: id})
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// Query returns matching documents with offset pagination: skip
// pageNumber*pageSize, take pageSize. A pageSize of 0 returns everything.
// Page numbers are 0-based.
func (r *Repository[T, PT]) Query(ctx context.Context, where []Where, pageNumber, pageSize int) ([]PT, error) {
	qb, err := r.builder(where)
	if err != nil {
		return nil, r.fail("query", err)
	}

	paginate(qb, pageNumber, pageSize)
	return r.runQuery(ctx, "query", qb)
}

// QuerySorted is Query with an ordering over a document field.
func (r *Repository[T, PT]) QuerySorted(ctx context.Context, where []Where, sortField string, ascending bool, pageNumber, pageSize int) ([]PT, error) {
	qb, err := r.builder(where)
	if err != nil {
		return nil, r.fail("query", err)
	}

	expr, err := fieldExpr(sortField)
	if err != nil {
		return nil, r.fail("query", err)
	}

	order := database.SortDesc
	if ascending {
		order = database.SortAsc
	}
	qb.Sort(expr, order)

	paginate(qb, pageNumber, pageSize)
	return r.runQuery(ctx, "query", qb)
}

// Builder exposes a query builder over the backing table for advanced
// composition. Callers run the result through Select. This is an escape
// hatch; the builder addresses raw SQL expressions, not document fields.
func (r *Repository[T, PT]) Builder() *database.QueryBuilder {
	return database.NewQuery(r.table).Select("data")
}

// Select runs a builder obtained from Builder and decodes the documents.
func (r *Repository[T, PT]) Select(ctx context.Context, qb *database.QueryBuilder) ([]PT, error) {
	return r.runQuery(ctx, "select", qb)
}

func (r *Repository[T, PT]) runQuery(ctx context.Context, op string, qb *database.QueryBuilder) ([]PT, error) {
	query, args := qb.Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.fail(op, fmt.Errorf("querying documents: %w", err))
	}
	defer rows.Close()

	var items []PT
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, r.fail(op, fmt.Errorf("scanning document: %w", err))
		}

		item, err := r.decode(data)
		if err != nil {
			return nil, r.fail(op, err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, r.fail(op, fmt.Errorf("iterating documents: %w", err))
	}

	metrics.StoreOperation(r.collection, op, "ok")
	return items, nil
}

func (r *Repository[T, PT]) builder(where []Where) (*database.QueryBuilder, error) {
	qb := database.NewQuery(r.table).Select("data")

	for _, w := range where {
		expr, err := fieldExpr(w.Field)
		if err != nil {
			return nil, err
		}
		qb.Filter(expr, w.Op, w.Value)
	}

	return qb, nil
}

func (r *Repository[T, PT]) decode(data string) (PT, error) {
	var value T
	item := PT(&value)
	if err := json.Unmarshal([]byte(data), item); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return item, nil
}

// fail logs the error through the event-logger collaborator, counts it,
// and hands it back for propagation. Nothing is swallowed here.
func (r *Repository[T, PT]) fail(op string, err error) error {
	r.logger.LogEvent("DocumentRepositoryError", map[string]string{
		"collection": r.collection,
		"op":         op,
		"error":      err.Error(),
	})
	metrics.StoreOperation(r.collection, op, "error")
	return err
}

var metaColumns = map[string]bool{
	"id":                true,
	"created":           true,
	"schema_version":    true,
	"concurrency_stamp": true,
}

// fieldExpr maps a document field name to a SQL expression: metadata
// fields hit their columns, everything else goes through the JSON body.
func fieldExpr(field string) (string, error) {
	if !fieldPattern.MatchString(field) {
		return "", fmt.Errorf("%w: field name %q", ErrInvalidArgument, field)
	}
	if metaColumns[field] {
		return field, nil
	}
	return fmt.Sprintf("json_extract(data, '$.%s')", field), nil
}

func paginate(qb *database.QueryBuilder, pageNumber, pageSize int) {
	if pageSize <= 0 {
		return
	}
	qb.Limit(pageSize)
	if pageNumber > 0 {
		qb.Offset(pageNumber * pageSize)
	}
}
