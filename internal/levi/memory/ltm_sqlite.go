package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore implements Store using SQLite with JSON-encoded float32
// embeddings and brute-force cosine similarity computed in Go. This is
// suitable for the expected scale (a bounded number of records per user,
// capped at MaxPerUser), where loading one user's embeddings and scoring
// them in-process is fast and avoids a vector-index dependency.
//
// Similarity is computed Go-side because modernc.org/sqlite does not support
// custom C functions.
type SQLiteStore struct {
	db         *sql.DB
	embedder   Embedder
	maxPerUser int
	logger     *slog.Logger
	now        func() time.Time // injectable for tests
}

// NewSQLiteStore creates a SQLiteStore backed by the given database
// connection. The memories table must exist (created by the store package's
// migrations). maxPerUser bounds each user's record sequence; non-positive
// values fall back to DefaultMaxPerUser. If logger is nil, the default slog
// logger is used.
func NewSQLiteStore(db *sql.DB, embedder Embedder, maxPerUser int, logger *slog.Logger) *SQLiteStore {
	if embedder == nil {
		embedder = NoopEmbedder{}
	}
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPerUser
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{
		db:         db,
		embedder:   embedder,
		maxPerUser: maxPerUser,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateMemory appends a new record to the user's sequence. Embedding failure
// is logged and the record is stored with a nil embedding; only a failed
// write returns an error.
func (s *SQLiteStore) CreateMemory(ctx context.Context, userID, content string, meta Meta) (Record, error) {
	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		s.logger.Warn("memory sqlite: embedding failed, storing record without vector",
			"user_id", userID,
			"err", err,
		)
		embedding = nil
	}

	now := s.now().UTC()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}

	rec := Record{
		ID:        uuid.New().String(),
		Content:   content,
		Embedding: embedding,
		Timestamp: now,
		Meta:      meta,
	}

	var embeddingJSON []byte
	if rec.Embedding != nil {
		embeddingJSON, err = json.Marshal(rec.Embedding)
		if err != nil {
			return Record{}, fmt.Errorf("memory sqlite: marshal embedding: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, user_id, content, embedding, timestamp, username, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		userID,
		rec.Content,
		nullableString(embeddingJSON),
		rec.Timestamp.Format(time.RFC3339),
		rec.Meta.Username,
		string(rec.Meta.Kind),
		rec.Meta.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return Record{}, fmt.Errorf("memory sqlite: insert record: %w", err)
	}

	// Evict the oldest records beyond the per-user cap. seq is the append
	// order, so keeping the highest seq values keeps the newest records.
	_, err = s.db.ExecContext(ctx, `
		DELETE FROM memories
		WHERE user_id = ? AND seq NOT IN (
			SELECT seq FROM memories WHERE user_id = ? ORDER BY seq DESC LIMIT ?
		)`,
		userID, userID, s.maxPerUser,
	)
	if err != nil {
		return Record{}, fmt.Errorf("memory sqlite: evict over cap: %w", err)
	}

	s.logger.Debug("memory sqlite: stored record",
		"record_id", rec.ID,
		"user_id", userID,
		"kind", string(rec.Meta.Kind),
		"has_embedding", rec.Embedding != nil,
	)

	return rec, nil
}

// FindSimilar scores every record of the user against the query embedding.
// A failed or unavailable query embedding degrades to an empty result.
// Read failures also degrade to empty — retrieval is always best-effort.
func (s *SQLiteStore) FindSimilar(ctx context.Context, userID, query string, opts SearchOptions) ([]Excerpt, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("memory sqlite: query embedding failed, skipping retrieval",
			"user_id", userID,
			"err", err,
		)
		return nil, nil
	}
	if queryVec == nil {
		return nil, nil
	}

	records, err := s.loadUser(ctx, userID)
	if err != nil {
		s.logger.Warn("memory sqlite: load records failed, treating as no memories",
			"user_id", userID,
			"err", err,
		)
		return nil, nil
	}

	// Records are in storage order; the stable sort below preserves that
	// order for equal similarity scores.
	var matches []Excerpt
	for _, rec := range records {
		sim := Cosine(queryVec, rec.Embedding)
		if sim < threshold {
			continue
		}
		matches = append(matches, Excerpt{Record: rec, Similarity: sim})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Prune removes records across all users whose created_at is older than
// now minus retention. Returns the number of removed records.
func (s *SQLiteStore) Prune(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-retention).Format(time.RFC3339)

	// RFC3339 UTC timestamps compare correctly as strings.
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("memory sqlite: prune: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("memory sqlite: prune rows affected: %w", err)
	}

	if removed > 0 {
		s.logger.Info("memory sqlite: pruned old records",
			"removed", removed,
			"cutoff", cutoff,
		)
	}
	return int(removed), nil
}

// loadUser returns the user's records in storage (append) order.
// Malformed rows are skipped with a warning rather than failing the load.
func (s *SQLiteStore) loadUser(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, embedding, timestamp, username, kind, created_at
		FROM memories
		WHERE user_id = ?
		ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			s.logger.Warn("memory sqlite: skip malformed row", "user_id", userID, "err", err)
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// scanRecord reads a single row from the memories table.
func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec           Record
		embeddingJSON sql.NullString
		timestampStr  string
		kindStr       string
		createdAtStr  string
	)

	err := rows.Scan(
		&rec.ID,
		&rec.Content,
		&embeddingJSON,
		&timestampStr,
		&rec.Meta.Username,
		&kindStr,
		&createdAtStr,
	)
	if err != nil {
		return Record{}, fmt.Errorf("scan row: %w", err)
	}

	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &rec.Embedding); err != nil {
			return Record{}, fmt.Errorf("unmarshal embedding: %w", err)
		}
	}

	ts, err := time.Parse(time.RFC3339, timestampStr)
	if err != nil {
		return Record{}, fmt.Errorf("parse timestamp: %w", err)
	}
	rec.Timestamp = ts

	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	rec.Meta.CreatedAt = createdAt
	rec.Meta.Kind = Kind(kindStr)

	return rec, nil
}

// nullableString converts a possibly-nil byte slice into a driver-friendly
// value, keeping NULL in the database for absent embeddings.
func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)
