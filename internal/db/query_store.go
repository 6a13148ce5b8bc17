package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SavedQuery is a named search query persisted per user.
type SavedQuery struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Query       string `json:"query"`
	Description string `json:"description"`
	Category    string `json:"category"`
	UseCount    int    `json:"use_count"`
	LastUsed    int64  `json:"last_used"`
	CreatedAt   int64  `json:"created_at"`
}

// QueryStore handles database operations for saved queries.
type QueryStore struct {
	db *sql.DB
}

// NewQueryStore creates a new query store.
func NewQueryStore(store *Store) *QueryStore {
	return &QueryStore{db: store.DB()}
}

const savedQueryColumns = "id, user_id, name, query, description, category, use_count, last_used, created_at"

func scanSavedQuery(row interface{ Scan(...any) error }) (*SavedQuery, error) {
	q := &SavedQuery{}
	err := row.Scan(&q.ID, &q.UserID, &q.Name, &q.Query, &q.Description,
		&q.Category, &q.UseCount, &q.LastUsed, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("query not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan query: %w", err)
	}
	return q, nil
}

func collectSavedQueries(rows *sql.Rows) ([]*SavedQuery, error) {
	defer rows.Close()
	var queries []*SavedQuery
	for rows.Next() {
		q, err := scanSavedQuery(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return queries, nil
}

// Save inserts a new query or updates an existing one by (user, name).
func (s *QueryStore) Save(ctx context.Context, userID, name, query, description, category string) (*SavedQuery, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(name) == "" || strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("user_id, name, and query cannot be empty")
	}
	if strings.TrimSpace(category) == "" {
		category = "general"
	}
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_queries (user_id, name, query, description, category, use_count, last_used, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(user_id, name) DO UPDATE SET
			query = excluded.query,
			description = excluded.description,
			category = excluded.category,
			last_used = excluded.last_used`,
		userID, name, query, description, category, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to save query: %w", err)
	}
	return s.GetByName(ctx, userID, name)
}

// GetByName retrieves a saved query by name.
func (s *QueryStore) GetByName(ctx context.Context, userID, name string) (*SavedQuery, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("user_id and name cannot be empty")
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+savedQueryColumns+" FROM saved_queries WHERE user_id = ? AND name = ?",
		userID, name)
	return scanSavedQuery(row)
}

// GetByID retrieves a saved query by ID.
func (s *QueryStore) GetByID(ctx context.Context, userID string, id int64) (*SavedQuery, error) {
	if strings.TrimSpace(userID) == "" || id <= 0 {
		return nil, fmt.Errorf("user_id cannot be empty and id must be positive")
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+savedQueryColumns+" FROM saved_queries WHERE user_id = ? AND id = ?",
		userID, id)
	return scanSavedQuery(row)
}

// List retrieves saved queries for a user, optionally filtered by category.
func (s *QueryStore) List(ctx context.Context, userID, category string) ([]*SavedQuery, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user_id cannot be empty")
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(category) == "" {
		rows, err = s.db.QueryContext(ctx,
			"SELECT "+savedQueryColumns+" FROM saved_queries WHERE user_id = ? ORDER BY last_used DESC, use_count DESC, name ASC",
			userID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT "+savedQueryColumns+" FROM saved_queries WHERE user_id = ? AND category = ? ORDER BY last_used DESC, use_count DESC, name ASC",
			userID, category)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	return collectSavedQueries(rows)
}

// Search matches queries by name, description or query content.
func (s *QueryStore) Search(ctx context.Context, userID, term string) ([]*SavedQuery, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user_id cannot be empty")
	}
	pattern := "%" + strings.TrimSpace(term) + "%"
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+savedQueryColumns+` FROM saved_queries
		 WHERE user_id = ? AND (name LIKE ? OR description LIKE ? OR query LIKE ?)
		 ORDER BY use_count DESC, last_used DESC, name ASC`,
		userID, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search queries: %w", err)
	}
	return collectSavedQueries(rows)
}

// RecordUsage increments use count and updates the last-used timestamp.
func (s *QueryStore) RecordUsage(ctx context.Context, userID string, id int64) error {
	if strings.TrimSpace(userID) == "" || id <= 0 {
		return fmt.Errorf("user_id cannot be empty and id must be positive")
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE saved_queries SET use_count = use_count + 1, last_used = ? WHERE user_id = ? AND id = ?",
		time.Now().Unix(), userID, id)
	if err != nil {
		return fmt.Errorf("failed to update query usage: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("query not found")
	}
	return nil
}

// Delete removes a saved query by ID.
func (s *QueryStore) Delete(ctx context.Context, userID string, id int64) error {
	if strings.TrimSpace(userID) == "" || id <= 0 {
		return fmt.Errorf("user_id cannot be empty and id must be positive")
	}
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM saved_queries WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete query: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("query not found")
	}
	return nil
}

// Categories returns all distinct categories for a user.
func (s *QueryStore) Categories(ctx context.Context, userID string) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user_id cannot be empty")
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT category FROM saved_queries WHERE user_id = ? ORDER BY category ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	defer rows.Close()
	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}
