package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mailsim/gmailsim/internal/search"
	"github.com/mailsim/gmailsim/internal/store"
)

// IndexStore maintains the full-text side table the query engine
// consults for keyword predicates. Rows are (user, resource, field)
// tuples; matching is case-insensitive substring via instr.
type IndexStore struct {
	db *sql.DB
}

// NewIndexStore creates an index store backed by the shared database.
func NewIndexStore(store *Store) *IndexStore {
	return &IndexStore{db: store.DB()}
}

// IndexMessage replaces the indexed rows for one resource. The resource
// ID is passed separately because drafts index their embedded message
// under the draft's own ID. Each text field gets its own row so
// field-scoped lookups stay a single WHERE.
func (s *IndexStore) IndexMessage(ctx context.Context, userID, resourceType, resourceID string, m *store.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM search_index WHERE user_id = ? AND resource_type = ? AND resource_id = ?",
		userID, resourceType, resourceID)
	if err != nil {
		return fmt.Errorf("failed to clear index rows: %w", err)
	}

	fields := map[string]string{
		"subject":   m.Subject,
		"body":      m.Body,
		"sender":    m.Sender,
		"recipient": m.Recipient,
	}
	for contentType, content := range fields {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO search_index (user_id, resource_type, resource_id, content_type, content) VALUES (?, ?, ?, ?, ?)",
			userID, resourceType, resourceID, contentType, content)
		if err != nil {
			return fmt.Errorf("failed to insert index row: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteResource drops all indexed rows for one resource.
func (s *IndexStore) DeleteResource(ctx context.Context, userID, resourceType, resourceID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM search_index WHERE user_id = ? AND resource_type = ? AND resource_id = ?",
		userID, resourceType, resourceID)
	if err != nil {
		return fmt.Errorf("failed to delete index rows: %w", err)
	}
	return nil
}

// DeleteUser drops every indexed row belonging to a user.
func (s *IndexStore) DeleteUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM search_index WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user index rows: %w", err)
	}
	return nil
}

// Search returns the distinct resource IDs whose indexed text contains
// the query text, case-insensitively. It implements search.Index.
func (s *IndexStore) Search(ctx context.Context, text string, f search.Filter) ([]string, error) {
	query := "SELECT DISTINCT resource_id FROM search_index WHERE user_id = ? AND resource_type = ? AND instr(lower(content), lower(?)) > 0"
	args := []any{f.UserID, f.Resource, text}
	if f.Content != "" {
		query += " AND content_type = ?"
		args = append(args, f.Content)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan resource id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}
