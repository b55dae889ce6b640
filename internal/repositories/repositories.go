package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// rowQueryer is satisfied by both *sql.DB and *sql.Tx.
type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NextSequence bumps the single-row counter in {table}_sequence and returns the new value.
//
// Sequence numbers are not exposed through the API; they order rows for listings and debugging.
func NextSequence(ctx context.Context, q rowQueryer, table string) (int, error) {
	query := fmt.Sprintf(`UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value`, table)

	var sequence int
	if err := q.QueryRowContext(ctx, query).Scan(&sequence); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("sequence for %s is not initialized", table)
		}
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return sequence, nil
}
