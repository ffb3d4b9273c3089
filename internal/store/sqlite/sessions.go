package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
)

// SaveSession stores or replaces a session
func (s *Storage) SaveSession(ctx context.Context, session *models.SyncSession) error {
	errorsJSON, err := json.Marshal(session.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal session errors: %w", err)
	}
	warningsJSON, err := json.Marshal(session.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal session warnings: %w", err)
	}

	query := `
		INSERT INTO sessions (
			id, node_id, state, resumed_from, start_time, end_time,
			bytes_transferred, records_transferred, errors, warnings
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			end_time = excluded.end_time,
			bytes_transferred = excluded.bytes_transferred,
			records_transferred = excluded.records_transferred,
			errors = excluded.errors,
			warnings = excluded.warnings
	`

	_, err = s.db.ExecContext(ctx, query,
		session.ID,
		session.NodeID,
		string(session.State),
		session.ResumedFrom,
		toMillis(session.StartTime),
		toMillis(session.EndTime),
		session.BytesTransferred,
		session.RecordsTransferred,
		string(errorsJSON),
		string(warningsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

const sessionColumns = `
	id, node_id, state, resumed_from, start_time, end_time,
	bytes_transferred, records_transferred, errors, warnings
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.SyncSession, error) {
	session := &models.SyncSession{}
	var state, errorsJSON, warningsJSON string
	var startTime, endTime int64

	err := row.Scan(
		&session.ID,
		&session.NodeID,
		&state,
		&session.ResumedFrom,
		&startTime,
		&endTime,
		&session.BytesTransferred,
		&session.RecordsTransferred,
		&errorsJSON,
		&warningsJSON,
	)
	if err != nil {
		return nil, err
	}

	session.State = models.SessionState(state)
	session.StartTime = fromMillis(startTime)
	session.EndTime = fromMillis(endTime)

	if err := json.Unmarshal([]byte(errorsJSON), &session.Errors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session errors: %w", err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &session.Warnings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session warnings: %w", err)
	}

	return session, nil
}

// GetSession retrieves a session by ID
func (s *Storage) GetSession(ctx context.Context, id string) (*models.SyncSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// ListSessions returns the most recent sessions first; limit <= 0 means no limit
func (s *Storage) ListSessions(ctx context.Context, limit int) ([]*models.SyncSession, error) {
	if limit <= 0 {
		limit = -1 // в SQLite LIMIT -1 означает без ограничения
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY start_time DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]*models.SyncSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}
