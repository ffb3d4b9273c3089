package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/peersync/internal/models"
)

// SaveAudit appends an audit entry
func (s *Storage) SaveAudit(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (
			id, record_id, version, reason, winner_hash, loser_hash,
			loser_node_id, sender_node_id, detail, loser_payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.RecordID,
		entry.Version,
		string(entry.Reason),
		entry.WinnerHash,
		entry.LoserHash,
		entry.LoserNodeID,
		entry.SenderNodeID,
		entry.Detail,
		entry.LoserPayload,
		toMillis(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// ListAudit returns audit entries for a record, oldest first.
// Empty recordID returns all entries.
func (s *Storage) ListAudit(ctx context.Context, recordID string) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, record_id, version, reason, winner_hash, loser_hash,
		       loser_node_id, sender_node_id, detail, loser_payload, created_at
		FROM audit_log
		WHERE (? = '' OR record_id = ?)
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, recordID, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*models.AuditEntry, 0)
	for rows.Next() {
		entry := &models.AuditEntry{}
		var reason string
		var createdAt int64

		err := rows.Scan(
			&entry.ID,
			&entry.RecordID,
			&entry.Version,
			&reason,
			&entry.WinnerHash,
			&entry.LoserHash,
			&entry.LoserNodeID,
			&entry.SenderNodeID,
			&entry.Detail,
			&entry.LoserPayload,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.Reason = models.AuditReason(reason)
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}

	return entries, nil
}

// PruneAudit removes entries created before the given time
func (s *Storage) PruneAudit(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(n), nil
}
