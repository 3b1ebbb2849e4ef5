package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sievefin/tradesift/internal/model"
	"github.com/sievefin/tradesift/internal/service"
)

// SaveIdentification persists one email identification. Identifications key
// on content hash; re-saving the same email is a no-op.
func (s *SQLiteStorage) SaveIdentification(ctx context.Context, id *model.Identification) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateIdentification(id); err != nil {
		return err
	}

	orderIDs, err := json.Marshal(id.OrderIDs)
	if err != nil {
		return fmt.Errorf("failed to encode order ids: %w", err)
	}
	confirmations, err := json.Marshal(id.ConfirmationNumbers)
	if err != nil {
		return fmt.Errorf("failed to encode confirmation numbers: %w", err)
	}

	var transactionID any
	if id.TransactionID != "" {
		transactionID = id.TransactionID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO identifications (
			content_hash, short_hash, message_id, fingerprint_hash,
			order_ids, confirmation_numbers, source_sender, source_subject,
			source_date, extraction_method, scope, transaction_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id.ContentHash,
		id.ShortHash,
		id.MessageID,
		id.FingerprintHash,
		string(orderIDs),
		string(confirmations),
		id.SourceSender,
		id.SourceSubject,
		id.SourceDate,
		id.ExtractionMethod,
		id.Scope,
		transactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to save identification: %w", err)
	}
	return nil
}

// GetIdentificationByContentHash fetches one identification.
func (s *SQLiteStorage) GetIdentificationByContentHash(ctx context.Context, contentHash string) (*model.Identification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(contentHash, "contentHash"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT content_hash, short_hash, message_id, fingerprint_hash,
		       order_ids, confirmation_numbers, source_sender, source_subject,
		       source_date, extraction_method, scope, transaction_id
		FROM identifications WHERE content_hash = ?
	`, contentHash)

	id, err := scanIdentification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: identification %s", ErrNotFound, contentHash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identification: %w", err)
	}
	return id, nil
}

// GetIdentificationCount returns the number of identifications in a scope.
func (s *SQLiteStorage) GetIdentificationCount(ctx context.Context, scope string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM identifications WHERE scope = ?`, scope).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count identifications: %w", err)
	}
	return count, nil
}

// FindPriorIdentifications returns the corpus of prior email identifications
// for a scope, newest first, bounded by the scope's window and row cap.
func (s *SQLiteStorage) FindPriorIdentifications(ctx context.Context, scope service.CorpusScope) ([]model.Identification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if scope.Scope == "" {
		return nil, fmt.Errorf("%w: missing scope", ErrInvalidScope)
	}
	limit := scope.Limit
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content_hash, short_hash, message_id, fingerprint_hash,
		       order_ids, confirmation_numbers, source_sender, source_subject,
		       source_date, extraction_method, scope, transaction_id
		FROM identifications
		WHERE scope = ? AND source_date >= ?
		ORDER BY source_date DESC
		LIMIT ?
	`, scope.Scope, scope.Since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query prior identifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []model.Identification
	for rows.Next() {
		id, scanErr := scanIdentification(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan identification: %w", scanErr)
		}
		ids = append(ids, *id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prior identifications: %w", err)
	}
	return ids, nil
}

func scanIdentification(row rowScanner) (*model.Identification, error) {
	var id model.Identification
	var messageID, orderIDs, confirmations, subject, method, transactionID sql.NullString
	err := row.Scan(
		&id.ContentHash,
		&id.ShortHash,
		&messageID,
		&id.FingerprintHash,
		&orderIDs,
		&confirmations,
		&id.SourceSender,
		&subject,
		&id.SourceDate,
		&method,
		&id.Scope,
		&transactionID,
	)
	if err != nil {
		return nil, err
	}

	id.MessageID = messageID.String
	id.SourceSubject = subject.String
	id.ExtractionMethod = method.String
	id.TransactionID = transactionID.String

	if orderIDs.String != "" {
		if err := json.Unmarshal([]byte(orderIDs.String), &id.OrderIDs); err != nil {
			return nil, fmt.Errorf("failed to decode order ids: %w", err)
		}
	}
	if confirmations.String != "" {
		if err := json.Unmarshal([]byte(confirmations.String), &id.ConfirmationNumbers); err != nil {
			return nil, fmt.Errorf("failed to decode confirmation numbers: %w", err)
		}
	}
	return &id, nil
}
