package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sievefin/tradesift/internal/model"
	"github.com/sievefin/tradesift/internal/service"
)

// SaveTransaction persists one transaction. A transaction whose hash is
// already recorded returns ErrDuplicateTransaction.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, hash, date, symbol, kind, quantity, price,
			total_amount, account_type, currency, scope
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ID,
		txn.Hash,
		txn.Date,
		txn.Symbol,
		string(txn.Kind),
		txn.Quantity,
		txn.Price,
		txn.TotalAmount,
		txn.AccountType,
		txn.Currency,
		txn.Scope,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to inspect insert result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: hash %s", ErrDuplicateTransaction, txn.Hash)
	}
	return nil
}

// GetTransactionByID fetches a transaction by its ID.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, hash, date, symbol, kind, quantity, price,
		       total_amount, account_type, currency, scope
		FROM transactions WHERE id = ?
	`, id)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactionCount returns the number of transactions in a scope.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context, scope string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE scope = ?`, scope).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// FindPriorTransactions returns the corpus of persisted transactions for a
// scope, newest first, bounded by the scope's window and row cap.
func (s *SQLiteStorage) FindPriorTransactions(ctx context.Context, scope service.CorpusScope) ([]model.Transaction, error) {
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
		SELECT id, hash, date, symbol, kind, quantity, price,
		       total_amount, account_type, currency, scope
		FROM transactions
		WHERE scope = ? AND date >= ?
		ORDER BY date DESC
		LIMIT ?
	`, scope.Scope, scope.Since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query prior transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", scanErr)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prior transactions: %w", err)
	}
	return txns, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var kind string
	err := row.Scan(
		&txn.ID,
		&txn.Hash,
		&txn.Date,
		&txn.Symbol,
		&kind,
		&txn.Quantity,
		&txn.Price,
		&txn.TotalAmount,
		&txn.AccountType,
		&txn.Currency,
		&txn.Scope,
	)
	if err != nil {
		return nil, err
	}
	txn.Kind = model.TransactionKind(kind)
	return &txn, nil
}
