package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/finsighthq/finsight/internal/apierror"
	"github.com/finsighthq/finsight/model"
)

const transactionColumns = `t.id, t.account_id, t.txn_date, t.description, t.original_description,
	t.debit_amount, t.credit_amount, t.balance_after, t.category_id, t.is_transfer,
	t.linked_transaction_id, t.is_recurring, t.recurring_pattern_id, t.created_at`

func scanTransaction(scanner interface{ Scan(...interface{}) error }) (*model.Transaction, error) {
	txn := &model.Transaction{}
	var linkedID sql.NullInt64
	var patternID sql.NullString
	err := scanner.Scan(
		&txn.ID,
		&txn.AccountID,
		&txn.Date,
		&txn.Description,
		&txn.OriginalDescription,
		&txn.DebitAmount,
		&txn.CreditAmount,
		&txn.BalanceAfter,
		&txn.CategoryID,
		&txn.IsTransfer,
		&linkedID,
		&txn.IsRecurring,
		&patternID,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if linkedID.Valid {
		txn.LinkedTransactionID = &linkedID.Int64
	}
	if patternID.Valid {
		txn.RecurringPatternID = &patternID.String
	}
	return txn, nil
}

func (d *Datasource) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]*model.Transaction, error) {
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transactions", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction data", err)
		}
		transactions = append(transactions, txn)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over transactions", err)
	}

	return transactions, nil
}

func (d *Datasource) GetTransactionByID(ctx context.Context, id int64) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		WHERE t.id = $1
	`, transactionColumns), id)

	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%d' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}
	return txn, nil
}

// GetTransactionForOwner resolves a transaction only when it belongs to one
// of the owner's accounts. A foreign transaction is indistinguishable from
// a missing one.
func (d *Datasource) GetTransactionForOwner(ctx context.Context, id, ownerID int64) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.id = $1 AND a.owner_id = $2
	`, transactionColumns), id, ownerID)

	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%d' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}
	return txn, nil
}

// GetTransactionsByAccount returns the account's ledger in (date, id)
// order, the canonical order for running-balance computation.
func (d *Datasource) GetTransactionsByAccount(ctx context.Context, accountID int64) ([]*model.Transaction, error) {
	return d.queryTransactions(ctx, fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		WHERE t.account_id = $1
		ORDER BY t.txn_date, t.id
	`, transactionColumns), accountID)
}

func (d *Datasource) GetTransactionsByOwner(ctx context.Context, ownerID int64) ([]*model.Transaction, error) {
	return d.queryTransactions(ctx, fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.owner_id = $1
		ORDER BY t.txn_date, t.id
	`, transactionColumns), ownerID)
}

func (d *Datasource) GetTransactionsByIDs(ctx context.Context, ids []int64) ([]*model.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	return d.queryTransactions(ctx, fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		WHERE t.id IN (%s)
		ORDER BY t.txn_date, t.id
	`, transactionColumns, strings.Join(placeholders, ", ")), args...)
}

// LinkTransferPair flags both transactions as a transfer, points them at
// each other and moves them to the transfer category. All-or-nothing: if
// either row is missing nothing is modified.
func (d *Datasource) LinkTransferPair(ctx context.Context, txn1ID, txn2ID, categoryID int64) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if err := setTransferState(ctx, tx, txn1ID, &txn2ID, true, categoryID); err != nil {
		return err
	}
	if err := setTransferState(ctx, tx, txn2ID, &txn1ID, true, categoryID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// UnlinkTransferPair clears both sides' transfer flag and link pointer and
// resets their category, as one unit.
func (d *Datasource) UnlinkTransferPair(ctx context.Context, txn1ID, txn2ID, categoryID int64) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if err := setTransferState(ctx, tx, txn1ID, nil, false, categoryID); err != nil {
		return err
	}
	if err := setTransferState(ctx, tx, txn2ID, nil, false, categoryID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

func setTransferState(ctx context.Context, tx *sql.Tx, txnID int64, linkedID *int64, isTransfer bool, categoryID int64) error {
	var linked sql.NullInt64
	if linkedID != nil {
		linked = sql.NullInt64{Int64: *linkedID, Valid: true}
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET is_transfer = $2, linked_transaction_id = $3, category_id = $4
		WHERE id = $1
	`, txnID, isTransfer, linked, categoryID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update transfer state", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%d' not found", txnID), nil)
	}
	return nil
}

// MarkTransactionsRecurring links transactions to a pattern and refreshes
// the pattern's last-seen date in one unit. Every id must resolve or the
// whole call fails.
func (d *Datasource) MarkTransactionsRecurring(ctx context.Context, ids []int64, patternID string, lastSeen time.Time) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	placeholders := make([]string, len(ids))
	args := []interface{}{patternID}
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	result, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE transactions
		SET is_recurring = TRUE, recurring_pattern_id = $1
		WHERE id IN (%s)
	`, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark transactions recurring", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected != int64(len(ids)) {
		return apierror.NewAPIError(apierror.ErrNotFound, "One or more transactions not found", nil)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE recurring_patterns
		SET last_seen = $2
		WHERE pattern_id = $1
	`, patternID, lastSeen)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to refresh pattern last seen", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

func (d *Datasource) DeleteTransaction(ctx context.Context, id int64) error {
	result, err := d.Conn.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE id = $1
	`, id)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete transaction", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%d' not found", id), nil)
	}
	return nil
}
