package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finsighthq/finsight/internal/apierror"
	"github.com/finsighthq/finsight/model"
)

func (d *Datasource) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, owner_id, name, opening_balance, current_balance, created_at
		FROM accounts
		WHERE id = $1
	`, id)

	account := &model.Account{}
	err := row.Scan(&account.ID, &account.OwnerID, &account.Name, &account.OpeningBalance, &account.CurrentBalance, &account.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%d' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve account", err)
	}

	return account, nil
}

func (d *Datasource) GetAccountsByOwner(ctx context.Context, ownerID int64) ([]model.Account, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, owner_id, name, opening_balance, current_balance, created_at
		FROM accounts
		WHERE owner_id = $1
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve accounts", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account := model.Account{}
		err = rows.Scan(&account.ID, &account.OwnerID, &account.Name, &account.OpeningBalance, &account.CurrentBalance, &account.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan account data", err)
		}
		accounts = append(accounts, account)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over accounts", err)
	}

	return accounts, nil
}

// ApplyRunningBalances writes a full set of recomputed running balances and
// the account's derived current balance as one unit. Partial application is
// never observable.
func (d *Datasource) ApplyRunningBalances(ctx context.Context, accountID int64, updates []model.BalanceUpdate, currentBalance float64) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if err := applyBalanceUpdates(ctx, tx, accountID, updates, currentBalance); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// UpdateOpeningBalance persists a new opening balance together with the
// recalculated running balances that follow from it, all-or-nothing.
func (d *Datasource) UpdateOpeningBalance(ctx context.Context, accountID int64, openingBalance float64, updates []model.BalanceUpdate, currentBalance float64) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET opening_balance = $2
		WHERE id = $1
	`, accountID, openingBalance)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update opening balance", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%d' not found", accountID), nil)
	}

	if err := applyBalanceUpdates(ctx, tx, accountID, updates, currentBalance); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

func applyBalanceUpdates(ctx context.Context, tx *sql.Tx, accountID int64, updates []model.BalanceUpdate, currentBalance float64) error {
	for _, update := range updates {
		_, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET balance_after = $2
			WHERE id = $1
		`, update.TransactionID, update.BalanceAfter)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update running balance", err)
		}
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET current_balance = $2
		WHERE id = $1
	`, accountID, currentBalance)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update current balance", err)
	}
	return nil
}
