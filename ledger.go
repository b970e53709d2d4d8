/*
Copyright 2024 Finsight Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package finsight

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/finsighthq/finsight/internal/apierror"
	"github.com/finsighthq/finsight/model"
)

// monthLayout is the accepted format for month filters.
const monthLayout = "2006-01"

// CalculateRunningBalances recomputes every running balance for an account
// and refreshes its derived current balance. When startDate is given, rows
// before it keep their stored balance_after, and the last of them seeds the
// walk. The pass is idempotent: re-running over unchanged data rewrites the
// same values.
func (l *Finsight) CalculateRunningBalances(ctx context.Context, accountID int64, startDate *time.Time) (*model.RecalculationResult, error) {
	ctx, span := otel.Tracer("finsight.ledger").Start(ctx, "Recalculating running balances")
	defer span.End()

	account, err := l.datasource.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	transactions, err := l.datasource.GetTransactionsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	updates, currentBalance := computeRunningBalances(account, transactions, startDate)

	err = l.datasource.ApplyRunningBalances(ctx, accountID, updates, currentBalance)
	if err != nil {
		return nil, err
	}

	return &model.RecalculationResult{
		AccountID:           accountID,
		TransactionsUpdated: len(updates),
		CurrentBalance:      currentBalance,
	}, nil
}

// computeRunningBalances walks transactions already sorted in (date, id)
// order, rounding to 2 decimals after every step so repeated float
// additions never drift. Rows before startDate keep their stored value and
// become the running seed.
func computeRunningBalances(account *model.Account, transactions []*model.Transaction, startDate *time.Time) ([]model.BalanceUpdate, float64) {
	balance := model.Round2(account.OpeningBalance)
	var updates []model.BalanceUpdate
	for _, txn := range transactions {
		if startDate != nil && txn.Date.Before(*startDate) {
			balance = txn.BalanceAfter
			continue
		}
		balance = model.Round2(balance + txn.CreditAmount - txn.DebitAmount)
		updates = append(updates, model.BalanceUpdate{TransactionID: txn.ID, BalanceAfter: balance})
	}
	return updates, balance
}

// VerifyBalanceAccuracy independently recomputes the expected cumulative
// sequence and reports whether every stored balance_after and the account's
// current balance match. It never mutates.
func (l *Finsight) VerifyBalanceAccuracy(ctx context.Context, accountID int64) (*model.BalanceVerification, error) {
	ctx, span := otel.Tracer("finsight.ledger").Start(ctx, "Verifying balance accuracy")
	defer span.End()

	account, err := l.datasource.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	transactions, err := l.datasource.GetTransactionsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	expected := model.Round2(account.OpeningBalance)
	mismatches := 0
	for _, txn := range transactions {
		expected = model.Round2(expected + txn.CreditAmount - txn.DebitAmount)
		if !amountsEqual(txn.BalanceAfter, expected) {
			mismatches++
		}
	}

	return &model.BalanceVerification{
		AccountID:       accountID,
		Accurate:        mismatches == 0 && amountsEqual(account.CurrentBalance, expected),
		ExpectedBalance: expected,
		CurrentBalance:  account.CurrentBalance,
		MismatchedRows:  mismatches,
	}, nil
}

// UpdateOpeningBalance rounds and persists a new opening balance, then
// recalculates the whole ledger. Both writes land in one store transaction
// or not at all.
func (l *Finsight) UpdateOpeningBalance(ctx context.Context, accountID int64, amount float64) (*model.RecalculationResult, error) {
	ctx, span := otel.Tracer("finsight.ledger").Start(ctx, "Updating opening balance")
	defer span.End()

	account, err := l.datasource.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	transactions, err := l.datasource.GetTransactionsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	account.OpeningBalance = model.Round2(amount)
	updates, currentBalance := computeRunningBalances(account, transactions, nil)

	err = l.datasource.UpdateOpeningBalance(ctx, accountID, account.OpeningBalance, updates, currentBalance)
	if err != nil {
		return nil, err
	}

	return &model.RecalculationResult{
		AccountID:           accountID,
		TransactionsUpdated: len(updates),
		CurrentBalance:      currentBalance,
	}, nil
}

// GetAccounts lists the owner's accounts.
func (l *Finsight) GetAccounts(ctx context.Context, ownerID int64) ([]model.Account, error) {
	ctx, span := otel.Tracer("finsight.ledger").Start(ctx, "Listing accounts")
	defer span.End()

	return l.datasource.GetAccountsByOwner(ctx, ownerID)
}

// GetAccountSummary sums credits (income) and debits (expenses) over the
// account's whole history, excluding transfer-flagged rows.
func (l *Finsight) GetAccountSummary(ctx context.Context, accountID int64) (*model.AccountSummary, error) {
	return l.accountSummary(ctx, accountID, "")
}

// GetMonthlyAccountSummary restricts the summary to one month, given as
// "YYYY-MM".
func (l *Finsight) GetMonthlyAccountSummary(ctx context.Context, accountID int64, month string) (*model.AccountSummary, error) {
	if _, err := time.Parse(monthLayout, month); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("Invalid month format '%s', expected YYYY-MM", month), err)
	}
	return l.accountSummary(ctx, accountID, month)
}

func (l *Finsight) accountSummary(ctx context.Context, accountID int64, month string) (*model.AccountSummary, error) {
	ctx, span := otel.Tracer("finsight.ledger").Start(ctx, "Summarizing account")
	defer span.End()

	account, err := l.datasource.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	transactions, err := l.datasource.GetTransactionsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var income, expenses float64
	for _, txn := range transactions {
		if txn.IsTransfer {
			continue
		}
		if month != "" && txn.Date.Format(monthLayout) != month {
			continue
		}
		income = model.Round2(income + txn.CreditAmount)
		expenses = model.Round2(expenses + txn.DebitAmount)
	}

	return &model.AccountSummary{
		Income:   income,
		Expenses: expenses,
		Net:      model.Round2(income - expenses),
		Balance:  model.Round2(account.CurrentBalance),
	}, nil
}

// DeleteTransaction removes a transaction on explicit user action and
// recalculates the owning account's ledger so no stale balance survives.
func (l *Finsight) DeleteTransaction(ctx context.Context, txnID, ownerID int64) (*model.RecalculationResult, error) {
	ctx, span := otel.Tracer("finsight.ledger").Start(ctx, "Deleting transaction")
	defer span.End()

	txn, err := l.datasource.GetTransactionForOwner(ctx, txnID, ownerID)
	if err != nil {
		return nil, err
	}
	if err := l.datasource.DeleteTransaction(ctx, txn.ID); err != nil {
		return nil, err
	}
	return l.CalculateRunningBalances(ctx, txn.AccountID, nil)
}

// amountsEqual compares two already-rounded monetary values with a
// half-penny tolerance to absorb float representation noise.
func amountsEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
