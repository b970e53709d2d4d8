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
	"log"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/finsighthq/finsight/config"
	"github.com/finsighthq/finsight/database"
	"github.com/finsighthq/finsight/internal/apierror"
	"github.com/finsighthq/finsight/model"
)

func newTestDataSource() (database.IDataSource, sqlmock.Sqlmock, error) {
	config.MockConfig(&config.Configuration{})
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Printf("an error '%s' was not expected when opening a stub database Connection", err)
	}
	return &database.Datasource{Conn: db, Driver: "postgres"}, mock, nil
}

func newTestEngine(t *testing.T) (*Finsight, sqlmock.Sqlmock) {
	t.Helper()
	datasource, mock, err := newTestDataSource()
	if err != nil {
		t.Fatalf("Error creating test data source: %s", err)
	}
	engine, err := NewFinsight(datasource)
	if err != nil {
		t.Fatalf("Error creating Finsight instance: %s", err)
	}
	return engine, mock
}

var transactionRowColumns = []string{
	"id", "account_id", "txn_date", "description", "original_description",
	"debit_amount", "credit_amount", "balance_after", "category_id", "is_transfer",
	"linked_transaction_id", "is_recurring", "recurring_pattern_id", "created_at",
}

func accountRows(account *model.Account) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "name", "opening_balance", "current_balance", "created_at"}).
		AddRow(account.ID, account.OwnerID, account.Name, account.OpeningBalance, account.CurrentBalance, time.Now())
}

func transactionRows(transactions ...*model.Transaction) *sqlmock.Rows {
	rows := sqlmock.NewRows(transactionRowColumns)
	for _, txn := range transactions {
		var linkedID interface{}
		if txn.LinkedTransactionID != nil {
			linkedID = *txn.LinkedTransactionID
		}
		var patternID interface{}
		if txn.RecurringPatternID != nil {
			patternID = *txn.RecurringPatternID
		}
		rows.AddRow(txn.ID, txn.AccountID, txn.Date, txn.Description, txn.OriginalDescription,
			txn.DebitAmount, txn.CreditAmount, txn.BalanceAfter, txn.CategoryID, txn.IsTransfer,
			linkedID, txn.IsRecurring, patternID, time.Now())
	}
	return rows
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("bad test date %q: %s", value, err)
	}
	return parsed
}

func TestCalculateRunningBalancesPennyPrecision(t *testing.T) {
	engine, mock := newTestEngine(t)

	account := &model.Account{ID: 1, OwnerID: 7, Name: "Checking", OpeningBalance: 0}
	mock.ExpectQuery("FROM accounts").WithArgs(int64(1)).WillReturnRows(accountRows(account))
	mock.ExpectQuery("FROM transactions").WithArgs(int64(1)).WillReturnRows(transactionRows(
		&model.Transaction{ID: 10, AccountID: 1, Date: day(t, "2024-01-01"), Description: "DEPOSIT", CreditAmount: 0.1},
		&model.Transaction{ID: 11, AccountID: 1, Date: day(t, "2024-01-02"), Description: "DEPOSIT", CreditAmount: 0.2},
	))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions").WithArgs(int64(10), 0.1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE transactions").WithArgs(int64(11), 0.3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE accounts").WithArgs(int64(1), 0.3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := engine.CalculateRunningBalances(context.Background(), 1, nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, result.TransactionsUpdated)
	assert.Equal(t, 0.3, result.CurrentBalance)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCalculateRunningBalancesAccountNotFound(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery("FROM accounts").WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "opening_balance", "current_balance", "created_at"}))

	_, err := engine.CalculateRunningBalances(context.Background(), 99, nil)
	assert.Error(t, err)
	assert.True(t, apierror.HasCode(err, apierror.ErrNotFound))
}

func TestComputeRunningBalancesIdempotent(t *testing.T) {
	account := &model.Account{ID: 1, OpeningBalance: 100}
	transactions := []*model.Transaction{
		{ID: 1, Date: time.Now(), CreditAmount: 50.25},
		{ID: 2, Date: time.Now(), DebitAmount: 20.1},
		{ID: 3, Date: time.Now(), DebitAmount: 0.05},
	}

	first, firstBalance := computeRunningBalances(account, transactions, nil)
	second, secondBalance := computeRunningBalances(account, transactions, nil)

	assert.Equal(t, first, second)
	assert.Equal(t, firstBalance, secondBalance)
	assert.Equal(t, 130.1, firstBalance)
	assert.Equal(t, []model.BalanceUpdate{
		{TransactionID: 1, BalanceAfter: 150.25},
		{TransactionID: 2, BalanceAfter: 130.15},
		{TransactionID: 3, BalanceAfter: 130.1},
	}, first)
}

func TestComputeRunningBalancesFromStartDate(t *testing.T) {
	account := &model.Account{ID: 1, OpeningBalance: 0}
	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	transactions := []*model.Transaction{
		{ID: 1, Date: cutoff.AddDate(0, 0, -10), CreditAmount: 40, BalanceAfter: 500},
		{ID: 2, Date: cutoff.AddDate(0, 0, 1), DebitAmount: 100.5},
		{ID: 3, Date: cutoff.AddDate(0, 0, 2), CreditAmount: 0.5},
	}

	updates, balance := computeRunningBalances(account, transactions, &cutoff)

	// The pre-cutoff row keeps its stored balance and seeds the walk.
	assert.Equal(t, []model.BalanceUpdate{
		{TransactionID: 2, BalanceAfter: 399.5},
		{TransactionID: 3, BalanceAfter: 400},
	}, updates)
	assert.Equal(t, 400.0, balance)
}

func TestVerifyBalanceAccuracyDetectsDrift(t *testing.T) {
	engine, mock := newTestEngine(t)

	account := &model.Account{ID: 1, OwnerID: 7, Name: "Checking", OpeningBalance: 1000, CurrentBalance: 1399}
	mock.ExpectQuery("FROM accounts").WithArgs(int64(1)).WillReturnRows(accountRows(account))
	mock.ExpectQuery("FROM transactions").WithArgs(int64(1)).WillReturnRows(transactionRows(
		&model.Transaction{ID: 1, AccountID: 1, Date: day(t, "2024-02-01"), CreditAmount: 500, BalanceAfter: 1500},
		&model.Transaction{ID: 2, AccountID: 1, Date: day(t, "2024-02-02"), DebitAmount: 100, BalanceAfter: 1399},
	))

	result, err := engine.VerifyBalanceAccuracy(context.Background(), 1)
	assert.NoError(t, err)
	assert.False(t, result.Accurate)
	assert.Equal(t, 1400.0, result.ExpectedBalance)
	assert.Equal(t, 1, result.MismatchedRows)
}

func TestVerifyBalanceAccuracyCleanLedger(t *testing.T) {
	engine, mock := newTestEngine(t)

	account := &model.Account{ID: 1, OwnerID: 7, Name: "Checking", OpeningBalance: 1000, CurrentBalance: 1400}
	mock.ExpectQuery("FROM accounts").WithArgs(int64(1)).WillReturnRows(accountRows(account))
	mock.ExpectQuery("FROM transactions").WithArgs(int64(1)).WillReturnRows(transactionRows(
		&model.Transaction{ID: 1, AccountID: 1, Date: day(t, "2024-02-01"), CreditAmount: 500, BalanceAfter: 1500},
		&model.Transaction{ID: 2, AccountID: 1, Date: day(t, "2024-02-02"), DebitAmount: 100, BalanceAfter: 1400},
	))

	result, err := engine.VerifyBalanceAccuracy(context.Background(), 1)
	assert.NoError(t, err)
	assert.True(t, result.Accurate)
	assert.Equal(t, 0, result.MismatchedRows)
}

func TestUpdateOpeningBalance(t *testing.T) {
	engine, mock := newTestEngine(t)

	account := &model.Account{ID: 1, OwnerID: 7, Name: "Checking", OpeningBalance: 0, CurrentBalance: 50}
	mock.ExpectQuery("FROM accounts").WithArgs(int64(1)).WillReturnRows(accountRows(account))
	mock.ExpectQuery("FROM transactions").WithArgs(int64(1)).WillReturnRows(transactionRows(
		&model.Transaction{ID: 1, AccountID: 1, Date: day(t, "2024-01-05"), CreditAmount: 50, BalanceAfter: 50},
	))

	mock.ExpectBegin()
	mock.ExpectExec("SET opening_balance").WithArgs(int64(1), 200.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE transactions").WithArgs(int64(1), 250.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET current_balance").WithArgs(int64(1), 250.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := engine.UpdateOpeningBalance(context.Background(), 1, 200.004)
	assert.NoError(t, err)
	assert.Equal(t, 1, result.TransactionsUpdated)
	assert.Equal(t, 250.0, result.CurrentBalance)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestGetAccountSummary(t *testing.T) {
	engine, mock := newTestEngine(t)

	account := &model.Account{ID: 1, OwnerID: 7, Name: "Checking", OpeningBalance: 1000, CurrentBalance: 1400}
	mock.ExpectQuery("FROM accounts").WithArgs(int64(1)).WillReturnRows(accountRows(account))
	mock.ExpectQuery("FROM transactions").WithArgs(int64(1)).WillReturnRows(transactionRows(
		&model.Transaction{ID: 1, AccountID: 1, Date: day(t, "2024-02-01"), Description: "SALARY", CreditAmount: 500, BalanceAfter: 1500},
		&model.Transaction{ID: 2, AccountID: 1, Date: day(t, "2024-02-03"), Description: "GROCERIES", DebitAmount: 100, BalanceAfter: 1400},
		&model.Transaction{ID: 3, AccountID: 1, Date: day(t, "2024-02-04"), Description: "TO SAVINGS", DebitAmount: 250, BalanceAfter: 1150, IsTransfer: true},
	))

	summary, err := engine.GetAccountSummary(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 500.0, summary.Income)
	assert.Equal(t, 100.0, summary.Expenses)
	assert.Equal(t, 400.0, summary.Net)
	assert.Equal(t, 1400.0, summary.Balance)
}

func TestGetMonthlyAccountSummary(t *testing.T) {
	engine, mock := newTestEngine(t)

	account := &model.Account{ID: 1, OwnerID: 7, Name: "Checking", OpeningBalance: 0, CurrentBalance: 360}
	mock.ExpectQuery("FROM accounts").WithArgs(int64(1)).WillReturnRows(accountRows(account))
	mock.ExpectQuery("FROM transactions").WithArgs(int64(1)).WillReturnRows(transactionRows(
		&model.Transaction{ID: 1, AccountID: 1, Date: day(t, "2024-01-15"), CreditAmount: 300, BalanceAfter: 300},
		&model.Transaction{ID: 2, AccountID: 1, Date: day(t, "2024-02-10"), CreditAmount: 100, BalanceAfter: 400},
		&model.Transaction{ID: 3, AccountID: 1, Date: day(t, "2024-02-20"), DebitAmount: 40, BalanceAfter: 360},
	))

	summary, err := engine.GetMonthlyAccountSummary(context.Background(), 1, "2024-02")
	assert.NoError(t, err)
	assert.Equal(t, 100.0, summary.Income)
	assert.Equal(t, 40.0, summary.Expenses)
	assert.Equal(t, 60.0, summary.Net)
}

func TestGetMonthlyAccountSummaryRejectsBadMonth(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.GetMonthlyAccountSummary(context.Background(), 1, "Feb-2024")
	assert.Error(t, err)
	assert.True(t, apierror.HasCode(err, apierror.ErrInvalidInput))
}

func TestDeleteTransactionRecalculates(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery("FROM transactions").WithArgs(int64(5), int64(7)).WillReturnRows(transactionRows(
		&model.Transaction{ID: 5, AccountID: 1, Date: day(t, "2024-02-02"), DebitAmount: 25, BalanceAfter: 75},
	))
	mock.ExpectExec("DELETE FROM transactions").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))

	account := &model.Account{ID: 1, OwnerID: 7, Name: "Checking", OpeningBalance: 0, CurrentBalance: 75}
	mock.ExpectQuery("FROM accounts").WithArgs(int64(1)).WillReturnRows(accountRows(account))
	mock.ExpectQuery("FROM transactions").WithArgs(int64(1)).WillReturnRows(transactionRows(
		&model.Transaction{ID: 4, AccountID: 1, Date: day(t, "2024-02-01"), CreditAmount: 100, BalanceAfter: 100},
	))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions").WithArgs(int64(4), 100.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE accounts").WithArgs(int64(1), 100.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := engine.DeleteTransaction(context.Background(), 5, 7)
	assert.NoError(t, err)
	assert.Equal(t, 100.0, result.CurrentBalance)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
