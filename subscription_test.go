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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"

	"github.com/finsighthq/finsight/config"
	"github.com/finsighthq/finsight/internal/apierror"
	"github.com/finsighthq/finsight/model"
)

func testConfig(t *testing.T) *config.Configuration {
	t.Helper()
	config.MockConfig(&config.Configuration{})
	cnf, err := config.Fetch()
	if err != nil {
		t.Fatalf("Error fetching config: %s", err)
	}
	return cnf
}

func TestDetectSubscriptionsMonthlyExpense(t *testing.T) {
	engine, mock := newTestEngine(t)

	var rows []*model.Transaction
	start := day(t, "2024-01-05")
	for i := 0; i < 5; i++ {
		rows = append(rows, &model.Transaction{
			ID: int64(i + 1), AccountID: 1, Date: start.AddDate(0, i, 0),
			Description: "CARD PAYMENT TO NETFLIX.COM", DebitAmount: 9.99, CategoryID: 12,
		})
	}
	mock.ExpectQuery("FROM transactions").WithArgs(int64(7)).WillReturnRows(transactionRows(rows...))

	candidates, err := engine.DetectSubscriptions(context.Background(), 7)
	assert.NoError(t, err)
	assert.Len(t, candidates, 1)

	candidate := candidates[0]
	assert.Equal(t, "NETFLIX", candidate.MerchantPattern)
	assert.Equal(t, model.FrequencyMonthly, candidate.Frequency)
	assert.Equal(t, 9.99, candidate.ExpectedAmount)
	assert.Equal(t, 5, candidate.BillingDay)
	assert.Equal(t, model.DirectionExpense, candidate.Direction)
	assert.Equal(t, 5, candidate.Occurrences)
	assert.GreaterOrEqual(t, candidate.Confidence, 0.8)
	assert.LessOrEqual(t, candidate.Confidence, 1.0)
	assert.Equal(t, day(t, "2024-05-05").AddDate(0, 0, 30), candidate.NextChargeDate)
}

func TestDetectSubscriptionCandidatesIncomePass(t *testing.T) {
	cnf := testConfig(t)

	var transactions []*model.Transaction
	start := day(t, "2024-01-12")
	for i := 0; i < 6; i++ {
		transactions = append(transactions, &model.Transaction{
			ID: int64(i + 1), AccountID: 1, Date: start.AddDate(0, 0, i*14),
			Description: "ACME CORP PAYROLL", CreditAmount: 2150.75,
		})
	}

	expense := detectSubscriptionCandidates(transactions, model.DirectionExpense, cnf)
	income := detectSubscriptionCandidates(transactions, model.DirectionIncome, cnf)

	assert.Empty(t, expense)
	assert.Len(t, income, 1)
	assert.Equal(t, model.FrequencyFortnightly, income[0].Frequency)
	assert.Equal(t, model.DirectionIncome, income[0].Direction)
	assert.Equal(t, 2150.75, income[0].ExpectedAmount)
}

func TestDetectSubscriptionCandidatesRejectsVolatileAmounts(t *testing.T) {
	cnf := testConfig(t)

	var transactions []*model.Transaction
	start := day(t, "2024-01-05")
	for i, amount := range []float64{10, 50, 100, 20} {
		transactions = append(transactions, &model.Transaction{
			ID: int64(i + 1), AccountID: 1, Date: start.AddDate(0, i, 0),
			Description: "CORNER STORE", DebitAmount: amount,
		})
	}

	assert.Empty(t, detectSubscriptionCandidates(transactions, model.DirectionExpense, cnf))
}

func TestDetectSubscriptionsRankedByConfidence(t *testing.T) {
	cnf := testConfig(t)

	var transactions []*model.Transaction
	start := day(t, "2024-01-05")
	// Steady service: identical amounts, strict monthly cadence.
	for i := 0; i < 6; i++ {
		transactions = append(transactions, &model.Transaction{
			ID: int64(i + 1), AccountID: 1, Date: start.AddDate(0, i, 0),
			Description: "SPOTIFY", DebitAmount: 11.99,
		})
	}
	// Wobblier service: amounts drift, still within tolerance.
	for i, amount := range []float64{42, 44.5, 41, 43.75} {
		transactions = append(transactions, &model.Transaction{
			ID: int64(i + 20), AccountID: 1, Date: start.AddDate(0, i, 2),
			Description: "POWER COMPANY", DebitAmount: amount,
		})
	}

	candidates := detectSubscriptionCandidates(transactions, model.DirectionExpense, cnf)
	assert.Len(t, candidates, 2)

	for _, candidate := range candidates {
		assert.GreaterOrEqual(t, candidate.Confidence, 0.0)
		assert.LessOrEqual(t, candidate.Confidence, 1.0)
	}
}

func TestMatchSubscriptionFrequencyToleranceByDirection(t *testing.T) {
	cnf := testConfig(t)

	// 21 days sits between every expense window but inside the income ones.
	_, ok := matchSubscriptionFrequency(21, model.DirectionExpense, cnf)
	assert.False(t, ok)

	frequency, ok := matchSubscriptionFrequency(21, model.DirectionIncome, cnf)
	assert.True(t, ok)
	assert.Equal(t, model.FrequencyFortnightly, frequency)
}

func TestSubscriptionConfidenceClamped(t *testing.T) {
	assert.Equal(t, 1.0, subscriptionConfidence(0, 0, 50))
	assert.GreaterOrEqual(t, subscriptionConfidence(10, 30, 2), 0.0)
	assert.Equal(t, 0.5, subscriptionConfidence(10, 30, 2))
}

func TestSubscriptionConfidenceIntervalTermIsABonus(t *testing.T) {
	// Intervals [10,50] average to 30 and pass the monthly gate with an
	// interval CV above 30. The interval term bottoms out at zero instead
	// of eating into the amount score.
	assert.Equal(t, 0.75, subscriptionConfidence(0, 60, 2))
	assert.Equal(t, subscriptionConfidence(0, 30, 2), subscriptionConfidence(0, 90, 2))
}

func TestCreateSubscription(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectExec("INSERT INTO subscriptions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	subscription, err := engine.CreateSubscription(context.Background(), &model.Subscription{
		OwnerID:         7,
		MerchantPattern: "NETFLIX",
		DisplayName:     gofakeit.Company(),
		ExpectedAmount:  9.994,
		Frequency:       model.FrequencyMonthly,
		BillingDay:      5,
		Direction:       model.DirectionExpense,
	})
	assert.NoError(t, err)
	assert.Contains(t, subscription.SubscriptionID, "sub_")
	assert.Equal(t, 9.99, subscription.ExpectedAmount)
	assert.True(t, subscription.Active)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCreateSubscriptionRejectsUnknownFrequency(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.CreateSubscription(context.Background(), &model.Subscription{
		OwnerID:         7,
		MerchantPattern: "NETFLIX",
		DisplayName:     "Netflix",
		ExpectedAmount:  9.99,
		Frequency:       "biweekly",
		Direction:       model.DirectionExpense,
	})
	assert.Error(t, err)
	assert.True(t, apierror.HasCode(err, apierror.ErrInvalidInput))
}

func TestCreateSubscriptionRejectsBadDirection(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.CreateSubscription(context.Background(), &model.Subscription{
		OwnerID:         7,
		MerchantPattern: "NETFLIX",
		DisplayName:     "Netflix",
		ExpectedAmount:  9.99,
		Frequency:       model.FrequencyMonthly,
		Direction:       "outgoing",
	})
	assert.Error(t, err)
	assert.True(t, apierror.HasCode(err, apierror.ErrInvalidInput))
}

func TestCreateSubscriptionUnknownCategory(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery("FROM categories").WithArgs(int64(44)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}))

	_, err := engine.CreateSubscription(context.Background(), &model.Subscription{
		OwnerID:         7,
		MerchantPattern: "NETFLIX",
		DisplayName:     "Netflix",
		ExpectedAmount:  9.99,
		Frequency:       model.FrequencyMonthly,
		Direction:       model.DirectionExpense,
		CategoryID:      44,
	})
	assert.Error(t, err)
	assert.True(t, apierror.HasCode(err, apierror.ErrNotFound))
}

func TestDeleteSubscriptionSoftDeletes(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectExec("SET active = FALSE").WithArgs("sub_123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := engine.DeleteSubscription(context.Background(), "sub_123")
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestDeleteSubscriptionNotFound(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectExec("SET active = FALSE").WithArgs("sub_missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := engine.DeleteSubscription(context.Background(), "sub_missing")
	assert.Error(t, err)
	assert.True(t, apierror.HasCode(err, apierror.ErrNotFound))
}
