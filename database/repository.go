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

package database

import (
	"context"
	"time"

	"github.com/finsighthq/finsight/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	account      // Account lookups and atomic balance writes
	transaction  // Transaction reads, transfer linking, recurring marks
	category     // Category lookups by name and id
	pattern      // Recurring-pattern catalog upserts
	subscription // Subscription catalog CRUD
	anomaly      // Anomaly persistence and lifecycle
}

// account defines methods for handling accounts.
type account interface {
	GetAccountByID(ctx context.Context, id int64) (*model.Account, error)
	GetAccountsByOwner(ctx context.Context, ownerID int64) ([]model.Account, error)
	ApplyRunningBalances(ctx context.Context, accountID int64, updates []model.BalanceUpdate, currentBalance float64) error
	UpdateOpeningBalance(ctx context.Context, accountID int64, openingBalance float64, updates []model.BalanceUpdate, currentBalance float64) error
}

// transaction defines methods for handling transactions.
type transaction interface {
	GetTransactionByID(ctx context.Context, id int64) (*model.Transaction, error)
	GetTransactionForOwner(ctx context.Context, id, ownerID int64) (*model.Transaction, error)
	GetTransactionsByAccount(ctx context.Context, accountID int64) ([]*model.Transaction, error)
	GetTransactionsByOwner(ctx context.Context, ownerID int64) ([]*model.Transaction, error)
	GetTransactionsByIDs(ctx context.Context, ids []int64) ([]*model.Transaction, error)
	LinkTransferPair(ctx context.Context, txn1ID, txn2ID, categoryID int64) error
	UnlinkTransferPair(ctx context.Context, txn1ID, txn2ID, categoryID int64) error
	MarkTransactionsRecurring(ctx context.Context, ids []int64, patternID string, lastSeen time.Time) error
	DeleteTransaction(ctx context.Context, id int64) error
}

// category defines methods for handling categories.
type category interface {
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	GetAllCategories(ctx context.Context) ([]model.Category, error)
}

// pattern defines methods for handling the recurring-pattern catalog.
type pattern interface {
	GetPatternByID(ctx context.Context, patternID string) (*model.RecurringPattern, error)
	GetPatternsByOwner(ctx context.Context, ownerID int64) ([]*model.RecurringPattern, error)
	UpsertRecurringPattern(ctx context.Context, pattern *model.RecurringPattern) (*model.RecurringPattern, error)
}

// subscription defines methods for handling the subscription catalog.
type subscription interface {
	CreateSubscription(ctx context.Context, subscription *model.Subscription) (*model.Subscription, error)
	UpdateSubscription(ctx context.Context, subscription *model.Subscription) error
	DeactivateSubscription(ctx context.Context, subscriptionID string) error
	GetSubscriptionByID(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	GetSubscriptionsByOwner(ctx context.Context, ownerID int64) ([]*model.Subscription, error)
}

// anomaly defines methods for handling anomalies.
type anomaly interface {
	InsertAnomalyIfAbsent(ctx context.Context, anomaly *model.Anomaly) (bool, error)
	UpdateAnomalyDismissed(ctx context.Context, anomalyID string) error
	UpdateAnomalyFraud(ctx context.Context, anomalyID string) error
	GetAllAnomalies(ctx context.Context) ([]*model.Anomaly, error)
	GetAnomalyStats(ctx context.Context) (*model.AnomalyStats, error)
}
