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
	"embed"

	"github.com/finsighthq/finsight/config"
	"github.com/finsighthq/finsight/database"
	"github.com/finsighthq/finsight/internal/apierror"
	"github.com/finsighthq/finsight/model"
)

// Finsight is the transaction intelligence engine. Every operation is a
// synchronous read/modify/write sequence against the shared store; nothing
// here schedules background work.
type Finsight struct {
	datasource database.IDataSource
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewFinsight initializes the engine with the provided database datasource.
// Configuration must have been loaded (or mocked) beforehand.
func NewFinsight(db database.IDataSource) (*Finsight, error) {
	_, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return &Finsight{datasource: db}, nil
}

// GetCategories lists every category in the store.
func (l *Finsight) GetCategories(ctx context.Context) ([]model.Category, error) {
	return l.datasource.GetAllCategories(ctx)
}

// GetTransaction resolves one of the owner's transactions.
func (l *Finsight) GetTransaction(ctx context.Context, txnID, ownerID int64) (*model.Transaction, error) {
	return l.datasource.GetTransactionForOwner(ctx, txnID, ownerID)
}

// categoryIDByName resolves a named category against the store. A missing
// category falls back to the configured default id instead of failing the
// operation; any other store error is surfaced.
func (l *Finsight) categoryIDByName(ctx context.Context, name string, fallbackID int64) (int64, error) {
	category, err := l.datasource.GetCategoryByName(ctx, name)
	if err != nil {
		if apierror.IsNotFound(err) {
			return fallbackID, nil
		}
		return 0, err
	}
	return category.ID, nil
}

func (l *Finsight) transferCategoryID(ctx context.Context, cnf *config.Configuration) (int64, error) {
	return l.categoryIDByName(ctx, model.CategoryTransfer, cnf.Categories.TransferFallbackID)
}

func (l *Finsight) otherCategoryID(ctx context.Context, cnf *config.Configuration) (int64, error) {
	return l.categoryIDByName(ctx, model.CategoryOther, cnf.Categories.OtherFallbackID)
}

func (l *Finsight) entertainmentCategoryID(ctx context.Context, cnf *config.Configuration) (int64, error) {
	return l.categoryIDByName(ctx, model.CategoryEntertainment, cnf.Categories.EntertainmentFallbackID)
}
