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
	"math"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/finsighthq/finsight/config"
	"github.com/finsighthq/finsight/model"
)

// transferWindowDays is the maximum date gap between the two legs of an
// internal transfer.
const transferWindowDays = 3

// DetectTransfers finds unlinked debit/credit pairs across the owner's
// accounts that look like internal transfers. Detection never mutates
// state; candidates are linked separately.
//
// Tie-break for identical-amount clusters: transactions are scanned in
// (date, id) order, each debit takes the first eligible credit in that
// order, and a transaction id participates in at most one reported pair.
func (l *Finsight) DetectTransfers(ctx context.Context, ownerID int64) ([]model.TransferCandidate, error) {
	ctx, span := otel.Tracer("finsight.transfer").Start(ctx, "Detecting transfers")
	defer span.End()

	transactions, err := l.datasource.GetTransactionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return matchTransferCandidates(transactions), nil
}

func matchTransferCandidates(transactions []*model.Transaction) []model.TransferCandidate {
	used := make(map[int64]bool)
	var candidates []model.TransferCandidate

	for _, debit := range transactions {
		if used[debit.ID] || debit.IsTransfer || debit.DebitAmount <= 0 {
			continue
		}
		for _, credit := range transactions {
			if used[credit.ID] || credit.IsTransfer || credit.CreditAmount <= 0 {
				continue
			}
			if credit.ID == debit.ID || credit.AccountID == debit.AccountID {
				continue
			}
			if !amountsEqual(model.Round2(debit.DebitAmount), model.Round2(credit.CreditAmount)) {
				continue
			}
			days := daysBetween(debit.Date, credit.Date)
			if days > transferWindowDays {
				continue
			}
			used[debit.ID] = true
			used[credit.ID] = true
			candidates = append(candidates, model.TransferCandidate{
				DebitTransaction:  debit,
				CreditTransaction: credit,
				Amount:            model.Round2(debit.DebitAmount),
				DaysApart:         days,
			})
			break
		}
	}
	return candidates
}

// LinkTransferPair verifies both transactions belong to the owner, then
// atomically flags them as a transfer, points them at each other and moves
// both to the Transfer category. If either is missing no row is modified.
func (l *Finsight) LinkTransferPair(ctx context.Context, txn1ID, txn2ID, ownerID int64) error {
	ctx, span := otel.Tracer("finsight.transfer").Start(ctx, "Linking transfer pair")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return err
	}
	if _, err := l.datasource.GetTransactionForOwner(ctx, txn1ID, ownerID); err != nil {
		return err
	}
	if _, err := l.datasource.GetTransactionForOwner(ctx, txn2ID, ownerID); err != nil {
		return err
	}

	categoryID, err := l.transferCategoryID(ctx, cnf)
	if err != nil {
		return err
	}
	return l.datasource.LinkTransferPair(ctx, txn1ID, txn2ID, categoryID)
}

// UnlinkTransfer clears a transfer link from both sides and resets their
// category to the uncategorized fallback. Returns how many transactions
// were unlinked: 2, or 0 when the transaction was not transfer-linked.
func (l *Finsight) UnlinkTransfer(ctx context.Context, txnID, ownerID int64) (int, error) {
	ctx, span := otel.Tracer("finsight.transfer").Start(ctx, "Unlinking transfer")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return 0, err
	}
	txn, err := l.datasource.GetTransactionForOwner(ctx, txnID, ownerID)
	if err != nil {
		return 0, err
	}
	if !txn.IsTransfer || txn.LinkedTransactionID == nil {
		return 0, nil
	}

	categoryID, err := l.otherCategoryID(ctx, cnf)
	if err != nil {
		return 0, err
	}
	err = l.datasource.UnlinkTransferPair(ctx, txn.ID, *txn.LinkedTransactionID, categoryID)
	if err != nil {
		return 0, err
	}
	return 2, nil
}

// daysBetween counts calendar days between two rows. Rows carry timestamps,
// so comparing raw durations would let a 3.9-day gap pass a 3-day window.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Abs(ad.Sub(bd).Hours()) / 24)
}
