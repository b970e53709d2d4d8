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
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.opentelemetry.io/otel"

	"github.com/finsighthq/finsight/config"
	"github.com/finsighthq/finsight/internal/apierror"
	"github.com/finsighthq/finsight/model"
)

// RecurringDetectionOptions tunes a recurring-pattern detection pass. Zero
// values take the configured defaults.
type RecurringDetectionOptions struct {
	MinOccurrences    int       `json:"min_occurrences"`
	MaxAmountVariance float64   `json:"max_amount_variance"`
	LookbackMonths    int       `json:"lookback_months"`
	ReferenceDate     time.Time `json:"reference_date"`
}

func (o RecurringDetectionOptions) validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.MinOccurrences, validation.Min(2)),
		validation.Field(&o.MaxAmountVariance, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&o.LookbackMonths, validation.Min(1)),
	)
}

func (o *RecurringDetectionOptions) applyDefaults(cnf *config.Configuration) {
	if o.MinOccurrences == 0 {
		o.MinOccurrences = cnf.Detection.Recurring.MinOccurrences
	}
	if o.MaxAmountVariance == 0 {
		o.MaxAmountVariance = cnf.Detection.Recurring.MaxAmountVariance
	}
	if o.LookbackMonths == 0 {
		o.LookbackMonths = cnf.Detection.Recurring.LookbackMonths
	}
	if o.ReferenceDate.IsZero() {
		o.ReferenceDate = time.Now()
	}
}

// DetectRecurringPatterns groups the owner's non-transfer transactions by
// normalized description and upserts a catalog row for every group with a
// consistent amount and a classifiable interval. Repeated runs update rows
// in place and never create duplicates.
func (l *Finsight) DetectRecurringPatterns(ctx context.Context, ownerID int64, opts RecurringDetectionOptions) ([]*model.RecurringPattern, error) {
	ctx, span := otel.Tracer("finsight.recurring").Start(ctx, "Detecting recurring patterns")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	opts.applyDefaults(cnf)
	if err := opts.validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid detection options", err)
	}

	transactions, err := l.datasource.GetTransactionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	entertainmentID, err := l.entertainmentCategoryID(ctx, cnf)
	if err != nil {
		return nil, err
	}

	candidates := buildRecurringPatterns(transactions, opts, cnf.Detection.Recurring.MaxIntervalVariance, entertainmentID)

	patterns := make([]*model.RecurringPattern, 0, len(candidates))
	for _, candidate := range candidates {
		candidate.OwnerID = ownerID
		saved, err := l.datasource.UpsertRecurringPattern(ctx, candidate)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, saved)
	}
	return patterns, nil
}

// buildRecurringPatterns is the pure grouping/filtering core of detection.
// Groups are emitted in normalized-description order for determinism.
func buildRecurringPatterns(transactions []*model.Transaction, opts RecurringDetectionOptions, maxIntervalVariance float64, entertainmentCategoryID int64) []*model.RecurringPattern {
	cutoff := opts.ReferenceDate.AddDate(0, -opts.LookbackMonths, 0)

	groups := make(map[string][]*model.Transaction)
	for _, txn := range transactions {
		if txn.IsTransfer || txn.Date.Before(cutoff) {
			continue
		}
		key := model.NormalizeDescription(txn.Description)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], txn)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var patterns []*model.RecurringPattern
	for _, key := range keys {
		group := groups[key]
		if len(group) < opts.MinOccurrences {
			continue
		}

		amounts := make([]float64, len(group))
		for i, txn := range group {
			amounts[i] = txn.Amount()
		}
		if model.CoefficientOfVariation(amounts) > opts.MaxAmountVariance {
			continue
		}

		sort.Slice(group, func(i, j int) bool {
			if group[i].Date.Equal(group[j].Date) {
				return group[i].ID < group[j].ID
			}
			return group[i].Date.Before(group[j].Date)
		})
		intervals := dateIntervals(group)
		if len(intervals) == 0 || model.CoefficientOfVariation(intervals) > maxIntervalVariance {
			continue
		}
		frequency, ok := model.ClassifyFrequency(model.Mean(intervals))
		if !ok {
			continue
		}

		latest := group[len(group)-1]
		categoryID := dominantCategory(group)
		isSubscription := frequency == model.FrequencyMonthly &&
			categoryID == entertainmentCategoryID &&
			model.HasSubscriptionKeyword(key)

		patterns = append(patterns, &model.RecurringPattern{
			PatternID:             model.GenerateUUIDWithSuffix("ptrn"),
			NormalizedDescription: key,
			MerchantName:          model.NormalizeMerchant(latest.Description),
			TypicalAmount:         model.Round2(model.Mean(amounts)),
			TypicalDay:            typicalDayOfMonth(group),
			Frequency:             frequency,
			CategoryID:            categoryID,
			LastSeen:              latest.Date,
			IsSubscription:        isSubscription,
			Active:                true,
			Occurrences:           len(group),
			CreatedAt:             time.Now(),
		})
	}
	return patterns
}

// dateIntervals returns the day gaps between consecutive transactions,
// which must already be sorted by date.
func dateIntervals(group []*model.Transaction) []float64 {
	var intervals []float64
	for i := 1; i < len(group); i++ {
		intervals = append(intervals, group[i].Date.Sub(group[i-1].Date).Hours()/24)
	}
	return intervals
}

func typicalDayOfMonth(group []*model.Transaction) int {
	days := make([]float64, len(group))
	for i, txn := range group {
		days[i] = float64(txn.Date.Day())
	}
	return int(math.Round(model.Mean(days)))
}

// dominantCategory is a majority vote across the group's members, ties
// broken toward the lower category id for determinism.
func dominantCategory(group []*model.Transaction) int64 {
	counts := make(map[int64]int)
	for _, txn := range group {
		counts[txn.CategoryID]++
	}
	var winner int64
	best := -1
	for categoryID, count := range counts {
		if count > best || (count == best && categoryID < winner) {
			winner = categoryID
			best = count
		}
	}
	return winner
}

// GetRecurringPatterns lists the owner's detected patterns.
func (l *Finsight) GetRecurringPatterns(ctx context.Context, ownerID int64) ([]*model.RecurringPattern, error) {
	ctx, span := otel.Tracer("finsight.recurring").Start(ctx, "Listing recurring patterns")
	defer span.End()

	return l.datasource.GetPatternsByOwner(ctx, ownerID)
}

// MarkAsRecurring links explicit transactions to a pattern and refreshes
// the pattern's last-seen date from the linked set.
func (l *Finsight) MarkAsRecurring(ctx context.Context, transactionIDs []int64, patternID string) error {
	ctx, span := otel.Tracer("finsight.recurring").Start(ctx, "Marking transactions recurring")
	defer span.End()

	if len(transactionIDs) == 0 {
		return apierror.NewAPIError(apierror.ErrBadRequest, "Transaction id list is required", nil)
	}
	transactionIDs = dedupeIDs(transactionIDs)

	pattern, err := l.datasource.GetPatternByID(ctx, patternID)
	if err != nil {
		return err
	}
	transactions, err := l.datasource.GetTransactionsByIDs(ctx, transactionIDs)
	if err != nil {
		return err
	}
	if len(transactions) != len(transactionIDs) {
		return apierror.NewAPIError(apierror.ErrNotFound, "One or more transactions not found", nil)
	}

	lastSeen := pattern.LastSeen
	for _, txn := range transactions {
		if txn.Date.After(lastSeen) {
			lastSeen = txn.Date
		}
	}
	return l.datasource.MarkTransactionsRecurring(ctx, transactionIDs, pattern.PatternID, lastSeen)
}

// dedupeIDs drops repeated ids while preserving order. The IN-query
// collapses duplicates, so the count check must see a distinct list.
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	distinct := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		distinct = append(distinct, id)
	}
	return distinct
}
