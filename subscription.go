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

// subscriptionTolerances maps each frequency to the allowed deviation, in
// days, between the observed average interval and the nominal one. Monthly
// tolerance comes from configuration; income runs get extra slack because
// salary-style deposits shift around weekends and holidays.
func subscriptionToleranceDays(frequency model.Frequency, direction string, cnf *config.Configuration) float64 {
	var tolerance float64
	switch frequency {
	case model.FrequencyWeekly:
		tolerance = 3
	case model.FrequencyFortnightly:
		tolerance = 4
	case model.FrequencyMonthly:
		tolerance = float64(cnf.Detection.Subscription.ExpenseToleranceDays)
	case model.FrequencyQuarterly:
		tolerance = 10
	case model.FrequencyYearly:
		tolerance = 15
	}
	if direction == model.DirectionIncome {
		tolerance += float64(cnf.Detection.Subscription.IncomeToleranceDays - cnf.Detection.Subscription.ExpenseToleranceDays)
	}
	return tolerance
}

// DetectSubscriptions scans the owner's transactions for merchants charged
// (or paying, for income) on a steady cadence and reports candidates ranked
// by confidence. Detection is pure: nothing is persisted until the user
// confirms a candidate through CreateSubscription.
func (l *Finsight) DetectSubscriptions(ctx context.Context, ownerID int64) ([]model.SubscriptionCandidate, error) {
	ctx, span := otel.Tracer("finsight.subscription").Start(ctx, "Detecting subscriptions")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	transactions, err := l.datasource.GetTransactionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	candidates := detectSubscriptionCandidates(transactions, model.DirectionExpense, cnf)
	candidates = append(candidates, detectSubscriptionCandidates(transactions, model.DirectionIncome, cnf)...)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence == candidates[j].Confidence {
			return candidates[i].MerchantPattern < candidates[j].MerchantPattern
		}
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates, nil
}

// detectSubscriptionCandidates runs one directional pass. Expense passes
// look at debits, income passes at credits; transfer-flagged rows never
// participate.
func detectSubscriptionCandidates(transactions []*model.Transaction, direction string, cnf *config.Configuration) []model.SubscriptionCandidate {
	groups := make(map[string][]*model.Transaction)
	for _, txn := range transactions {
		if txn.IsTransfer {
			continue
		}
		if direction == model.DirectionExpense && txn.DebitAmount <= 0 {
			continue
		}
		if direction == model.DirectionIncome && txn.CreditAmount <= 0 {
			continue
		}
		key := model.NormalizeMerchant(txn.Description)
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

	var candidates []model.SubscriptionCandidate
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}

		amounts := make([]float64, len(group))
		for i, txn := range group {
			amounts[i] = txn.Amount()
		}
		amountCV := model.CoefficientOfVariation(amounts)
		if amountCV > 10 {
			continue
		}

		sort.Slice(group, func(i, j int) bool {
			if group[i].Date.Equal(group[j].Date) {
				return group[i].ID < group[j].ID
			}
			return group[i].Date.Before(group[j].Date)
		})
		intervals := dateIntervals(group)
		avgInterval := model.Mean(intervals)
		intervalCV := model.CoefficientOfVariation(intervals)

		frequency, ok := matchSubscriptionFrequency(avgInterval, direction, cnf)
		if !ok {
			continue
		}

		latest := group[len(group)-1]
		candidates = append(candidates, model.SubscriptionCandidate{
			MerchantPattern: key,
			DisplayName:     displayNameFromMerchant(key),
			ExpectedAmount:  model.Round2(model.Mean(amounts)),
			Frequency:       frequency,
			BillingDay:      typicalDayOfMonth(group),
			LastChargeDate:  latest.Date,
			NextChargeDate:  latest.Date.AddDate(0, 0, int(model.ExpectedIntervalDays(frequency))),
			Direction:       direction,
			Occurrences:     len(group),
			Confidence:      subscriptionConfidence(amountCV, intervalCV, len(group)),
		})
	}
	return candidates
}

// matchSubscriptionFrequency picks the frequency whose nominal interval is
// closest to the observed average, accepting it only within the per-frequency
// tolerance window. Closest match wins when windows overlap.
func matchSubscriptionFrequency(avgIntervalDays float64, direction string, cnf *config.Configuration) (model.Frequency, bool) {
	var best model.Frequency
	bestDelta := math.MaxFloat64
	for _, frequency := range model.Frequencies {
		delta := math.Abs(avgIntervalDays - model.ExpectedIntervalDays(frequency))
		if delta <= subscriptionToleranceDays(frequency, direction, cnf) && delta < bestDelta {
			best = frequency
			bestDelta = delta
		}
	}
	return best, best != ""
}

// subscriptionConfidence scores a candidate in [0,1]: a 0.5 base, up to
// 0.25 for amount consistency, up to 0.15 for interval consistency and up
// to 0.10 for extra occurrences beyond the second.
func subscriptionConfidence(amountCV, intervalCV float64, occurrences int) float64 {
	confidence := 0.5
	confidence += 0.25 * (1 - amountCV/10)
	confidence += 0.15 * math.Max(0, 1-intervalCV/30)
	confidence += math.Min(0.10, 0.02*float64(occurrences-2))
	confidence = math.Max(0, math.Min(1, confidence))
	return model.Round2(confidence)
}

// displayNameFromMerchant title-cases a normalized merchant key for display.
func displayNameFromMerchant(merchant string) string {
	words := []rune(merchant)
	previousSpace := true
	for i, r := range words {
		if r == ' ' {
			previousSpace = true
			continue
		}
		if !previousSpace && r >= 'A' && r <= 'Z' {
			words[i] = r + ('a' - 'A')
		}
		previousSpace = false
	}
	return string(words)
}

func validateSubscription(subscription *model.Subscription) error {
	frequencies := make([]interface{}, len(model.Frequencies))
	for i, frequency := range model.Frequencies {
		frequencies[i] = frequency
	}
	err := validation.ValidateStruct(subscription,
		validation.Field(&subscription.MerchantPattern, validation.Required),
		validation.Field(&subscription.DisplayName, validation.Required),
		validation.Field(&subscription.ExpectedAmount, validation.Required, validation.Min(0.01)),
		validation.Field(&subscription.Frequency, validation.Required, validation.In(frequencies...)),
		validation.Field(&subscription.Direction, validation.Required, validation.In(model.DirectionExpense, model.DirectionIncome)),
		validation.Field(&subscription.BillingDay, validation.Min(1), validation.Max(31)),
	)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid subscription", err)
	}
	return nil
}

// CreateSubscription persists a confirmed subscription, typically built
// from a detected candidate. The category, when given, must exist.
func (l *Finsight) CreateSubscription(ctx context.Context, subscription *model.Subscription) (*model.Subscription, error) {
	ctx, span := otel.Tracer("finsight.subscription").Start(ctx, "Creating subscription")
	defer span.End()

	if err := validateSubscription(subscription); err != nil {
		return nil, err
	}
	if subscription.CategoryID != 0 {
		if _, err := l.datasource.GetCategoryByID(ctx, subscription.CategoryID); err != nil {
			return nil, err
		}
	}

	subscription.SubscriptionID = model.GenerateUUIDWithSuffix("sub")
	subscription.ExpectedAmount = model.Round2(subscription.ExpectedAmount)
	subscription.Active = true
	subscription.CreatedAt = time.Now()
	return l.datasource.CreateSubscription(ctx, subscription)
}

// UpdateSubscription replaces the mutable fields of an existing
// subscription. The owner and subscription id are immutable.
func (l *Finsight) UpdateSubscription(ctx context.Context, subscription *model.Subscription) (*model.Subscription, error) {
	ctx, span := otel.Tracer("finsight.subscription").Start(ctx, "Updating subscription")
	defer span.End()

	if err := validateSubscription(subscription); err != nil {
		return nil, err
	}
	existing, err := l.datasource.GetSubscriptionByID(ctx, subscription.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if subscription.CategoryID != 0 && subscription.CategoryID != existing.CategoryID {
		if _, err := l.datasource.GetCategoryByID(ctx, subscription.CategoryID); err != nil {
			return nil, err
		}
	}

	subscription.OwnerID = existing.OwnerID
	subscription.ExpectedAmount = model.Round2(subscription.ExpectedAmount)
	if err := l.datasource.UpdateSubscription(ctx, subscription); err != nil {
		return nil, err
	}
	return subscription, nil
}

// DeleteSubscription soft-deletes: the row is deactivated, never removed,
// so charge history stays attributable.
func (l *Finsight) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	ctx, span := otel.Tracer("finsight.subscription").Start(ctx, "Deleting subscription")
	defer span.End()

	return l.datasource.DeactivateSubscription(ctx, subscriptionID)
}

// GetSubscriptions lists the owner's active subscriptions.
func (l *Finsight) GetSubscriptions(ctx context.Context, ownerID int64) ([]*model.Subscription, error) {
	ctx, span := otel.Tracer("finsight.subscription").Start(ctx, "Listing subscriptions")
	defer span.End()

	return l.datasource.GetSubscriptionsByOwner(ctx, ownerID)
}
