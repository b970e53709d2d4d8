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
	"sort"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/finsighthq/finsight/config"
	"github.com/finsighthq/finsight/model"
)

// AnomalyDetectionOptions tunes one detection run. Zero values take the
// configured defaults; ReferenceDate defaults to now.
type AnomalyDetectionOptions struct {
	Days           int       `json:"days"`
	BaselineMonths int       `json:"baseline_months"`
	ReferenceDate  time.Time `json:"reference_date"`
}

func (o *AnomalyDetectionOptions) applyDefaults(cnf *config.Configuration) {
	if o.Days == 0 {
		o.Days = cnf.Detection.Anomaly.WindowDays
	}
	if o.BaselineMonths == 0 {
		o.BaselineMonths = cnf.Detection.Anomaly.BaselineMonths
	}
	if o.ReferenceDate.IsZero() {
		o.ReferenceDate = time.Now()
	}
}

// DetectAnomalies runs all four anomaly passes over the owner's recent
// window, using older history as the baseline, and persists what it finds.
// A (transaction, type) pair is flagged at most once across runs; only
// newly inserted anomalies are returned.
func (l *Finsight) DetectAnomalies(ctx context.Context, ownerID int64, opts AnomalyDetectionOptions) ([]*model.Anomaly, error) {
	ctx, span := otel.Tracer("finsight.anomaly").Start(ctx, "Detecting anomalies")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	opts.applyDefaults(cnf)

	transactions, err := l.datasource.GetTransactionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	detected := findAnomalies(transactions, opts, cnf.Detection.Anomaly)

	var inserted []*model.Anomaly
	for _, anomaly := range detected {
		ok, err := l.datasource.InsertAnomalyIfAbsent(ctx, anomaly)
		if err != nil {
			return nil, err
		}
		if ok {
			inserted = append(inserted, anomaly)
		}
	}
	return inserted, nil
}

// findAnomalies is the pure detection core. The window holds transactions
// in the Days leading up to the reference date; everything earlier (bounded
// by BaselineMonths when set) is baseline history. Transfers never
// participate in either set.
func findAnomalies(transactions []*model.Transaction, opts AnomalyDetectionOptions, cnf config.AnomalyConfig) []*model.Anomaly {
	windowStart := opts.ReferenceDate.AddDate(0, 0, -opts.Days)
	var baselineStart time.Time
	if opts.BaselineMonths > 0 {
		baselineStart = windowStart.AddDate(0, -opts.BaselineMonths, 0)
	}

	var current, history []*model.Transaction
	for _, txn := range transactions {
		if txn.IsTransfer || txn.Date.After(opts.ReferenceDate) {
			continue
		}
		if txn.Date.Before(windowStart) {
			if opts.BaselineMonths == 0 || !txn.Date.Before(baselineStart) {
				history = append(history, txn)
			}
			continue
		}
		current = append(current, txn)
	}

	detectedAt := time.Now()
	var anomalies []*model.Anomaly
	anomalies = append(anomalies, findUnusualAmounts(current, history, detectedAt)...)
	anomalies = append(anomalies, findNewMerchantLarge(current, history, cnf.LargeAmountThreshold, detectedAt)...)
	anomalies = append(anomalies, findPotentialDuplicates(current, detectedAt)...)
	anomalies = append(anomalies, findCategorySpikes(current, history, cnf.SpikeMultiplier, detectedAt)...)
	return anomalies
}

// findUnusualAmounts flags window debits sitting more than three standard
// deviations above their category's historical debit mean. Categories with
// fewer than 3 historical debits have no usable baseline and are skipped.
func findUnusualAmounts(current, history []*model.Transaction, detectedAt time.Time) []*model.Anomaly {
	byCategory := make(map[int64][]float64)
	for _, txn := range history {
		if txn.DebitAmount > 0 {
			byCategory[txn.CategoryID] = append(byCategory[txn.CategoryID], txn.DebitAmount)
		}
	}

	var anomalies []*model.Anomaly
	for _, txn := range current {
		if txn.DebitAmount <= 0 {
			continue
		}
		amounts, ok := byCategory[txn.CategoryID]
		if !ok || len(amounts) < 3 {
			continue
		}
		threshold := model.Mean(amounts) + 3*model.StdDev(amounts)
		if txn.DebitAmount > threshold {
			anomalies = append(anomalies, newAnomaly(txn.ID, model.AnomalyUnusualAmount, model.SeverityMedium,
				fmt.Sprintf("Debit of %.2f is far above the category's typical %.2f", txn.DebitAmount, model.Round2(model.Mean(amounts))),
				detectedAt))
		}
	}
	return anomalies
}

// findNewMerchantLarge flags large window debits whose normalized
// description never appeared in the baseline history.
func findNewMerchantLarge(current, history []*model.Transaction, largeThreshold float64, detectedAt time.Time) []*model.Anomaly {
	seen := make(map[string]bool)
	for _, txn := range history {
		seen[model.NormalizeDescription(txn.Description)] = true
	}

	var anomalies []*model.Anomaly
	for _, txn := range current {
		if txn.DebitAmount <= largeThreshold {
			continue
		}
		if seen[model.NormalizeDescription(txn.Description)] {
			continue
		}
		anomalies = append(anomalies, newAnomaly(txn.ID, model.AnomalyNewMerchantLarge, model.SeverityLow,
			fmt.Sprintf("First charge from this merchant for %.2f", txn.DebitAmount), detectedAt))
	}
	return anomalies
}

// findPotentialDuplicates flags every member of a window cluster sharing
// amount, date and the exact description. Same-day double billing is a
// frequent card-network failure mode, so these rank high. The description
// is matched verbatim: "COFFEE SHOP #1" and "COFFEE SHOP #2" are distinct
// merchants, not a double charge.
func findPotentialDuplicates(current []*model.Transaction, detectedAt time.Time) []*model.Anomaly {
	type dupeKey struct {
		amount      float64
		date        string
		description string
	}
	clusters := make(map[dupeKey][]*model.Transaction)
	for _, txn := range current {
		key := dupeKey{
			amount:      model.Round2(txn.Amount()),
			date:        txn.Date.Format("2006-01-02"),
			description: txn.Description,
		}
		clusters[key] = append(clusters[key], txn)
	}

	var anomalies []*model.Anomaly
	for key, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}
		for _, txn := range cluster {
			anomalies = append(anomalies, newAnomaly(txn.ID, model.AnomalyPotentialDuplicate, model.SeverityHigh,
				fmt.Sprintf("%d charges of %.2f on %s share the same description", len(cluster), key.amount, key.date),
				detectedAt))
		}
	}
	sort.Slice(anomalies, func(i, j int) bool {
		return *anomalies[i].TransactionID < *anomalies[j].TransactionID
	})
	return anomalies
}

// findCategorySpikes compares each category's window debit total against
// its historical monthly average, flagging categories that exceed the spike
// multiplier. The anomaly anchors to the window's largest debit in that
// category, which is usually the charge that caused the spike.
func findCategorySpikes(current, history []*model.Transaction, multiplier float64, detectedAt time.Time) []*model.Anomaly {
	historicalTotals := make(map[int64]float64)
	historicalMonths := make(map[int64]map[string]bool)
	for _, txn := range history {
		if txn.DebitAmount <= 0 {
			continue
		}
		historicalTotals[txn.CategoryID] += txn.DebitAmount
		if historicalMonths[txn.CategoryID] == nil {
			historicalMonths[txn.CategoryID] = make(map[string]bool)
		}
		historicalMonths[txn.CategoryID][txn.Date.Format(monthLayout)] = true
	}

	currentTotals := make(map[int64]float64)
	largest := make(map[int64]*model.Transaction)
	for _, txn := range current {
		if txn.DebitAmount <= 0 {
			continue
		}
		currentTotals[txn.CategoryID] += txn.DebitAmount
		if largest[txn.CategoryID] == nil || txn.DebitAmount > largest[txn.CategoryID].DebitAmount {
			largest[txn.CategoryID] = txn
		}
	}

	categories := make([]int64, 0, len(currentTotals))
	for categoryID := range currentTotals {
		categories = append(categories, categoryID)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	var anomalies []*model.Anomaly
	for _, categoryID := range categories {
		months := len(historicalMonths[categoryID])
		if months == 0 {
			continue
		}
		monthlyAvg := historicalTotals[categoryID] / float64(months)
		total := currentTotals[categoryID]
		if total >= multiplier*monthlyAvg {
			anomalies = append(anomalies, newAnomaly(largest[categoryID].ID, model.AnomalyCategorySpike, model.SeverityMedium,
				fmt.Sprintf("Category spending of %.2f is %.1fx the monthly average of %.2f",
					model.Round2(total), total/monthlyAvg, model.Round2(monthlyAvg)),
				detectedAt))
		}
	}
	return anomalies
}

func newAnomaly(transactionID int64, anomalyType, severity, description string, detectedAt time.Time) *model.Anomaly {
	return &model.Anomaly{
		AnomalyID:     model.GenerateUUIDWithSuffix("anm"),
		TransactionID: &transactionID,
		AnomalyType:   anomalyType,
		Severity:      severity,
		Description:   description,
		DetectedAt:    detectedAt,
	}
}

// DismissAnomaly marks an anomaly reviewed and harmless. Dismissed rows
// stay on record so detection never re-raises them.
func (l *Finsight) DismissAnomaly(ctx context.Context, anomalyID string) error {
	ctx, span := otel.Tracer("finsight.anomaly").Start(ctx, "Dismissing anomaly")
	defer span.End()

	return l.datasource.UpdateAnomalyDismissed(ctx, anomalyID)
}

// ConfirmFraud marks an anomaly as confirmed fraudulent activity.
func (l *Finsight) ConfirmFraud(ctx context.Context, anomalyID string) error {
	ctx, span := otel.Tracer("finsight.anomaly").Start(ctx, "Confirming fraud")
	defer span.End()

	return l.datasource.UpdateAnomalyFraud(ctx, anomalyID)
}

// GetAnomalies lists every recorded anomaly, newest first.
func (l *Finsight) GetAnomalies(ctx context.Context) ([]*model.Anomaly, error) {
	ctx, span := otel.Tracer("finsight.anomaly").Start(ctx, "Listing anomalies")
	defer span.End()

	return l.datasource.GetAllAnomalies(ctx)
}

// GetAnomalyStats aggregates anomaly counts by lifecycle state, type and
// severity.
func (l *Finsight) GetAnomalyStats(ctx context.Context) (*model.AnomalyStats, error) {
	ctx, span := otel.Tracer("finsight.anomaly").Start(ctx, "Summarizing anomalies")
	defer span.End()

	return l.datasource.GetAnomalyStats(ctx)
}
