package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finsighthq/finsight/internal/apierror"
	"github.com/finsighthq/finsight/model"
)

const anomalyColumns = `id, anomaly_id, transaction_id, anomaly_type, severity, description,
	dismissed, confirmed_fraud, detected_at`

func scanAnomaly(scanner interface{ Scan(...interface{}) error }) (*model.Anomaly, error) {
	anomaly := &model.Anomaly{}
	var txnID sql.NullInt64
	err := scanner.Scan(
		&anomaly.ID,
		&anomaly.AnomalyID,
		&txnID,
		&anomaly.AnomalyType,
		&anomaly.Severity,
		&anomaly.Description,
		&anomaly.Dismissed,
		&anomaly.ConfirmedFraud,
		&anomaly.DetectedAt,
	)
	if err != nil {
		return nil, err
	}
	if txnID.Valid {
		anomaly.TransactionID = &txnID.Int64
	}
	return anomaly, nil
}

// InsertAnomalyIfAbsent persists a detected anomaly unless a row with the
// same (transaction_id, anomaly_type) already exists. Lookup and insert run
// in one store transaction so re-running detection never duplicates rows.
// Returns whether a new row was written.
func (d *Datasource) InsertAnomalyIfAbsent(ctx context.Context, anomaly *model.Anomaly) (bool, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var txnID sql.NullInt64
	if anomaly.TransactionID != nil {
		txnID = sql.NullInt64{Int64: *anomaly.TransactionID, Valid: true}
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM anomalies
			WHERE transaction_id = $1 AND anomaly_type = $2
		)
	`, txnID, anomaly.AnomalyType).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check for existing anomaly", err)
	}
	if exists {
		if err := tx.Commit(); err != nil {
			return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
		}
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO anomalies
			(anomaly_id, transaction_id, anomaly_type, severity, description, dismissed,
			 confirmed_fraud, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, anomaly.AnomalyID, txnID, anomaly.AnomalyType, anomaly.Severity, anomaly.Description,
		anomaly.Dismissed, anomaly.ConfirmedFraud, anomaly.DetectedAt)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert anomaly", err)
	}

	if err := tx.Commit(); err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return true, nil
}

func (d *Datasource) UpdateAnomalyDismissed(ctx context.Context, anomalyID string) error {
	return d.setAnomalyFlag(ctx, anomalyID, "dismissed")
}

func (d *Datasource) UpdateAnomalyFraud(ctx context.Context, anomalyID string) error {
	return d.setAnomalyFlag(ctx, anomalyID, "confirmed_fraud")
}

func (d *Datasource) setAnomalyFlag(ctx context.Context, anomalyID, column string) error {
	result, err := d.Conn.ExecContext(ctx, fmt.Sprintf(`
		UPDATE anomalies
		SET %s = TRUE
		WHERE anomaly_id = $1
	`, column), anomalyID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update anomaly", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Anomaly with ID '%s' not found", anomalyID), nil)
	}
	return nil
}

func (d *Datasource) GetAllAnomalies(ctx context.Context) ([]*model.Anomaly, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM anomalies
		ORDER BY detected_at DESC, id DESC
	`, anomalyColumns))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve anomalies", err)
	}
	defer rows.Close()

	var anomalies []*model.Anomaly
	for rows.Next() {
		anomaly, err := scanAnomaly(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan anomaly data", err)
		}
		anomalies = append(anomalies, anomaly)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over anomalies", err)
	}

	return anomalies, nil
}

func (d *Datasource) GetAnomalyStats(ctx context.Context) (*model.AnomalyStats, error) {
	stats := &model.AnomalyStats{
		ByType:     make(map[string]int64),
		BySeverity: make(map[string]int64),
	}

	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(CASE WHEN dismissed THEN 1 END),
			COUNT(CASE WHEN confirmed_fraud THEN 1 END),
			COUNT(CASE WHEN NOT dismissed AND NOT confirmed_fraud THEN 1 END)
		FROM anomalies
	`).Scan(&stats.Total, &stats.Dismissed, &stats.ConfirmedFraud, &stats.Pending)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve anomaly totals", err)
	}

	if err := d.countAnomaliesBy(ctx, "anomaly_type", stats.ByType); err != nil {
		return nil, err
	}
	if err := d.countAnomaliesBy(ctx, "severity", stats.BySeverity); err != nil {
		return nil, err
	}

	return stats, nil
}

func (d *Datasource) countAnomaliesBy(ctx context.Context, column string, counts map[string]int64) error {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s, COUNT(*)
		FROM anomalies
		GROUP BY %s
	`, column, column))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve anomaly counts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan anomaly counts", err)
		}
		counts[key] = count
	}

	if err = rows.Err(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over anomaly counts", err)
	}
	return nil
}
