package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finsighthq/finsight/internal/apierror"
	"github.com/finsighthq/finsight/model"
)

const patternColumns = `id, pattern_id, owner_id, normalized_description, merchant_name,
	typical_amount, typical_day, frequency, category_id, last_seen, is_subscription,
	active, occurrences, created_at`

func scanPattern(scanner interface{ Scan(...interface{}) error }) (*model.RecurringPattern, error) {
	pattern := &model.RecurringPattern{}
	err := scanner.Scan(
		&pattern.ID,
		&pattern.PatternID,
		&pattern.OwnerID,
		&pattern.NormalizedDescription,
		&pattern.MerchantName,
		&pattern.TypicalAmount,
		&pattern.TypicalDay,
		&pattern.Frequency,
		&pattern.CategoryID,
		&pattern.LastSeen,
		&pattern.IsSubscription,
		&pattern.Active,
		&pattern.Occurrences,
		&pattern.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return pattern, nil
}

func (d *Datasource) GetPatternByID(ctx context.Context, patternID string) (*model.RecurringPattern, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM recurring_patterns
		WHERE pattern_id = $1
	`, patternColumns), patternID)

	pattern, err := scanPattern(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Pattern with ID '%s' not found", patternID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve pattern", err)
	}
	return pattern, nil
}

func (d *Datasource) GetPatternsByOwner(ctx context.Context, ownerID int64) ([]*model.RecurringPattern, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM recurring_patterns
		WHERE owner_id = $1
		ORDER BY normalized_description
	`, patternColumns), ownerID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve patterns", err)
	}
	defer rows.Close()

	var patterns []*model.RecurringPattern
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan pattern data", err)
		}
		patterns = append(patterns, pattern)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over patterns", err)
	}

	return patterns, nil
}

// UpsertRecurringPattern finds-or-creates a catalog row keyed by
// (owner_id, normalized_description). The lookup and write run inside one
// store transaction; an existing row keeps its pattern_id and created_at so
// repeated detection runs never change identity. An explicit lookup is used
// rather than a conflict clause to keep the sequence portable across
// drivers.
func (d *Datasource) UpsertRecurringPattern(ctx context.Context, pattern *model.RecurringPattern) (*model.RecurringPattern, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var existingID string
	err = tx.QueryRowContext(ctx, `
		SELECT pattern_id
		FROM recurring_patterns
		WHERE owner_id = $1 AND normalized_description = $2
	`, pattern.OwnerID, pattern.NormalizedDescription).Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO recurring_patterns
				(pattern_id, owner_id, normalized_description, merchant_name, typical_amount,
				 typical_day, frequency, category_id, last_seen, is_subscription, active,
				 occurrences, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, pattern.PatternID, pattern.OwnerID, pattern.NormalizedDescription, pattern.MerchantName,
			pattern.TypicalAmount, pattern.TypicalDay, pattern.Frequency, pattern.CategoryID,
			pattern.LastSeen, pattern.IsSubscription, pattern.Active, pattern.Occurrences, pattern.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert pattern", err)
		}
	case err != nil:
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to look up pattern", err)
	default:
		pattern.PatternID = existingID
		_, err = tx.ExecContext(ctx, `
			UPDATE recurring_patterns
			SET merchant_name = $3, typical_amount = $4, typical_day = $5, frequency = $6,
				category_id = $7, last_seen = $8, is_subscription = $9, active = $10,
				occurrences = $11
			WHERE owner_id = $1 AND normalized_description = $2
		`, pattern.OwnerID, pattern.NormalizedDescription, pattern.MerchantName,
			pattern.TypicalAmount, pattern.TypicalDay, pattern.Frequency, pattern.CategoryID,
			pattern.LastSeen, pattern.IsSubscription, pattern.Active, pattern.Occurrences)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update pattern", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return pattern, nil
}
