package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finsighthq/finsight/internal/apierror"
	"github.com/finsighthq/finsight/model"
)

const subscriptionColumns = `id, subscription_id, owner_id, merchant_pattern, display_name,
	expected_amount, frequency, billing_day, next_charge_date, last_charge_date,
	direction, category_id, active, created_at`

func scanSubscription(scanner interface{ Scan(...interface{}) error }) (*model.Subscription, error) {
	subscription := &model.Subscription{}
	var nextCharge, lastCharge sql.NullTime
	err := scanner.Scan(
		&subscription.ID,
		&subscription.SubscriptionID,
		&subscription.OwnerID,
		&subscription.MerchantPattern,
		&subscription.DisplayName,
		&subscription.ExpectedAmount,
		&subscription.Frequency,
		&subscription.BillingDay,
		&nextCharge,
		&lastCharge,
		&subscription.Direction,
		&subscription.CategoryID,
		&subscription.Active,
		&subscription.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if nextCharge.Valid {
		subscription.NextChargeDate = nextCharge.Time
	}
	if lastCharge.Valid {
		subscription.LastChargeDate = lastCharge.Time
	}
	return subscription, nil
}

func (d *Datasource) CreateSubscription(ctx context.Context, subscription *model.Subscription) (*model.Subscription, error) {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO subscriptions
			(subscription_id, owner_id, merchant_pattern, display_name, expected_amount,
			 frequency, billing_day, next_charge_date, last_charge_date, direction,
			 category_id, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, subscription.SubscriptionID, subscription.OwnerID, subscription.MerchantPattern,
		subscription.DisplayName, subscription.ExpectedAmount, subscription.Frequency,
		subscription.BillingDay, subscription.NextChargeDate, subscription.LastChargeDate,
		subscription.Direction, subscription.CategoryID, subscription.Active, subscription.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create subscription", err)
	}
	return subscription, nil
}

func (d *Datasource) UpdateSubscription(ctx context.Context, subscription *model.Subscription) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE subscriptions
		SET merchant_pattern = $2, display_name = $3, expected_amount = $4, frequency = $5,
			billing_day = $6, next_charge_date = $7, last_charge_date = $8, direction = $9,
			category_id = $10, active = $11
		WHERE subscription_id = $1
	`, subscription.SubscriptionID, subscription.MerchantPattern, subscription.DisplayName,
		subscription.ExpectedAmount, subscription.Frequency, subscription.BillingDay,
		subscription.NextChargeDate, subscription.LastChargeDate, subscription.Direction,
		subscription.CategoryID, subscription.Active)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update subscription", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Subscription with ID '%s' not found", subscription.SubscriptionID), nil)
	}
	return nil
}

// DeactivateSubscription is the soft delete: the row stays for history but
// is excluded from active listings.
func (d *Datasource) DeactivateSubscription(ctx context.Context, subscriptionID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE subscriptions
		SET active = FALSE
		WHERE subscription_id = $1
	`, subscriptionID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to deactivate subscription", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Subscription with ID '%s' not found", subscriptionID), nil)
	}
	return nil
}

func (d *Datasource) GetSubscriptionByID(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM subscriptions
		WHERE subscription_id = $1
	`, subscriptionColumns), subscriptionID)

	subscription, err := scanSubscription(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Subscription with ID '%s' not found", subscriptionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve subscription", err)
	}
	return subscription, nil
}

func (d *Datasource) GetSubscriptionsByOwner(ctx context.Context, ownerID int64) ([]*model.Subscription, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM subscriptions
		WHERE owner_id = $1 AND active = TRUE
		ORDER BY display_name
	`, subscriptionColumns), ownerID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve subscriptions", err)
	}
	defer rows.Close()

	var subscriptions []*model.Subscription
	for rows.Next() {
		subscription, err := scanSubscription(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan subscription data", err)
		}
		subscriptions = append(subscriptions, subscription)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over subscriptions", err)
	}

	return subscriptions, nil
}
