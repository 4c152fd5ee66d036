package billing

import (
	"context"
	"time"

	"github.com/ManuelReschke/PayGate/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the webhook service. Deliveries
// and subscriptions are keyed by tenant, provider and the provider's id.
type Repository interface {
	// CreateWebhookEventIfNotExists inserts the delivery already claimed by
	// the caller, or returns the stored row when it exists.
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	// ClaimWebhookEvent takes over a stored delivery that is not cleanly
	// processed and not claimed since staleBefore, stamping claimedAt. It
	// reports false when another request holds the claim or the delivery is
	// already done.
	ClaimWebhookEvent(ctx context.Context, id uint, claimedAt, staleBefore time.Time) (bool, error)
	// ReplaceWebhookDelivery overwrites the recorded payload of a delivery.
	ReplaceWebhookDelivery(ctx context.Context, id uint, event *models.BillingWebhookEvent) error
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error
	UpsertSubscription(ctx context.Context, sub *models.BillingSubscription) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"},
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider = ? AND provider_event_id = ?", event.TenantID, event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) ClaimWebhookEvent(ctx context.Context, id uint, claimedAt, staleBefore time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).
		Where("id = ?", id).
		Where("(processed_at IS NULL OR processing_error <> '')").
		Where("(claimed_at IS NULL OR claimed_at < ?)", staleBefore).
		Update("claimed_at", &claimedAt)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) ReplaceWebhookDelivery(ctx context.Context, id uint, event *models.BillingWebhookEvent) error {
	updates := map[string]interface{}{
		"event_type":      event.EventType,
		"resource_id":     event.ResourceID,
		"payload_json":    event.PayloadJSON,
		"signature_valid": event.SignatureValid,
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
		"claimed_at":       nil,
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.BillingSubscription) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"},
			{Name: "provider"},
			{Name: "provider_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"last_event_type",
			"last_event_at",
			"raw_payload_json",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider = ? AND provider_subscription_id = ?", sub.TenantID, sub.Provider, sub.ProviderSubscriptionID).
		First(sub).Error
}
