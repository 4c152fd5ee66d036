package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/PayGate/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations on stored gateway credentials.
type Repository interface {
	FindActive(ctx context.Context, tenantID, provider string) (*models.GatewayCredential, error)
	Upsert(ctx context.Context, cred *models.GatewayCredential) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a credential repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindActive(ctx context.Context, tenantID, provider string) (*models.GatewayCredential, error) {
	var cred models.GatewayCredential
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider = ? AND is_active = ?", tenantID, provider, true).
		First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *gormRepository) Upsert(ctx context.Context, cred *models.GatewayCredential) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"},
			{Name: "provider"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"public_key",
			"access_token_enc",
			"webhook_secret_enc",
			"sandbox",
			"is_active",
			"rotated_at",
			"updated_at",
		}),
	}).Create(cred).Error; err != nil {
		return err
	}

	return r.db.WithContext(ctx).Where("tenant_id = ? AND provider = ?", cred.TenantID, cred.Provider).
		First(cred).Error
}

// StoreSource reads tenant credentials from the gateway_credentials table.
type StoreSource struct {
	repo   Repository
	cipher *Cipher
}

func NewStoreSource(repo Repository, cipher *Cipher) *StoreSource {
	return &StoreSource{repo: repo, cipher: cipher}
}

// NewStoreSourceFromDB creates a credential source from a GORM DB handle.
func NewStoreSourceFromDB(db *gorm.DB, cipher *Cipher) *StoreSource {
	return NewStoreSource(NewRepository(db), cipher)
}

func (s *StoreSource) Lookup(ctx context.Context, tenantID, provider string) (*Credentials, error) {
	p := normalizeProvider(provider)
	row, err := s.repo.FindActive(ctx, strings.TrimSpace(tenantID), p)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load %s credentials: %w", p, err)
	}

	accessToken, err := s.open(row.AccessTokenEnc)
	if err != nil {
		return nil, fmt.Errorf("%s access token for tenant %s: %w", p, row.TenantID, err)
	}
	webhookSecret, err := s.open(row.WebhookSecretEnc)
	if err != nil {
		return nil, fmt.Errorf("%s webhook secret for tenant %s: %w", p, row.TenantID, err)
	}

	return &Credentials{
		TenantID:      row.TenantID,
		Provider:      row.Provider,
		AccessToken:   accessToken,
		PublicKey:     row.PublicKey,
		WebhookSecret: webhookSecret,
		Sandbox:       row.Sandbox,
	}, nil
}

// Save seals and stores credentials, returning the persisted row. Callers
// rotating credentials must evict the tenant from the gateway factory.
func (s *StoreSource) Save(ctx context.Context, in Credentials) (*models.GatewayCredential, error) {
	tenant := strings.TrimSpace(in.TenantID)
	p := normalizeProvider(in.Provider)
	if tenant == "" || p == "" {
		return nil, errors.New("tenant_id and provider are required")
	}
	if s.cipher == nil {
		return nil, errors.New("credentials cipher is not configured")
	}

	accessTokenEnc, err := s.cipher.Seal(in.AccessToken)
	if err != nil {
		return nil, err
	}
	webhookSecretEnc, err := s.cipher.Seal(in.WebhookSecret)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	row := &models.GatewayCredential{
		TenantID:         tenant,
		Provider:         p,
		PublicKey:        strings.TrimSpace(in.PublicKey),
		AccessTokenEnc:   accessTokenEnc,
		WebhookSecretEnc: webhookSecretEnc,
		Sandbox:          in.Sandbox,
		IsActive:         true,
		RotatedAt:        &now,
	}
	if err := row.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *StoreSource) open(sealed string) (string, error) {
	if strings.TrimSpace(sealed) == "" {
		return "", nil
	}
	if s.cipher == nil {
		return "", errors.New("credentials cipher is not configured")
	}
	return s.cipher.Open(sealed)
}
