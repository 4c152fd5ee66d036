package credentials

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayGate/app/models"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	key := make([]byte, keySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := NewCipher(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return c
}

func TestCipherRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	sealed, err := c.Seal("APP_USR-secret-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "APP_USR")

	again, err := c.Seal("APP_USR-secret-token")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce is random")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "APP_USR-secret-token", plain)

	empty, err := c.Open("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCipherRejectsTampering(t *testing.T) {
	c := newTestCipher(t)
	other := newTestCipher(t)

	sealed, err := c.Seal("token")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = c.Open("not-base64!!")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = c.Open(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewCipherValidatesKey(t *testing.T) {
	_, err := NewCipher("%%%")
	assert.Error(t, err)

	_, err = NewCipher(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	missing := SourceFunc(func(context.Context, string, string) (*Credentials, error) {
		return nil, ErrNotFound
	})
	found := SourceFunc(func(_ context.Context, tenantID, provider string) (*Credentials, error) {
		return &Credentials{TenantID: tenantID, Provider: provider, AccessToken: "from-second"}, nil
	})
	broken := SourceFunc(func(context.Context, string, string) (*Credentials, error) {
		return nil, errors.New("db down")
	})
	ctx := context.Background()

	creds, err := Chain(missing, nil, found).Lookup(ctx, "tenant-a", "mercadopago")
	require.NoError(t, err)
	assert.Equal(t, "from-second", creds.AccessToken)

	_, err = Chain(missing, broken, found).Lookup(ctx, "tenant-a", "mercadopago")
	assert.EqualError(t, err, "db down")

	_, err = Chain(missing).Lookup(ctx, "tenant-a", "mercadopago")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnvSource(t *testing.T) {
	ctx := context.Background()

	_, err := EnvSource{}.Lookup(ctx, "tenant-a", "mercadopago")
	assert.ErrorIs(t, err, ErrNotFound)

	t.Setenv("MERCADOPAGO_ACCESS_TOKEN", "TEST-123")
	t.Setenv("MERCADOPAGO_WEBHOOK_SECRET", "whsec")
	t.Setenv("MERCADOPAGO_SANDBOX", "true")

	creds, err := EnvSource{}.Lookup(ctx, " tenant-a ", "MercadoPago")
	require.NoError(t, err)
	assert.Equal(t, &Credentials{
		TenantID:      "tenant-a",
		Provider:      "mercadopago",
		AccessToken:   "TEST-123",
		WebhookSecret: "whsec",
		Sandbox:       true,
	}, creds)
}

type memoryRepository struct {
	rows map[string]*models.GatewayCredential
	err  error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{rows: map[string]*models.GatewayCredential{}}
}

func (m *memoryRepository) FindActive(_ context.Context, tenantID, provider string) (*models.GatewayCredential, error) {
	if m.err != nil {
		return nil, m.err
	}
	row, ok := m.rows[tenantID+"/"+provider]
	if !ok || !row.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memoryRepository) Upsert(_ context.Context, cred *models.GatewayCredential) error {
	if m.err != nil {
		return m.err
	}
	cred.ID = uint(len(m.rows) + 1)
	cp := *cred
	m.rows[cred.TenantID+"/"+cred.Provider] = &cp
	return nil
}

func TestStoreSourceSaveAndLookup(t *testing.T) {
	repo := newMemoryRepository()
	src := NewStoreSource(repo, newTestCipher(t))
	ctx := context.Background()

	row, err := src.Save(ctx, Credentials{
		TenantID:      "tenant-a",
		Provider:      "MercadoPago",
		AccessToken:   "APP_USR-abc",
		PublicKey:     "APP_USR-pub",
		WebhookSecret: "whsec",
	})
	require.NoError(t, err)
	assert.Equal(t, "mercadopago", row.Provider)
	assert.NotEqual(t, "APP_USR-abc", row.AccessTokenEnc)
	assert.NotNil(t, row.RotatedAt)
	assert.True(t, row.IsActive)

	creds, err := src.Lookup(ctx, "tenant-a", "mercadopago")
	require.NoError(t, err)
	assert.Equal(t, "APP_USR-abc", creds.AccessToken)
	assert.Equal(t, "whsec", creds.WebhookSecret)
	assert.Equal(t, "APP_USR-pub", creds.PublicKey)

	_, err = src.Lookup(ctx, "tenant-b", "mercadopago")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreSourceLookupErrors(t *testing.T) {
	repo := newMemoryRepository()
	repo.rows["tenant-a/mercadopago"] = &models.GatewayCredential{
		TenantID:       "tenant-a",
		Provider:       "mercadopago",
		AccessTokenEnc: "corrupted",
		IsActive:       true,
	}
	src := NewStoreSource(repo, newTestCipher(t))
	ctx := context.Background()

	_, err := src.Lookup(ctx, "tenant-a", "mercadopago")
	assert.ErrorIs(t, err, ErrDecrypt)
	assert.NotErrorIs(t, err, ErrNotFound)

	repo.err = errors.New("connection refused")
	_, err = src.Lookup(ctx, "tenant-a", "mercadopago")
	assert.ErrorContains(t, err, "connection refused")
}

func TestStoreSourceSaveValidates(t *testing.T) {
	src := NewStoreSource(newMemoryRepository(), nil)

	_, err := src.Save(context.Background(), Credentials{Provider: "mercadopago"})
	assert.Error(t, err)

	_, err = src.Save(context.Background(), Credentials{TenantID: "t", Provider: "mercadopago"})
	assert.ErrorContains(t, err, "cipher")
}
