package customers_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/clock"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/customers"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

var now = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

func newService(t *testing.T) (*customers.Service, *memory.Store, domain.OutboxRepository) {
	t.Helper()
	store := memory.NewStore()
	outbox := memory.NewOutboxRepository(store)
	svc := customers.NewService(store, memory.NewCustomerRepository(store), outbox, domain.DefaultRankTable(), clock.NewManual(now), nil)
	return svc, store, outbox
}

func TestRegister(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	c, err := svc.Register(ctx, customers.RegisterInput{Email: "  Ivan@Example.com ", Name: " Ivan "})
	require.NoError(t, err)
	assert.Equal(t, "ivan@example.com", c.Email)
	assert.Equal(t, "Ivan", c.Name)
	assert.Equal(t, domain.RankIron, c.Rank)
	assert.True(t, c.Active)
	assert.True(t, c.LifetimeSpend.IsZero())

	_, err = svc.Register(ctx, customers.RegisterInput{Email: "ivan@example.com"})
	require.ErrorIs(t, err, domain.ErrCustomerExists)

	_, err = svc.Register(ctx, customers.RegisterInput{Email: "not-an-email"})
	require.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Register(ctx, customers.RegisterInput{})
	require.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	c, err := svc.Register(ctx, customers.RegisterInput{Email: "profile@example.com", Name: "Ivan", Phone: "+7900"})
	require.NoError(t, err)

	name, address := "  Ivan Petrov ", "Moscow, Tverskaya 1"
	updated, err := svc.UpdateProfile(ctx, c.ID, customers.ProfileUpdate{Name: &name, Address: &address})
	require.NoError(t, err)
	assert.Equal(t, "Ivan Petrov", updated.Name)
	assert.Equal(t, "+7900", updated.Phone, "omitted field is kept")
	assert.Equal(t, "Moscow, Tverskaya 1", updated.Address)
	assert.Equal(t, "profile@example.com", updated.Email)

	stored, err := svc.Profile(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Name, stored.Name)
	assert.Equal(t, updated.Address, stored.Address)
	assert.True(t, stored.LifetimeSpend.IsZero())

	_, err = svc.UpdateProfile(ctx, c.ID, customers.ProfileUpdate{})
	require.ErrorIs(t, err, domain.ErrNothingToUpdate)

	_, err = svc.UpdateProfile(ctx, 404, customers.ProfileUpdate{Name: &name})
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestSetActive_LockEnqueuesNotificationOnce(t *testing.T) {
	svc, _, outbox := newService(t)
	ctx := context.Background()
	c, err := svc.Register(ctx, customers.RegisterInput{Email: "lock@example.com"})
	require.NoError(t, err)

	locked, err := svc.SetActive(ctx, c.ID, false)
	require.NoError(t, err)
	assert.False(t, locked.Active)

	_, err = svc.SetActive(ctx, c.ID, false)
	require.NoError(t, err)

	pending, err := outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "repeated lock must not notify again")
	assert.Equal(t, domain.EventNotifyAccountLocked, pending[0].EventType)

	var notice domain.AccountLockedNotice
	require.NoError(t, json.Unmarshal(pending[0].Payload, &notice))
	assert.Equal(t, c.ID, notice.CustomerID)
	assert.Equal(t, "lock@example.com", notice.Email)

	unlocked, err := svc.SetActive(ctx, c.ID, true)
	require.NoError(t, err)
	assert.True(t, unlocked.Active)

	profile, err := svc.Profile(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, profile.Active)

	_, err = svc.SetActive(ctx, 404, false)
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestApplyFulfillment(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	c, err := svc.Register(ctx, customers.RegisterInput{Email: "spend@example.com"})
	require.NoError(t, err)

	_, _, err = svc.ApplyFulfillment(ctx, c.ID, decimal.NewFromInt(10))
	require.Error(t, err, "accrual outside a transaction must be rejected")

	var (
		spend decimal.Decimal
		rank  domain.Rank
	)
	err = store.WithTx(ctx, func(ctx context.Context) error {
		spend, rank, err = svc.ApplyFulfillment(ctx, c.ID, decimal.RequireFromString("19999999.99"))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "19999999.99", domain.FormatMoney(spend))
	assert.Equal(t, domain.RankIron, rank)

	err = store.WithTx(ctx, func(ctx context.Context) error {
		spend, rank, err = svc.ApplyFulfillment(ctx, c.ID, decimal.RequireFromString("0.01"))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "20000000.00", domain.FormatMoney(spend))
	assert.Equal(t, domain.RankBronze, rank)

	profile, err := svc.Profile(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RankBronze, profile.Rank)

	err = store.WithTx(ctx, func(ctx context.Context) error {
		_, _, err := svc.ApplyFulfillment(ctx, c.ID, decimal.NewFromInt(-1))
		return err
	})
	require.ErrorIs(t, err, domain.ErrInvalidPrice)
}
