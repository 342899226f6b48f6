package commission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/internal/testdb"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	"github.com/angelmondragon/storefront-settlement/pkg/pagination"
)

func seedCommission(t *testing.T, db *gorm.DB, sellerID uuid.UUID, createdAt time.Time) models.CommissionTransaction {
	t.Helper()
	commission, seller, err := Split(100000, DefaultRate)
	require.NoError(t, err)
	record := models.CommissionTransaction{
		OrderID:           uuid.New(),
		SellerID:          sellerID,
		Currency:          "NGN",
		TotalCents:        100000,
		CommissionRate:    DefaultRate,
		CommissionCents:   commission,
		SellerAmountCents: seller,
		CreatedAt:         createdAt,
	}
	require.NoError(t, NewRepository(db).Create(context.Background(), &record))
	return record
}

func TestCreateRejectsUnbalancedSplit(t *testing.T) {
	db := testdb.Open(t)
	record := models.CommissionTransaction{
		OrderID:           uuid.New(),
		SellerID:          uuid.New(),
		Currency:          "NGN",
		TotalCents:        1000,
		CommissionRate:    decimal.NewFromInt(15),
		CommissionCents:   150,
		SellerAmountCents: 900,
	}
	require.Error(t, NewRepository(db).Create(context.Background(), &record))
}

func TestTransitionOnlyFromOpenStatuses(t *testing.T) {
	db := testdb.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	record := seedCommission(t, db, uuid.New(), time.Now().UTC())
	ref := "TRF-001"
	now := time.Now().UTC()

	changed, err := repo.Transition(ctx, record.ID, Settlement{Target: enums.CommissionStatusPaid, PaymentReference: &ref, At: now})
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = repo.Transition(ctx, record.ID, Settlement{Target: enums.CommissionStatusRejected, At: now})
	require.NoError(t, err)
	require.False(t, changed)

	stored, err := repo.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CommissionStatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
	require.Equal(t, ref, *stored.PaymentReference)
	require.Equal(t, record.CommissionCents, stored.CommissionCents)

	_, err = repo.Get(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentTransitionsChangeOneRow(t *testing.T) {
	db := testdb.Open(t)
	repo := NewRepository(db)
	record := seedCommission(t, db, uuid.New(), time.Now().UTC())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref := uuid.NewString()
			changed, err := repo.Transition(context.Background(), record.ID, Settlement{
				Target:           enums.CommissionStatusPaid,
				PaymentReference: &ref,
				At:               time.Now().UTC(),
			})
			if err != nil {
				t.Error(err)
				return
			}
			if changed {
				mu.Lock()
				changes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, changes)
}

func TestListFiltersAndPaginates(t *testing.T) {
	db := testdb.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	sellerA := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := seedCommission(t, db, sellerA, base)
	second := seedCommission(t, db, sellerA, base.Add(time.Minute))
	third := seedCommission(t, db, sellerA, base.Add(2*time.Minute))
	seedCommission(t, db, uuid.New(), base.Add(3*time.Minute))

	page, err := repo.List(ctx, Filter{SellerID: &sellerA}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, third.ID, page.Items[0].ID)
	require.Equal(t, second.ID, page.Items[1].ID)
	require.NotEmpty(t, page.NextCursor)

	next, err := repo.List(ctx, Filter{SellerID: &sellerA}, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	require.Equal(t, first.ID, next.Items[0].ID)
	require.Empty(t, next.NextCursor)

	paid := enums.CommissionStatusPaid
	none, err := repo.List(ctx, Filter{Status: &paid}, pagination.Params{})
	require.NoError(t, err)
	require.Empty(t, none.Items)
}
