package domain_test

import (
	"testing"
	"time"

	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalQuantity(t *testing.T) {
	assert.Equal(t, 0, domain.TotalQuantity(nil))
	assert.Equal(t, 0, domain.TotalQuantity([]domain.Batch{}))
	assert.Equal(t, 8, domain.TotalQuantity([]domain.Batch{{Quantity: 5}, {Quantity: 3}}))
	assert.Equal(t, 3, domain.TotalQuantity([]domain.Batch{{Quantity: 0}, {Quantity: 3}}))
}

func TestEarliestExpiration(t *testing.T) {
	t.Run("nil without batches", func(t *testing.T) {
		assert.Nil(t, domain.EarliestExpiration(nil))
	})

	t.Run("nil when no batch has an expiration", func(t *testing.T) {
		assert.Nil(t, domain.EarliestExpiration([]domain.Batch{{Quantity: 1}, {Quantity: 2, DeliveryDate: at(0)}}))
	})

	t.Run("minimum over batches with expiration", func(t *testing.T) {
		got := domain.EarliestExpiration([]domain.Batch{
			{Quantity: 1, ExpirationDate: at(days(50))},
			{Quantity: 1},
			{Quantity: 1, ExpirationDate: at(days(10))},
			{Quantity: 1, ExpirationDate: at(days(30))},
		})
		require.NotNil(t, got)
		assert.True(t, got.Equal(refTime.Add(days(10))))
	})

	t.Run("result does not alias the batch", func(t *testing.T) {
		batches := []domain.Batch{{Quantity: 1, ExpirationDate: at(days(1))}}
		got := domain.EarliestExpiration(batches)
		*got = got.Add(time.Hour)
		assert.True(t, batches[0].ExpirationDate.Equal(refTime.Add(days(1))))
	})
}

func TestAggregate_EndToEnd(t *testing.T) {
	item := domain.Item{
		Name:           "Saline 500ml",
		TargetQuantity: 10,
		Batches: domain.Batches{
			{Quantity: 5, ExpirationDate: at(days(10))},
			{Quantity: 3, ExpirationDate: at(days(50))},
		},
	}

	agg := domain.Aggregate(item)
	assert.Equal(t, 8, agg.TotalQuantity)
	require.NotNil(t, agg.EarliestExpiration)
	assert.True(t, agg.EarliestExpiration.Equal(refTime.Add(days(10))))
	assert.Equal(t, 2, agg.RestockNeeded())
	assert.True(t, agg.Understocked())
	assert.Equal(t,
		[]domain.StatusKey{domain.StatusExpiringSoon, domain.StatusUnderstocked},
		keys(domain.Classify(agg, refTime)))
}

func TestBatches_ScanValue(t *testing.T) {
	var b domain.Batches
	require.NoError(t, b.Scan(nil))
	assert.Empty(t, b)

	require.NoError(t, b.Scan([]byte(`[{"quantity":4,"expiration_date":"2024-05-01T00:00:00Z"}]`)))
	require.Len(t, b, 1)
	assert.Equal(t, 4, b[0].Quantity)
	require.NotNil(t, b[0].ExpirationDate)
	assert.Nil(t, b[0].DeliveryDate)

	v, err := domain.Batches(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	assert.Error(t, b.Scan(42))
}

func TestBatches_WithoutEmpty(t *testing.T) {
	got := domain.Batches{{Quantity: 0}, {Quantity: 2}, {Quantity: 0}}.WithoutEmpty()
	assert.Equal(t, domain.Batches{{Quantity: 2}}, got)
}
