package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerRollsBackOnError(t *testing.T) {
	m := NewMemoryLedger(Product{ID: 1, Name: "Water", Price: decimal.NewFromInt(2), Managed: true, Stock: 10, Active: true})
	boom := errors.New("boom")

	err := m.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, ok, err := tx.DecrementStock(ctx, 1, 4)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.InsertOrder(ctx, &Order{TransactionCode: "TRX-1", Status: StatusPaid}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, _ := m.Product(1)
	assert.Equal(t, 10, p.Stock)
	assert.Equal(t, 0, m.OrderCount())
}

func TestMemoryLedgerCommit(t *testing.T) {
	m := NewMemoryLedger(Product{ID: 1, Name: "Water", Price: decimal.NewFromInt(2), Managed: true, Stock: 10, Active: true})

	var id int64
	err := m.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		left, ok, err := tx.DecrementStock(ctx, 1, 4)
		if err != nil || !ok {
			return err
		}
		assert.Equal(t, 6, left)
		o := &Order{TransactionCode: "TRX-1", Status: StatusPaid}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		id = o.ID
		return tx.InsertItems(ctx, o.ID, []OrderItem{{ProductID: 1, Name: "Water", Price: decimal.NewFromInt(2), Qty: 4}})
	})
	require.NoError(t, err)

	p, _ := m.Product(1)
	assert.Equal(t, 6, p.Stock)
	o, items, err := m.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "TRX-1", o.TransactionCode)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].OrderID)
}

func TestMemoryLedgerDecrementRefusesOversell(t *testing.T) {
	m := NewMemoryLedger(Product{ID: 1, Name: "Water", Managed: true, Stock: 3, Active: true})
	err := m.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		left, ok, err := tx.DecrementStock(ctx, 1, 4)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 3, left)
		return nil
	})
	require.NoError(t, err)
	p, _ := m.Product(1)
	assert.Equal(t, 3, p.Stock)
}

func TestMemoryLedgerDuplicateCode(t *testing.T) {
	m := NewMemoryLedger()
	insert := func() error {
		return m.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
			return tx.InsertOrder(ctx, &Order{TransactionCode: "TRX-SAME", Status: StatusPaid})
		})
	}
	require.NoError(t, insert())
	assert.Equal(t, KindDuplicateCode, KindOf(insert()))
	assert.Equal(t, 1, m.OrderCount())
}

func TestMemoryLedgerExpiredContext(t *testing.T) {
	m := NewMemoryLedger()
	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	called := false
	err := m.InTx(ctx, func(context.Context, Tx) error { called = true; return nil })
	assert.False(t, called)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestMemoryLedgerMarkCancelledTwice(t *testing.T) {
	m := NewMemoryLedger()
	var id int64
	require.NoError(t, m.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		o := &Order{TransactionCode: "TRX-1", Status: StatusPaid}
		err := tx.InsertOrder(ctx, o)
		id = o.ID
		return err
	}))

	cancel := func() error {
		return m.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
			return tx.MarkCancelled(ctx, id, 9, time.Now())
		})
	}
	require.NoError(t, cancel())
	assert.Equal(t, KindAlreadyCancelled, KindOf(cancel()))
}

func TestListActiveProductsSkipsInactive(t *testing.T) {
	m := NewMemoryLedger(DemoCatalog()...)
	m.PutProduct(Product{ID: 9, Name: "Retired", Active: false})

	ps, err := m.ListActiveProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, ps, len(DemoCatalog()))
	for _, p := range ps {
		assert.NotEqual(t, "Retired", p.Name)
	}
}
