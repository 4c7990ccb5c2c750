package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskbay/walletcore/internal/apperr"
	"github.com/taskbay/walletcore/internal/model"
)

func TestMemoryWallets(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.GetWallet(ctx, "owner-1")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	w := &model.ManagedWallet{OwnerID: "owner-1", Address: "addr", EncryptedSecret: "blob"}
	require.NoError(t, m.PutWallet(ctx, w))

	got, err := m.GetWallet(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "blob", got.EncryptedSecret)

	err = m.PutWallet(ctx, w)
	require.ErrorIs(t, err, apperr.ErrWalletExists)
}

func TestMemoryRequests(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.GetRequest(ctx, "req-1")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	req := &model.PaymentRequest{ID: "req-1", OwnerID: "owner-1", Status: model.StatusPending, CreatedAt: time.Now()}
	require.NoError(t, m.PutRequest(ctx, req))

	got, err := m.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)

	// Returned value is a copy, not the stored record.
	got.Status = model.StatusPaid
	again, err := m.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, again.Status)
}

func TestMemoryDuplicateSignature(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec := &model.LedgerRecord{ID: "rec-1", TxSignature: "sig-1", Amount: decimal.RequireFromString("0.1")}
	require.NoError(t, m.PutLedgerRecord(ctx, rec))

	dup := &model.LedgerRecord{ID: "rec-2", TxSignature: "sig-1"}
	err := m.PutLedgerRecord(ctx, dup)
	require.ErrorIs(t, err, apperr.ErrDuplicateSignature)

	// Records without a signature never collide.
	require.NoError(t, m.PutLedgerRecord(ctx, &model.LedgerRecord{ID: "rec-3"}))
	require.NoError(t, m.PutLedgerRecord(ctx, &model.LedgerRecord{ID: "rec-4"}))
}

func TestMemoryRecordPaymentAtomic(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	req := &model.PaymentRequest{ID: "req-1", Status: model.StatusCharging}
	require.NoError(t, m.PutRequest(ctx, req))
	require.NoError(t, m.PutLedgerRecord(ctx, &model.LedgerRecord{ID: "rec-0", TxSignature: "sig-1"}))

	// The ledger write fails on the duplicate signature, so the request
	// transition must not happen either.
	req.Status = model.StatusPaid
	err := m.RecordPayment(ctx, req, &model.LedgerRecord{ID: "rec-1", TxSignature: "sig-1"})
	require.ErrorIs(t, err, apperr.ErrDuplicateSignature)

	got, err := m.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCharging, got.Status)
}

func TestMemoryFreeUseCounterConcurrent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	const workers = 50

	counts := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := m.GetAndIncrementFreeUses(ctx, "owner-1", "basic")
			assert.NoError(t, err)
			counts <- n
		}()
	}
	wg.Wait()
	close(counts)

	seen := make(map[int]bool)
	for n := range counts {
		assert.False(t, seen[n], "count %d handed out twice", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
	assert.True(t, seen[1] && seen[workers])
}

func TestMemoryDecrementFreeUses(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	n, err := m.GetAndIncrementFreeUses(ctx, "owner-1", "basic")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Releasing the slot hands the same count back out.
	require.NoError(t, m.DecrementFreeUses(ctx, "owner-1", "basic"))
	n, err = m.GetAndIncrementFreeUses(ctx, "owner-1", "basic")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Decrementing past zero is a no-op, not a negative counter.
	require.NoError(t, m.DecrementFreeUses(ctx, "owner-2", "basic"))
	n, err = m.GetAndIncrementFreeUses(ctx, "owner-2", "basic")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryFreeUsesScopedByServiceClass(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	n, err := m.GetAndIncrementFreeUses(ctx, "owner-1", "basic")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = m.GetAndIncrementFreeUses(ctx, "owner-1", "premium")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = m.GetAndIncrementFreeUses(ctx, "owner-2", "basic")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
