package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskbay/walletcore/internal/apperr"
	"github.com/taskbay/walletcore/internal/model"
)

// Memory is an in-process Store for tests and single-node development.
// One mutex covers every map, which trivially gives the atomicity the
// contract demands.
type Memory struct {
	mu       sync.Mutex
	wallets  map[string]model.ManagedWallet
	requests map[string]model.PaymentRequest
	ledger   map[string]model.LedgerRecord // keyed by record id
	sigIndex map[string]string             // txSignature -> record id
	freeUses map[string]int                // ownerID|serviceClass -> count
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		wallets:  make(map[string]model.ManagedWallet),
		requests: make(map[string]model.PaymentRequest),
		ledger:   make(map[string]model.LedgerRecord),
		sigIndex: make(map[string]string),
		freeUses: make(map[string]int),
	}
}

func (m *Memory) GetWallet(_ context.Context, ownerID string) (*model.ManagedWallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[ownerID]
	if !ok {
		return nil, fmt.Errorf("%w: wallet for owner %s", apperr.ErrNotFound, ownerID)
	}
	return &w, nil
}

func (m *Memory) PutWallet(_ context.Context, w *model.ManagedWallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.wallets[w.OwnerID]; ok {
		return fmt.Errorf("%w: owner %s", apperr.ErrWalletExists, w.OwnerID)
	}
	m.wallets[w.OwnerID] = *w
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*model.PaymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment request %s", apperr.ErrNotFound, id)
	}
	return &r, nil
}

func (m *Memory) PutRequest(_ context.Context, r *model.PaymentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = *r
	return nil
}

func (m *Memory) GetAndIncrementFreeUses(_ context.Context, ownerID, serviceClass string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ownerID + "|" + serviceClass
	m.freeUses[key]++
	return m.freeUses[key], nil
}

func (m *Memory) DecrementFreeUses(_ context.Context, ownerID, serviceClass string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ownerID + "|" + serviceClass
	if m.freeUses[key] > 0 {
		m.freeUses[key]--
	}
	return nil
}

func (m *Memory) PutLedgerRecord(_ context.Context, rec *model.LedgerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLedgerLocked(rec)
}

func (m *Memory) RecordPayment(_ context.Context, r *model.PaymentRequest, rec *model.LedgerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.putLedgerLocked(rec); err != nil {
		return err
	}
	m.requests[r.ID] = *r
	return nil
}

func (m *Memory) putLedgerLocked(rec *model.LedgerRecord) error {
	if rec.TxSignature != "" {
		if _, ok := m.sigIndex[rec.TxSignature]; ok {
			return fmt.Errorf("%w: %s", apperr.ErrDuplicateSignature, rec.TxSignature)
		}
		m.sigIndex[rec.TxSignature] = rec.ID
	}
	m.ledger[rec.ID] = *rec
	return nil
}

// LedgerRecords returns a copy of all records. Test helper.
func (m *Memory) LedgerRecords() []model.LedgerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.LedgerRecord, 0, len(m.ledger))
	for _, rec := range m.ledger {
		out = append(out, rec)
	}
	return out
}
