package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taskbay/walletcore/internal/apperr"
	"github.com/taskbay/walletcore/internal/model"
)

// Redis is a Store backed by a shared redis instance, for deployments
// where several service replicas serve the same owners. The free-use
// counter is a plain INCR, atomic by redis semantics; ledger signature
// uniqueness rides on SETNX.
type Redis struct {
	client *redis.Client
}

var _ Store = (*Redis)(nil)

// NewRedis creates a redis-backed store and verifies connectivity.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

// Close releases the underlying redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func walletKey(ownerID string) string { return "wallet:" + ownerID }
func requestKey(id string) string     { return "payreq:" + id }
func ledgerKey(id string) string      { return "ledger:" + id }
func sigKey(sig string) string        { return "ledger:sig:" + sig }
func freeUseKey(o, c string) string   { return "freeuse:" + o + ":" + c }

// walletDoc is the storage shape of a managed wallet. ManagedWallet hides
// the ciphertext from API serialization, so persistence spells the fields
// out explicitly.
type walletDoc struct {
	OwnerID         string `json:"ownerId"`
	Address         string `json:"address"`
	EncryptedSecret string `json:"encryptedSecret"`
	CreatedAt       string `json:"createdAt"`
}

func (r *Redis) GetWallet(ctx context.Context, ownerID string) (*model.ManagedWallet, error) {
	doc, err := getJSON[walletDoc](ctx, r.client, walletKey(ownerID), "wallet for owner "+ownerID)
	if err != nil {
		return nil, err
	}
	return &model.ManagedWallet{
		OwnerID:         doc.OwnerID,
		Address:         doc.Address,
		EncryptedSecret: doc.EncryptedSecret,
		CreatedAt:       doc.CreatedAt,
	}, nil
}

func (r *Redis) PutWallet(ctx context.Context, w *model.ManagedWallet) error {
	raw, err := json.Marshal(walletDoc{
		OwnerID:         w.OwnerID,
		Address:         w.Address,
		EncryptedSecret: w.EncryptedSecret,
		CreatedAt:       w.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode wallet: %w", err)
	}
	ok, err := r.client.SetNX(ctx, walletKey(w.OwnerID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store wallet: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: owner %s", apperr.ErrWalletExists, w.OwnerID)
	}
	return nil
}

func (r *Redis) GetRequest(ctx context.Context, id string) (*model.PaymentRequest, error) {
	return getJSON[model.PaymentRequest](ctx, r.client, requestKey(id), "payment request "+id)
}

func (r *Redis) PutRequest(ctx context.Context, req *model.PaymentRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	if err := r.client.Set(ctx, requestKey(req.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store request: %w", err)
	}
	return nil
}

func (r *Redis) GetAndIncrementFreeUses(ctx context.Context, ownerID, serviceClass string) (int, error) {
	count, err := r.client.Incr(ctx, freeUseKey(ownerID, serviceClass)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: free-use increment failed: %v", apperr.ErrQuotaRace, err)
	}
	return int(count), nil
}

func (r *Redis) DecrementFreeUses(ctx context.Context, ownerID, serviceClass string) error {
	if err := r.client.Decr(ctx, freeUseKey(ownerID, serviceClass)).Err(); err != nil {
		return fmt.Errorf("%w: free-use decrement failed: %v", apperr.ErrQuotaRace, err)
	}
	return nil
}

func (r *Redis) PutLedgerRecord(ctx context.Context, rec *model.LedgerRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode ledger record: %w", err)
	}

	if rec.TxSignature != "" {
		ok, err := r.client.SetNX(ctx, sigKey(rec.TxSignature), rec.ID, 0).Result()
		if err != nil {
			return fmt.Errorf("failed to reserve signature: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", apperr.ErrDuplicateSignature, rec.TxSignature)
		}
	}

	if err := r.client.Set(ctx, ledgerKey(rec.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store ledger record: %w", err)
	}
	return nil
}

// RecordPayment writes the ledger record, then the request transition, in
// one pipeline after the signature reservation succeeds. A replica crash
// between the two writes leaves the request in Charging, which the
// orchestrator reconciles on next access against the already-reserved
// signature.
func (r *Redis) RecordPayment(ctx context.Context, req *model.PaymentRequest, rec *model.LedgerRecord) error {
	if err := r.PutLedgerRecord(ctx, rec); err != nil {
		return err
	}
	return r.PutRequest(ctx, req)
}

func getJSON[T any](ctx context.Context, client *redis.Client, key, what string) (*T, error) {
	raw, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", what, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", what, err)
	}
	return &out, nil
}
