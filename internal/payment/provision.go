package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/taskbay/walletcore/internal/apperr"
	"github.com/taskbay/walletcore/internal/common"
	"github.com/taskbay/walletcore/internal/model"
	"github.com/taskbay/walletcore/internal/signer"
)

// Provisioned is the public half of a managed wallet plus a deposit QR.
type Provisioned struct {
	Wallet  *model.ManagedWallet
	QR      string // base64 PNG of the address
	Created bool
}

// EnsureWallet returns the owner's managed wallet, creating it on first
// use. At most one wallet exists per owner; a concurrent first call loses
// the PutWallet race and reads back the winner's wallet.
func (o *Orchestrator) EnsureWallet(ctx context.Context, ownerID string) (*Provisioned, error) {
	existing, err := o.store.GetWallet(ctx, ownerID)
	if err == nil {
		qr, qerr := addressQR(existing.Address)
		if qerr != nil {
			return nil, qerr
		}
		return &Provisioned{Wallet: existing, QR: qr}, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	address, secret, err := o.vault.Generate()
	if err != nil {
		return nil, err
	}
	defer signer.Zero(secret)

	ciphertext, err := o.vault.Encrypt(secret)
	if err != nil {
		return nil, err
	}

	wallet := &model.ManagedWallet{
		OwnerID:         ownerID,
		Address:         address.String(),
		EncryptedSecret: ciphertext,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
	}

	if err := o.store.PutWallet(ctx, wallet); err != nil {
		if errors.Is(err, apperr.ErrWalletExists) {
			winner, gerr := o.store.GetWallet(ctx, ownerID)
			if gerr != nil {
				return nil, gerr
			}
			qr, qerr := addressQR(winner.Address)
			if qerr != nil {
				return nil, qerr
			}
			return &Provisioned{Wallet: winner, QR: qr}, nil
		}
		return nil, err
	}

	qr, err := addressQR(wallet.Address)
	if err != nil {
		return nil, err
	}

	o.log.Info("managed wallet provisioned",
		zap.String("owner", ownerID),
		zap.String("address", wallet.Address))
	return &Provisioned{Wallet: wallet, QR: qr, Created: true}, nil
}

// Balance reports the owner's wallet balances in UI units.
func (o *Orchestrator) Balance(ctx context.Context, ownerID string) (*model.BalanceResponse, error) {
	wallet, err := o.store.GetWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	addr, err := wallet.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("stored wallet address is invalid: %w", err)
	}

	lamports, err := o.gw.NativeBalance(ctx, addr)
	if err != nil {
		return nil, err
	}

	resp := &model.BalanceResponse{
		Address: wallet.Address,
		SOL:     common.FormatBaseUnits(lamports, common.SOLDecimals),
	}

	if !o.settings.Asset.IsNative() {
		tokens, err := o.gw.TokenBalance(ctx, addr, o.settings.Asset.Mint)
		if err != nil {
			return nil, err
		}
		resp.Token = common.FormatBaseUnits(tokens, o.settings.Asset.Decimals)
		resp.Symbol = o.settings.Asset.Symbol
	}
	return resp, nil
}

// addressQR renders the deposit address as a base64 PNG.
func addressQR(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to render QR code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
