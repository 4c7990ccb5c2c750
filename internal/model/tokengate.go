package model

import "github.com/shopspring/decimal"

// TokenGateSpec is a balance-threshold predicate: does the wallet hold at
// least MinimumAmount (in UI units) of the asset. AssetID is the token mint
// in base58, or "SOL" for the native asset. Pure value type.
type TokenGateSpec struct {
	AssetID       string          `json:"assetId" validate:"required"`
	MinimumAmount decimal.Decimal `json:"minimumAmount" validate:"required"`
	Decimals      uint8           `json:"decimals"`
}
