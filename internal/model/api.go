package model

// API request/response shapes for the JSON-over-HTTP boundary with the
// UI/CRUD layer.

// CreateDemandRequest asks for an x402 payment demand.
type CreateDemandRequest struct {
	OwnerID string `json:"ownerId" validate:"required"`
	Amount  string `json:"amount" validate:"required"`
	Asset   string `json:"asset"`
	// AssetDecimals is required when Asset is a mint other than the
	// platform's; the server does not guess token precision.
	AssetDecimals *uint8 `json:"assetDecimals,omitempty"`
	Recipient     string `json:"recipient" validate:"required"`
	Memo          string `json:"memo"`
}

// CreateDemandResponse is returned with HTTP status 402.
type CreateDemandResponse struct {
	UnsignedTxBase64 string       `json:"unsignedTxBase64"`
	Terms            PaymentTerms `json:"terms"`
}

// PaymentTerms is the machine-readable "payment required" half of the x402
// handshake handed to an external signer.
type PaymentTerms struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	PayTo             string `json:"payTo"`
	Asset             string `json:"asset"`
	Memo              string `json:"memo,omitempty"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
}

// VerifyPaymentRequest presents a claimed payment for on-chain verification.
type VerifyPaymentRequest struct {
	Signature         string `json:"signature" validate:"required"`
	ExpectedAmount    string `json:"expectedAmount" validate:"required"`
	ExpectedRecipient string `json:"expectedRecipient" validate:"required"`
	Asset             string `json:"asset"`
	// AssetDecimals carries the token precision for mints other than the
	// platform's, same contract as CreateDemandRequest.
	AssetDecimals *uint8 `json:"assetDecimals,omitempty"`
}

// VerifyPaymentResponse reports the verification verdict.
type VerifyPaymentResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// PayRequest drives the custodial pay flow for an existing payment request.
type PayRequest struct {
	RequestID string `json:"requestId" validate:"required"`
	OwnerID   string `json:"ownerId" validate:"required"`
}

// PayResponse reports the terminal state the request reached.
type PayResponse struct {
	Status      PaymentStatus `json:"status"`
	TxSignature string        `json:"txSignature,omitempty"`
}

// TokenGateCheckRequest evaluates threshold specs against an owner's wallet.
type TokenGateCheckRequest struct {
	OwnerID string          `json:"ownerId" validate:"required"`
	Mode    string          `json:"mode" validate:"omitempty,oneof=any all"`
	Specs   []TokenGateSpec `json:"specs" validate:"required,min=1,dive"`
}

// TokenGateCheckResponse reports the aggregate verdict and each spec's
// observed balance.
type TokenGateCheckResponse struct {
	HasAccess bool          `json:"hasAccess"`
	Balances  []SpecBalance `json:"perSpecBalances"`
}

// SpecBalance is one spec's evaluation outcome.
type SpecBalance struct {
	AssetID string `json:"assetId"`
	Passed  bool   `json:"passed"`
	Balance string `json:"balance"`
}

// ProvisionResponse returns the managed wallet's public half.
type ProvisionResponse struct {
	Address string `json:"address"`
	QR      string `json:"qr"` // base64 PNG of the deposit address
	Created bool   `json:"created"`
}

// BalanceResponse reports a managed wallet's balances in UI units.
type BalanceResponse struct {
	Address string `json:"address"`
	SOL     string `json:"sol"`
	Token   string `json:"token,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
}
