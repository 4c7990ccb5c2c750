// Package tokengate evaluates balance-threshold access checks. The
// verdicts are advisory access control over an eventually-consistent
// ledger, not a settlement guarantee: each member check may observe a
// slightly different block height.
package tokengate

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taskbay/walletcore/internal/chain"
	"github.com/taskbay/walletcore/internal/common"
	"github.com/taskbay/walletcore/internal/model"
)

// maxConcurrentChecks caps parallel balance reads per combinator call.
const maxConcurrentChecks = 8

// Gate evaluates TokenGateSpecs against on-chain balances.
type Gate struct {
	gw  chain.Gateway
	log *zap.Logger
}

// New creates a Gate.
func New(gw chain.Gateway, log *zap.Logger) *Gate {
	return &Gate{gw: gw, log: log.Named("tokengate")}
}

// Outcome is one spec's evaluation result. A transient fetch failure
// surfaces as Passed=false with Degraded set, never as an error: one
// degraded check must not sink an otherwise-passing ANY gate, and it
// correctly blocks an ALL gate.
type Outcome struct {
	Spec     model.TokenGateSpec
	Passed   bool
	Balance  decimal.Decimal
	Degraded bool
}

// Evaluate checks a single spec against the wallet's balance.
func (g *Gate) Evaluate(ctx context.Context, wallet solana.PublicKey, spec model.TokenGateSpec) Outcome {
	out := Outcome{Spec: spec}

	var units uint64
	var decimals uint8
	var err error

	if spec.AssetID == "" || spec.AssetID == "SOL" {
		decimals = common.SOLDecimals
		units, err = g.gw.NativeBalance(ctx, wallet)
	} else {
		decimals = spec.Decimals
		var mint solana.PublicKey
		mint, err = solana.PublicKeyFromBase58(spec.AssetID)
		if err == nil {
			units, err = g.gw.TokenBalance(ctx, wallet, mint)
		} else {
			err = fmt.Errorf("invalid asset id %q: %w", spec.AssetID, err)
		}
	}

	if err != nil {
		g.log.Warn("balance check degraded",
			zap.String("asset", spec.AssetID),
			zap.Stringer("wallet", wallet),
			zap.Error(err))
		out.Degraded = true
		return out
	}

	out.Balance = common.FromBaseUnits(units, decimals)
	out.Passed = out.Balance.GreaterThanOrEqual(spec.MinimumAmount)
	return out
}

// Any evaluates all specs concurrently and returns the first passing one,
// plus every outcome. Degraded checks are skipped, not failed.
func (g *Gate) Any(ctx context.Context, wallet solana.PublicKey, specs []model.TokenGateSpec) (*Outcome, []Outcome) {
	outcomes := g.evaluateAll(ctx, wallet, specs)
	for i := range outcomes {
		if outcomes[i].Passed {
			return &outcomes[i], outcomes
		}
	}
	return nil, outcomes
}

// All evaluates all specs concurrently and passes only when every spec
// passes. A degraded check blocks the gate.
func (g *Gate) All(ctx context.Context, wallet solana.PublicKey, specs []model.TokenGateSpec) (bool, []Outcome) {
	outcomes := g.evaluateAll(ctx, wallet, specs)
	for _, out := range outcomes {
		if !out.Passed {
			return false, outcomes
		}
	}
	return len(outcomes) > 0, outcomes
}

// evaluateAll fans the member checks out as independent reads.
func (g *Gate) evaluateAll(ctx context.Context, wallet solana.PublicKey, specs []model.TokenGateSpec) []Outcome {
	outcomes := make([]Outcome, len(specs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentChecks)
	for i, spec := range specs {
		i, spec := i, spec
		eg.Go(func() error {
			outcomes[i] = g.Evaluate(ctx, wallet, spec)
			return nil
		})
	}
	_ = eg.Wait() // member errors are folded into outcomes

	return outcomes
}
