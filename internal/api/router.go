package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/taskbay/walletcore/internal/handler"
)

// Handlers bundles the endpoint handlers the router mounts.
type Handlers struct {
	Payment   *handler.PaymentHandler
	Wallet    *handler.WalletHandler
	TokenGate *handler.TokenGateHandler
}

// SetupRouter mounts all routes.
func SetupRouter(h Handlers, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Payment endpoints
	mux.HandleFunc("/payment/request", h.Payment.CreateRequest)
	mux.HandleFunc("/payment/create", h.Payment.CreateDemand)
	mux.HandleFunc("/payment/verify", h.Payment.Verify)

	// Wallet endpoints
	mux.HandleFunc("/wallet/provision", h.Wallet.Provision)
	mux.HandleFunc("/wallet/balance", h.Wallet.Balance)
	mux.HandleFunc("/wallet/pay", h.Payment.Pay)

	// Token gate
	mux.HandleFunc("/token-gate/check", h.TokenGate.Check)

	// Metrics
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}
