package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kraken-ladder-go/internal/api/handlers"
	"kraken-ladder-go/internal/api/middleware"
	"kraken-ladder-go/internal/exchange"
	"kraken-ladder-go/internal/models"
	"kraken-ladder-go/internal/persistence"
	"kraken-ladder-go/internal/statemanager"
	"kraken-ladder-go/internal/submitter"
)

// Dependencies are everything the relay handlers need.
type Dependencies struct {
	Exchange  exchange.Exchange
	Prices    exchange.PriceFeed // optional, defaults to the exchange ticker
	Submitter *submitter.Submitter
	Catalog   handlers.Catalog
	Presets   persistence.PresetRepository // optional, disables /api/presets
	Session   *statemanager.StateManager   // optional, disables /api/session
	Server    models.ServerConfig
	Kraken    models.KrakenConfig
	Logger    *zap.Logger
}

// SetupRoutes builds the relay router.
//
//	/api/
//	├── POST /preview          ladder, summary and loss preview
//	├── POST /batch-order      regenerate and submit a ladder
//	├── POST /cancel-order     {txid}
//	├── POST /cancel-all
//	├── GET  /open-orders
//	├── GET  /ticker/{pair}
//	├── GET  /balances
//	├── POST /trade-balance    {asset}
//	├── GET  /instruments
//	├── GET|PUT|DELETE /presets[/{name}]
//	└── GET|PUT /session
//	/health, /metrics, static files
//
// Middleware order: Recovery, Logging, Metrics, CORS, NoCache.
func SetupRoutes(deps *Dependencies) *mux.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Metrics)
	router.Use(middleware.CORS(deps.Server.AllowedOrigin))
	router.Use(middleware.NoCache)

	ladderHandler := handlers.NewLadderHandler(deps.Catalog, logger)
	orderHandler := handlers.NewOrderHandler(deps.Exchange, deps.Submitter, deps.Catalog,
		deps.Kraken.ValidateOnly, deps.Kraken.ClientOrderIDs, logger)
	accountHandler := handlers.NewAccountHandler(deps.Exchange, deps.Prices, deps.Catalog)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/preview", ladderHandler.Preview).Methods(http.MethodPost)
	api.HandleFunc("/instruments", ladderHandler.Instruments).Methods(http.MethodGet)

	api.HandleFunc("/batch-order", orderHandler.BatchOrder).Methods(http.MethodPost)
	api.HandleFunc("/cancel-order", orderHandler.CancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/cancel-all", orderHandler.CancelAll).Methods(http.MethodPost)
	api.HandleFunc("/open-orders", orderHandler.OpenOrders).Methods(http.MethodGet)

	api.HandleFunc("/ticker/{pair}", accountHandler.Ticker).Methods(http.MethodGet)
	api.HandleFunc("/balances", accountHandler.Balances).Methods(http.MethodGet)
	api.HandleFunc("/trade-balance", accountHandler.TradeBalance).Methods(http.MethodPost)

	if deps.Presets != nil {
		presetHandler := handlers.NewPresetHandler(deps.Presets, deps.Catalog)
		api.HandleFunc("/presets", presetHandler.List).Methods(http.MethodGet)
		api.HandleFunc("/presets/{name}", presetHandler.Get).Methods(http.MethodGet)
		api.HandleFunc("/presets/{name}", presetHandler.Put).Methods(http.MethodPut)
		api.HandleFunc("/presets/{name}", presetHandler.Delete).Methods(http.MethodDelete)
	}

	if deps.Session != nil {
		sessionHandler := handlers.NewSessionHandler(deps.Session)
		api.HandleFunc("/session", sessionHandler.Get).Methods(http.MethodGet)
		api.HandleFunc("/session", sessionHandler.Put).Methods(http.MethodPut)
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Preflight requests would otherwise miss every method-restricted route
	// and skip the CORS middleware.
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if deps.Server.StaticDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(deps.Server.StaticDir)))
	}

	return router
}
