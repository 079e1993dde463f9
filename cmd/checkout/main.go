package main

import (
	"net/http"

	"github.com/bullionworks/checkout/config"
	"github.com/bullionworks/checkout/internal/checkout"
	"github.com/bullionworks/checkout/internal/db"
	"github.com/bullionworks/checkout/internal/handlers"
	"github.com/bullionworks/checkout/internal/middleware"
	"github.com/bullionworks/checkout/internal/rails"
	"github.com/bullionworks/checkout/logging"
	"github.com/go-chi/chi/v5"
)

func main() {
	logger := logging.GetSugaredLogger()
	defer logger.Sync()

	cfg := config.GetConfig()

	database, err := db.NewManager(cfg)
	if err != nil {
		logger.Fatal(err)
	}
	defer database.Close()

	orchestrator := &checkout.Orchestrator{
		Database: database,
		Ledger:   rails.NewLedgerClient(cfg.LedgerAddress, cfg.RailRequestTimeout, logger),
		Ach:      rails.NewAchClient(cfg.AchProviderAddress, cfg.RailRequestTimeout, logger),
		Cards:    rails.NewCardClient(cfg.CardProcessorAddress, cfg.RailRequestTimeout, logger),
		WireDesk: rails.NewWireDeskClient(cfg.WireDeskAddress, cfg.RailRequestTimeout, logger),
		Logger:   logger,
	}

	h := handlers.Handler{
		Database:     database,
		Logger:       logger,
		Orchestrator: orchestrator,
		Sessions:     checkout.NewStore(),
	}

	r := initRouter(h)

	err = http.ListenAndServe(cfg.RunAddress, r)
	logger.Fatalw("failed to start server", "error", err)
}

func initRouter(h handlers.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Post(`/api/checkout`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.StartCheckout),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
				middleware.RequireJSON,
				middleware.ValidateAuth,
			).ServeHTTP(w, r)
		},
	)
	r.Post(`/api/checkout/{sessionID}/confirm`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.ConfirmCart),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
				middleware.ValidateAuth,
			).ServeHTTP(w, r)
		},
	)
	r.Post(`/api/checkout/{sessionID}/pay`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.Pay),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
				middleware.RequireJSON,
				middleware.ValidateAuth,
			).ServeHTTP(w, r)
		},
	)
	r.Post(`/api/checkout/{sessionID}/card`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.CardConfirm),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
				middleware.RequireJSON,
				middleware.ValidateAuth,
			).ServeHTTP(w, r)
		},
	)
	r.Post(`/api/checkout/{sessionID}/ack`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.Acknowledge),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
				middleware.ValidateAuth,
			).ServeHTTP(w, r)
		},
	)
	r.Delete(`/api/checkout/{sessionID}`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.Abandon),
				h.Logger,
				middleware.ValidateAuth,
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/api/customer/orders`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.OrdersGet),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
				middleware.ValidateAuth,
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/api/customer/orders/{orderID}`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.OrderGet),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
				middleware.ValidateAuth,
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/api/customer/funding`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.Funding),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
				middleware.ValidateAuth,
			).ServeHTTP(w, r)
		},
	)
	return r
}
