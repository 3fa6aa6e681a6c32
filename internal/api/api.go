package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/VoiceForge-io/voiceforge/internal/auth"
	"github.com/VoiceForge-io/voiceforge/internal/config"
	"github.com/VoiceForge-io/voiceforge/internal/database"
	"github.com/VoiceForge-io/voiceforge/internal/models"
	"github.com/VoiceForge-io/voiceforge/internal/notify"
	"github.com/VoiceForge-io/voiceforge/internal/storage"
	"github.com/VoiceForge-io/voiceforge/internal/tts"
	"github.com/VoiceForge-io/voiceforge/internal/upgrade"
)

type Api struct {
	Config   config.Config
	Router   *chi.Mux
	tokens   *auth.TokenManager
	synth    tts.Synthesizer
	flow     *upgrade.Flow
	registry *notify.Registry
	store    *storage.S3Client // nil when object storage is disabled
}

// dbAccounts adapts the package-level account store to the upgrade flow.
type dbAccounts struct{}

func (dbAccounts) GetOrCreateAccount(uid string) (*models.Account, error) {
	return database.GetOrCreateAccount(uid)
}

func (dbAccounts) SetPlanPro(uid, orderID string) error {
	return database.SetPlanPro(uid, orderID)
}

// NewApi wires the router. provider may be nil-backed (unconfigured) and
// store may be nil; the corresponding endpoints then degrade gracefully.
func NewApi(cfg config.Config, synth tts.Synthesizer, provider upgrade.PaymentProvider, store *storage.S3Client) (*Api, error) {
	api := &Api{
		Config:   cfg,
		Router:   chi.NewRouter(),
		tokens:   auth.NewTokenManager(cfg.Auth.JWTSecret),
		synth:    synth,
		flow:     upgrade.NewFlow(provider, dbAccounts{}, cfg.PayPal.ProAmount, cfg.PayPal.Currency),
		registry: notify.NewRegistry(),
		store:    store,
	}

	// Account writes fan out to watchers as fresh snapshots.
	database.SetAccountNotifier(func(account models.Account) {
		api.registry.Publish(account.Snapshot(api.freeCap()))
	})

	api.setupRoutes()
	return api, nil
}

func (api *Api) setupRoutes() {
	r := api.Router

	allowOrigins := []string{"http://localhost:*", "http://127.0.0.1:*"}
	if api.Config.Auth.AllowOrigins != "" {
		allowOrigins = strings.Split(api.Config.Auth.AllowOrigins, ",")
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Heartbeat("/heartbeat"))

	// Public routes
	r.Post("/auth/register", api.RegisterHandler)
	r.Post("/auth/login", api.LoginHandler)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(api.tokens))

		r.Post("/generate-voice", api.GenerateVoiceHandler)

		r.Get("/account", api.GetAccountHandler)
		r.Get("/account/watch", api.WatchAccountHandler)

		r.Get("/history", api.ListHistoryHandler)
		r.Get("/history/{entryID}/audio", api.HistoryAudioHandler)
		r.Delete("/history/{entryID}", api.DeleteHistoryHandler)

		r.Get("/upgrade", api.GetUpgradeHandler)
		r.Post("/upgrade/orders", api.CreateUpgradeOrderHandler)
		r.Post("/upgrade/orders/{orderID}/capture", api.CaptureUpgradeHandler)
		r.Post("/upgrade/retry", api.RetryUpgradeHandler)
		r.Post("/upgrade/cancel", api.CancelUpgradeHandler)
	})
}

func (api *Api) freeCap() int64 {
	return int64(api.Config.Quota.FreeCap)
}

func (api *Api) Serve() error {
	addr := fmt.Sprintf(":%d", api.Config.APIPort)
	log.Printf("[API] Listening on %s", addr)
	return http.ListenAndServe(addr, api.Router)
}
