package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/curio/marketplace-engine/internal/asset"
	"github.com/curio/marketplace-engine/internal/config"
	"github.com/curio/marketplace-engine/internal/event"
	"github.com/curio/marketplace-engine/internal/httpapi"
	"github.com/curio/marketplace-engine/internal/market"
	"github.com/curio/marketplace-engine/internal/metrics"
	"github.com/curio/marketplace-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration failed", "err", err)
		os.Exit(1)
	}

	// --- Initialize journal ---
	var journal store.Journal
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		journal = store.NewPostgresJournal(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			journal = store.NewCachedJournal(journal, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory journal (trade feed will not persist)")
		journal = store.NewMemoryJournal()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Asset ledgers ---
	// In-memory ledgers for single-instance deployments; swap in chain
	// or custodial adapters for production asset backing.
	bank := asset.NewMemoryBank()
	items := asset.NewMemoryItems()
	dir := asset.NewMemoryDirectory()
	slog.Warn("using in-memory payment and item ledgers")

	// --- WebSocket hub ---
	wsHub := httpapi.NewWSHub()
	go wsHub.Run()

	// --- Trading engine ---
	sink := event.MultiSink{wsHub, store.NewRecorder(journal, logger)}
	engine, err := market.New(bank, items, dir, sink, market.Config{
		Account:              cfg.EngineAccount,
		Admin:                cfg.AdminAccount,
		PrimaryFeePerMille:   cfg.PrimaryFeePerMille,
		SecondaryFeePerMille: cfg.SecondaryFeePerMille,
		MinAuctionDuration:   cfg.MinAuctionDuration,
		MaxAuctionDuration:   cfg.MaxAuctionDuration,
		SnipeWindow:          cfg.SnipeWindow,
	})
	if err != nil {
		slog.Error("engine configuration rejected", "err", err)
		os.Exit(1)
	}

	svc := httpapi.NewService(engine, journal)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"marketplace-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time trade events.
		r.Get("/ws", wsHub.HandleWS)

		// Fixed-price listings.
		r.Post("/listings", svc.CreateListing)
		r.Get("/registries/{registry}/items/{itemID}/listings/{seller}", svc.GetListing)
		r.Delete("/registries/{registry}/items/{itemID}/listings/{seller}", svc.RemoveListing)
		r.Post("/buy", svc.ExecuteBuy)
		r.Post("/buy/batch", svc.ExecuteBatchBuy)

		// Auctions.
		r.Post("/auctions", svc.CreateAuction)
		r.Get("/auctions/{auctionID}", svc.GetAuction)
		r.Post("/auctions/{auctionID}/bids", svc.PlaceBid)
		r.Post("/auctions/{auctionID}/settle", svc.SettleAuction)
		r.Post("/auctions/{auctionID}/cancel", svc.CancelAuction)

		// Offers.
		r.Post("/offers", svc.MakeOffer)
		r.Get("/offers/{offerID}", svc.GetOffer)
		r.Post("/offers/{offerID}/accept", svc.AcceptOffer)
		r.Post("/offers/{offerID}/reject", svc.RejectOffer)
		r.Post("/offers/{offerID}/cancel", svc.CancelOffer)

		// Queries.
		r.Get("/registries", svc.ListRegistries)
		r.Get("/registries/{registry}/items/{itemID}/offers", svc.OffersByItem)
		r.Get("/accounts/{account}/listings", svc.ListingsByOwner)
		r.Get("/accounts/{account}/offers", svc.OffersByAccount)

		// Trade feed.
		r.Get("/feed", svc.RecentFeed)
		r.Get("/registries/{registry}/items/{itemID}/feed", svc.ItemFeed)
		r.Get("/accounts/{account}/feed", svc.AccountFeed)

		// Admin surface.
		r.Post("/admin/registries", svc.RegisterRegistry)
		r.Post("/admin/fees", svc.SetFees)
		r.Post("/admin/auction-bounds", svc.SetAuctionBounds)
		r.Post("/admin/snipe-window", svc.SetSnipeWindow)
		r.Post("/admin/withdraw", svc.Withdraw)
		r.Get("/admin/revenue", svc.Revenue)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("marketplace-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down marketplace-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("marketplace-engine stopped")
}
