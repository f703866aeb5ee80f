package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dragon-bridge-community/community-api/internal/auth"
	"github.com/dragon-bridge-community/community-api/internal/ban"
	banrepo "github.com/dragon-bridge-community/community-api/internal/ban/repo"
	"github.com/dragon-bridge-community/community-api/internal/notification"
	notifrepo "github.com/dragon-bridge-community/community-api/internal/notification/repo"
	"github.com/dragon-bridge-community/community-api/internal/profile"
	profilerepo "github.com/dragon-bridge-community/community-api/internal/profile/repo"
	"github.com/dragon-bridge-community/community-api/internal/realtime"
	"github.com/dragon-bridge-community/community-api/internal/router"
	"github.com/dragon-bridge-community/community-api/internal/setting"
	settingrepo "github.com/dragon-bridge-community/community-api/internal/setting/repo"
	"github.com/dragon-bridge-community/community-api/pkg/database"
	"github.com/dragon-bridge-community/community-api/pkg/utilities"
)

func main() {
	// best-effort: without a .env the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting community-api")

	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	db := sqlx.NewDb(sqlDB, "postgres")
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if os.Getenv("DB_BOOTSTRAP") == "1" {
		if err := bootstrap(ctx, db); err != nil {
			sugar.Fatalf("db bootstrap: %v", err)
		}
		sugar.Info("database bootstrap complete")
	}

	rtCfg := realtime.ConfigFromEnv()
	bus, err := realtime.Open(ctx, rtCfg, cfg.DSN, sugar)
	if err != nil {
		sugar.Fatalf("open realtime driver %s: %v", rtCfg.Driver, err)
	}
	sugar.Infow("realtime driver ready", "driver", rtCfg.Driver)

	agg := notification.NewAggregator(notifrepo.NewCountRepo(db), bus, sugar)
	if err := agg.Start(ctx); err != nil {
		sugar.Fatalf("start notification aggregator: %v", err)
	}

	secret := auth.SecretFromEnv()
	if secret == "" {
		sugar.Warn("JWT_SECRET is empty; every bearer token will be rejected")
	}

	pool := database.NewPool()
	handler := router.RegisterRoutes(sugar, router.Deps{
		Verifier:       auth.NewVerifier(secret),
		Authors:        profile.NewHandler(profile.NewResolver(profilerepo.NewProfileRepo(db), sugar), sugar),
		Notifications:  notification.NewHandler(agg, sugar),
		Bans:           ban.NewHandler(ban.NewChecker(banrepo.NewBanRepo(db), sugar), sugar),
		MapsKey:        setting.NewHandler(sugar, setting.PoolConnector(pool)),
		AllowedOrigins: allowedOrigins(),
		Ping:           db.PingContext,
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", addr)

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	agg.Stop()
	shutdown(sugar, "realtime driver", bus.Close)
	shutdown(sugar, "service pool", pool.Close)

	sugar.Info("goodbye")
}

// bootstrap creates the tables and change triggers a fresh development
// database needs.
func bootstrap(ctx context.Context, db *sqlx.DB) error {
	if err := settingrepo.NewRepo(db).EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure site_settings: %w", err)
	}
	return realtime.EnsureTriggers(ctx, db,
		notification.ServicesTable,
		notification.UsersTable,
		notification.EventsTable,
		ban.BansTable,
	)
}

func allowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func shutdown(sugar *zap.SugaredLogger, what string, fn func() error) {
	if err := fn(); err != nil {
		sugar.Warnw("close failed", "component", what, "err", err)
	}
}
