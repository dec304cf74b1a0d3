package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/getarx/arx/api"
	"github.com/getarx/arx/arxgorm"
	"github.com/getarx/arx/auth"
	"github.com/getarx/arx/config"
	"github.com/getarx/arx/credential"
	"github.com/getarx/arx/domain"
	"github.com/getarx/arx/guard"
	"github.com/getarx/arx/ledger"
	"github.com/getarx/arx/logger"
	"github.com/getarx/arx/policy"
	"github.com/getarx/arx/ratelimit"
	"github.com/getarx/arx/tenant"
	"github.com/getarx/arx/token"
)

// logNotifier writes verification emails to the log. Deployments replace
// it with a real dispatcher implementing domain.Notifier.
type logNotifier struct {
	log *zap.Logger
}

func (n *logNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.log.Info("notification dispatched",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

func newResolver(cfg *config.Config) tenant.Resolver {
	switch cfg.TenantResolution {
	case "subdomain":
		return tenant.NewSubdomainResolver(cfg.BaseDomain)
	case "static":
		return tenant.NewStaticResolver(cfg.StaticTenantID)
	default:
		return tenant.NewHeaderResolver("")
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	logger.Log.Info("Starting Arx Identity Service",
		zap.Int("port", cfg.Port),
		zap.String("db", cfg.DBType),
	)

	repo, err := arxgorm.Open(cfg.DBType, cfg.DSN, nil)
	if err != nil {
		logger.Log.Fatal("failed to open database", zap.Error(err))
	}
	if !cfg.SkipAutoMigrate {
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	issuer := token.NewIssuer(token.Config{
		AccessSecret: []byte(cfg.AccessTokenSecret),
		AccessTTL:    cfg.AccessTokenTTL,
		RefreshTTL:   cfg.RefreshTokenTTL,
	})
	hasher := credential.NewBcryptHasher(cfg.BcryptCost)
	sessions := ledger.New(repo, hasher, cfg.SessionCap)
	if cfg.RefreshTokenSecret != "" {
		sessions.SetPepper([]byte(cfg.RefreshTokenSecret))
	}

	limiter := ratelimit.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go limiter.PruneLoop(ctx, cfg.VerificationCodeTTL)

	authSvc := auth.NewService(repo, sessions, issuer, hasher,
		auth.WithNotifier(&logNotifier{log: logger.Log}),
		auth.WithRateLimiter(limiter),
		auth.WithAuditStore(repo),
		auth.WithLogger(logger.Log),
		auth.WithDefaultRole(cfg.DefaultRole),
		auth.WithCodeTTL(cfg.VerificationCodeTTL),
	)

	engine := policy.NewEngine(repo)
	if err := engine.Load(ctx); err != nil {
		logger.Log.Fatal("failed to compile policy view", zap.Error(err))
	}
	policies := policy.NewManager(repo, engine)
	policies.SetAuditStore(repo)
	policies.SetLogger(logger.Log)

	var tenants *tenant.Manager
	if cfg.TenantResolution == "static" && cfg.StaticTenantID != "" {
		tenants = tenant.NewManager(repo, newResolver(cfg), tenant.WithDefaultTenant(cfg.StaticTenantID))
		ensureStaticTenant(ctx, repo, cfg.StaticTenantID)
	} else {
		tenants = tenant.NewManager(repo, newResolver(cfg))
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler(logger.Log)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h := api.NewHandler(authSvc, guard.New(issuer, engine), policies, tenants, repo, repo)
	h.RegisterRoutes(e.Group("/api/v1"))

	logger.Log.Info("Server is starting", zap.Int("port", cfg.Port))
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server failed to start", zap.Error(err))
	}
}

// ensureStaticTenant creates the configured tenant on first boot so
// single-tenant deployments work without an admin bootstrap call.
func ensureStaticTenant(ctx context.Context, repo *arxgorm.Repository, id string) {
	if _, err := repo.GetTenant(ctx, id); err == nil {
		return
	}
	t := domain.NewTenant(id, id, "")
	if err := repo.CreateTenant(ctx, t); err != nil {
		logger.Log.Warn("failed to seed static tenant", zap.Error(err))
	}
}
