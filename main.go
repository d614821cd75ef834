package main

import (
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/config"
	"github.com/username/fxportal/src/database"
	"github.com/username/fxportal/src/handlers"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/metrics"
	"github.com/username/fxportal/src/pdfexport"
	"github.com/username/fxportal/src/security"
	"github.com/username/fxportal/src/services"
	"github.com/username/fxportal/src/store"
	"golang.org/x/time/rate"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("FX portal server starting...")

	keys, err := security.DeriveKeys(config.Cfg.SessionSecret)
	if err != nil {
		logger.L.Error("SESSION_SECRET configuration invalid.", "error", err)
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)

	m := metrics.New()

	backend, err := apiclient.New(apiclient.Options{
		BaseURL:       config.Cfg.BackendBaseURL,
		Timeout:       config.Cfg.BackendTimeout,
		RatePerSecond: config.Cfg.BackendRatePerSecond,
		Burst:         config.Cfg.BackendBurst,
		Metrics:       m,
	})
	if err != nil {
		logger.L.Error("Backend client configuration invalid.", "error", err)
		os.Exit(1)
	}

	authService := services.NewAuthService(backend, database.DB, config.Cfg.SessionExpiry)
	orderService := services.NewOrderService(backend, authService, config.Cfg.MaxUploadSizeBytes)
	dashboardService := services.NewDashboardService(backend, authService, config.Cfg.MaxUploadSizeBytes)
	tcaService := services.NewTCAService(backend, authService, dashboardService)
	tcaService.SetReportExpiration(config.Cfg.ReportCacheExpiration)
	invoiceService := services.NewInvoiceService(backend, authService, config.Cfg.MaxUploadSizeBytes)
	profileService := services.NewProfileService(backend, authService, config.Cfg.MaxAvatarSizeBytes)

	janitor := services.NewJanitor(authService, m)
	if err := janitor.Schedule(config.Cfg.SessionCleanupSchedule); err != nil {
		logger.L.Error("Session cleanup schedule invalid.", "error", err)
		os.Exit(1)
	}
	janitor.Start()
	defer janitor.Stop()

	router := handlers.NewRouter(handlers.RouterConfig{
		Auth:      authService,
		Orders:    orderService,
		Dashboard: dashboardService,
		TCA:       tcaService,
		Invoices:  invoiceService,
		Profile:   profileService,

		Registry: store.NewRegistry(store.DefaultWorkspaceExpiration, store.WorkspaceCleanupInterval),
		Sessions: security.NewSessionTokens(keys.Session, config.Cfg.SessionExpiry),
		CSRF:     security.NewCSRF(keys.CSRF),
		Metrics:  m,
		Limiter:  rate.NewLimiter(rate.Every(100*time.Millisecond), 30),

		AdminRole:      config.Cfg.AdminRole,
		AllowedOrigins: config.Cfg.AllowedOrigins,
		SecureCookies:  config.Cfg.SecureCookies,
		MaxUploadSize:  config.Cfg.MaxUploadSizeBytes,
		MaxAvatarSize:  config.Cfg.MaxAvatarSizeBytes,
		PDF: pdfexport.Options{
			Format:      config.Cfg.PDFPageFormat,
			Orientation: config.Cfg.PDFOrientation,
		},
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr, "backend", config.Cfg.BackendBaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
