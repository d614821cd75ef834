package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/username/fxportal/src/metrics"
	"github.com/username/fxportal/src/pdfexport"
	"github.com/username/fxportal/src/security"
	"github.com/username/fxportal/src/services"
	"github.com/username/fxportal/src/store"
	"golang.org/x/time/rate"
)

// RouterConfig carries everything the portal routes need.
type RouterConfig struct {
	Auth      *services.AuthService
	Orders    *services.OrderService
	Dashboard *services.DashboardService
	TCA       *services.TCAService
	Invoices  *services.InvoiceService
	Profile   *services.ProfileService

	Registry *store.Registry
	Sessions *security.SessionTokens
	CSRF     *security.CSRF
	Metrics  *metrics.Metrics
	Limiter  *rate.Limiter

	AdminRole      string
	AllowedOrigins []string
	SecureCookies  bool
	MaxUploadSize  int64
	MaxAvatarSize  int64
	PDF            pdfexport.Options
}

// NewRouter builds the portal router: public pages and auth endpoints, then the
// ProtectedRoute and AdminRoute groups for pages and their API counterparts.
func NewRouter(cfg RouterConfig) http.Handler {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)
	}

	sessions := NewSessions(cfg.Auth, cfg.Registry, cfg.Sessions, cfg.SecureCookies)
	guards := NewGuards(cfg.Auth, cfg.Metrics, cfg.AdminRole)
	csrf := NewCSRFHandler(cfg.CSRF, cfg.SecureCookies)

	authHandler := NewAuthHandler(cfg.Auth, cfg.TCA, sessions, cfg.AdminRole)
	passwordHandler := NewPasswordHandler(cfg.Auth)
	orderHandler := NewOrderHandler(cfg.Orders)
	dashboardHandler := NewDashboardHandler(cfg.Dashboard)
	tcaHandler := NewTCAHandler(cfg.TCA, cfg.PDF)
	invoiceHandler := NewInvoiceHandler(cfg.Invoices)
	profileHandler := NewProfileHandler(cfg.Profile)
	uploadHandler := NewUploadHandler(cfg.Orders, cfg.TCA, cfg.Profile, cfg.Invoices, cfg.MaxUploadSize, cfg.MaxAvatarSize)
	pageHandler := NewPageHandler(cfg.Orders, cfg.Dashboard, cfg.TCA, cfg.Invoices, cfg.Profile, cfg.AdminRole)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(ContextualLoggerMiddleware)
	r.Use(ProxyHeadersMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", csrfHeaderName, "X-Requested-With"},
		ExposedHeaders:   []string{csrfHeaderName, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(cfg.Metrics.Middleware)
	r.Use(RateLimitMiddleware(limiter))

	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)

		// Public pages
		r.Get("/", pageHandler.Home)
		r.Get("/login", pageHandler.Login)
		r.Get("/page-register", pageHandler.Register)
		r.Get("/forgot-password", pageHandler.ForgotPassword)

		// ProtectedRoute pages
		r.Group(func(r chi.Router) {
			r.Use(guards.ProtectedRoute)
			r.Get("/dashboard", pageHandler.Dashboard)
			r.Get("/tca", pageHandler.TCA)
			r.Get("/tca/pdf", tcaHandler.HandleExportPDF)
			r.Get("/order", pageHandler.Order)
			r.Get("/simulation", pageHandler.Simulation)
			r.Get("/edit-profile", pageHandler.EditProfile)
			r.Get("/checkout", pageHandler.Checkout)
			r.Get("/invoice/{id}", pageHandler.Invoice)
			r.Get("/email-inbox", pageHandler.EmailInbox)
		})

		// AdminRoute pages
		r.Group(func(r chi.Router) {
			r.Use(guards.AdminRoute)
			r.Get("/admin/orders", pageHandler.AdminOrders)
			r.Get("/admin/invoices", pageHandler.AdminInvoices)
			r.Get("/admin/clients", pageHandler.AdminClients)
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/auth/csrf", csrf.GetCSRFToken)
			r.Get("/auth/me", authHandler.MeHandler)

			r.Group(func(r chi.Router) {
				r.Use(csrf.Middleware)

				r.Post("/auth/login", authHandler.LoginHandler)
				r.Post("/auth/signup", authHandler.SignupHandler)
				r.Post("/auth/logout", authHandler.LogoutHandler)
				r.Post("/auth/forgot-password", passwordHandler.ForgotPasswordHandler)
				r.Post("/auth/reset-password", passwordHandler.ResetPasswordHandler)

				r.Group(func(r chi.Router) {
					r.Use(guards.ProtectedAPI)

					r.Get("/orders", orderHandler.HandleListOrders)
					r.Post("/orders", orderHandler.HandleCreateOrder)
					r.Put("/orders/{id}", orderHandler.HandleUpdateOrder)
					r.Delete("/orders/{id}", orderHandler.HandleDeleteOrder)
					r.Get("/orders/exposure", orderHandler.HandleExposure)
					r.Post("/orders/upload", uploadHandler.HandleOrdersUpload)

					r.Get("/profile", profileHandler.HandleGetProfile)
					r.Put("/profile", profileHandler.HandleUpdateProfile)
					r.Post("/profile/avatar", uploadHandler.HandleAvatarUpload)
					r.Get("/profile/logins", authHandler.HandleLoginHistory)

					r.Get("/dashboard", dashboardHandler.HandleGetDashboard)
					r.Get("/dashboard/summary", dashboardHandler.HandleGetSummary)
					r.Get("/dashboard/forward-rates", dashboardHandler.HandleGetForwardRates)
					r.Get("/dashboard/trend", dashboardHandler.HandleGetTrend)
					r.Get("/dashboard/bank-gains", dashboardHandler.HandleGetBankGains)

					r.Get("/tca", tcaHandler.HandleGetReport)
					r.Get("/tca/spot", tcaHandler.HandleGetSpot)
					r.Get("/tca/spot-forward", tcaHandler.HandleGetSpotForward)
					r.Get("/tca/spot-option", tcaHandler.HandleGetSpotOption)
					r.Get("/tca/pdf", tcaHandler.HandleExportPDF)
				})

				r.Group(func(r chi.Router) {
					r.Use(guards.AdminAPI)

					r.Get("/admin/orders", orderHandler.HandleListAdminOrders)
					r.Put("/admin/orders/{id}", orderHandler.HandleUpdateAdminOrder)
					r.Post("/admin/orders/{id}/status", orderHandler.HandleSetOrderStatus)
					r.Get("/admin/matched-orders", orderHandler.HandleListMatchedOrders)
					r.Get("/admin/market-orders", orderHandler.HandleListMarketOrders)
					r.Post("/admin/run-matching", orderHandler.HandleRunMatching)

					r.Get("/admin/premium-rates", orderHandler.HandleListPremiumRates)
					r.Post("/admin/premium-rates", orderHandler.HandleCreatePremiumRate)
					r.Put("/admin/premium-rates/{id}", orderHandler.HandleUpdatePremiumRate)
					r.Delete("/admin/premium-rates/{id}", orderHandler.HandleDeletePremiumRate)

					r.Post("/admin/tca/inputs", uploadHandler.HandleTCAInputsUpload)

					r.Get("/invoice/clients", invoiceHandler.HandleListClients)
					r.Post("/invoice/clients", invoiceHandler.HandleCreateClient)
					r.Put("/invoice/clients/{id}", invoiceHandler.HandleUpdateClient)
					r.Delete("/invoice/clients/{id}", invoiceHandler.HandleDeleteClient)
					r.Get("/invoice/invoices", invoiceHandler.HandleListInvoices)
					r.Get("/invoice/invoices/{id}", invoiceHandler.HandleGetInvoice)
					r.Get("/invoice/invoices/{id}/pdf", invoiceHandler.HandleDownloadPDF)
					r.Post("/invoice/invoices/{id}/status", invoiceHandler.HandleAdvanceStatus)
					r.Post("/invoice/invoices/{id}/confirm", uploadHandler.HandleInvoiceConfirm)
					r.Get("/invoice/summary", invoiceHandler.HandleSummary)
					r.Post("/invoice/draft", invoiceHandler.HandleCreateDraft)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			sendJSONError(w, "Not found", http.StatusNotFound)
			return
		}
		http.NotFound(w, r)
	})

	return r
}
