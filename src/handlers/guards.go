package handlers

import (
	"net/http"

	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/metrics"
	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/services"
	"github.com/username/fxportal/src/store"
)

// Requirement is what a route asks of the session.
type Requirement struct {
	Admin     bool
	AdminRole string
}

// RequireAuth admits any authenticated session.
var RequireAuth = Requirement{}

// RequireAdmin admits authenticated sessions holding role.
func RequireAdmin(role string) Requirement {
	if role == "" {
		role = models.DefaultAdminRole
	}
	return Requirement{Admin: true, AdminRole: role}
}

type Outcome int

const (
	Render Outcome = iota
	RedirectLogin
	RedirectDashboard
)

func (o Outcome) String() string {
	switch o {
	case RedirectLogin:
		return "redirect_login"
	case RedirectDashboard:
		return "redirect_dashboard"
	default:
		return "render"
	}
}

// Decision is the single outcome of a guard.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Decide maps a resolved session onto one outcome: anonymous sessions go to /login,
// sessions lacking the admin role go to /dashboard, everything else renders.
func Decide(state store.SessionState, req Requirement) Decision {
	sess := state.Session
	switch {
	case !sess.IsAuthenticated():
		return Decision{Outcome: RedirectLogin, Location: loginPath}
	case req.Admin && !sess.IsAdmin(req.AdminRole):
		return Decision{Outcome: RedirectDashboard, Location: dashboardPath}
	default:
		return Decision{Outcome: Render}
	}
}

// Guards resolve the session before deciding, so a returning user never sees a
// redirect while the auto-login probe is still pending.
type Guards struct {
	auth      *services.AuthService
	metrics   *metrics.Metrics
	adminRole string
}

func NewGuards(auth *services.AuthService, m *metrics.Metrics, adminRole string) *Guards {
	return &Guards{auth: auth, metrics: m, adminRole: adminRole}
}

func (g *Guards) decide(r *http.Request, guard string, req Requirement) Decision {
	state := g.auth.CheckAutoLogin(r.Context(), workspace(r))
	d := Decide(state, req)
	g.metrics.GuardDecision(guard, d.Outcome.String())
	if d.Outcome != Render {
		logger.FromContext(r.Context()).Debug("Route guard redirect", "guard", guard, "path", r.URL.Path, "location", d.Location)
	}
	return d
}

// ProtectedRoute guards pages with a 302 to /login.
func (g *Guards) ProtectedRoute(next http.Handler) http.Handler {
	return g.page("protected", RequireAuth, next)
}

// AdminRoute guards admin pages, sending other users to /dashboard.
func (g *Guards) AdminRoute(next http.Handler) http.Handler {
	return g.page("admin", RequireAdmin(g.adminRole), next)
}

// ProtectedAPI answers 401 with the redirect target instead of redirecting.
func (g *Guards) ProtectedAPI(next http.Handler) http.Handler {
	return g.api("protected", RequireAuth, next)
}

// AdminAPI answers 403 to authenticated users without the admin role.
func (g *Guards) AdminAPI(next http.Handler) http.Handler {
	return g.api("admin", RequireAdmin(g.adminRole), next)
}

func (g *Guards) page(guard string, req Requirement, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.decide(r, guard, req)
		if d.Outcome != Render {
			http.Redirect(w, r, d.Location, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guards) api(guard string, req Requirement, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch d := g.decide(r, guard, req); d.Outcome {
		case RedirectLogin:
			sendRedirectError(w, "Authentication required", d.Location, http.StatusUnauthorized)
		case RedirectDashboard:
			sendRedirectError(w, "Admin access required", d.Location, http.StatusForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
