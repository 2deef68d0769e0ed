// Package exchange serves the preference exchange protocol over plain HTTP.
// Two deployed client generations speak two different framings; both are
// implemented here and an instance serves the one selected in its profile.
// Responses are bare text lines because the legacy clients parse bodies, not
// status codes: protocol-level failures still travel as 200 with the fixed
// error string the client knows.
package exchange

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/prefsync/internal/profile"
	"github.com/hrygo/prefsync/server/auth"
	"github.com/hrygo/prefsync/server/internal/observability"
	"github.com/hrygo/prefsync/server/middleware"
	"github.com/hrygo/prefsync/server/service/prefs"
	"github.com/hrygo/prefsync/store"
)

const (
	// tokenSentinel terminates a token-variant upload body.
	tokenSentinel = "Done"
	// credentialSentinel terminates a credential-variant upload payload,
	// concatenated without a separating newline.
	credentialSentinel = "PREFS_UPLOAD_END"

	opRender = "render"
	opSave   = "save"
	opLoad   = "load"
)

// Handler orchestrates inbound exchange requests against the issuer, the
// store and the codec.
type Handler struct {
	Profile       *profile.Profile
	Store         *store.Store
	Issuer        *prefs.Issuer
	Authenticator auth.Authenticator

	limiter *middleware.RateLimiter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewHandler creates a handler for the exchange variant named in the profile.
func NewHandler(p *profile.Profile, st *store.Store, authenticator auth.Authenticator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Profile:       p,
		Store:         st,
		Issuer:        prefs.NewIssuer(st),
		Authenticator: authenticator,
		limiter:       middleware.NewRateLimiter(0, 0),
		logger:        logger,
		metrics:       observability.GlobalMetrics(),
	}
}

// Register mounts the routes of the configured protocol variant.
func (h *Handler) Register(e *echo.Echo) {
	switch h.Profile.Protocol {
	case profile.ProtocolCredential:
		e.POST("/prefs", h.handleCredentialExchange)
	default:
		e.GET("/applet/prefs", h.handleAppletRender)
		e.POST("/prefs/save", h.handleTokenSave)
	}
}
