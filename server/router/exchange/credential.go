package exchange

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/prefsync/server/internal/observability"
)

// Fixed response lines of the credential variant. The deployed clients
// compare against these byte for byte, so they are not to be reworded.
const (
	respOK                = "OK"
	respNoPrefs           = "NOPREFS\n"
	respMissingUsername   = "Missing username in POST data\n"
	respMissingPassword   = "Missing password in POST data\n"
	respWrongCredentials  = "Wrong username or password\n"
	respUploadInterrupted = "Upload of preferences interrupted\n"
	respTooManyRequests   = "Too many requests\n"
)

// handleCredentialExchange serves both operations of the credential variant,
// selected by query marker the way the legacy endpoint was addressed:
// POST /prefs?loadPrefs and POST /prefs?savePrefs. Every request carries
//
//	<username> "\n" <password> "\n" <payload>
//
// in its raw body.
func (h *Handler) handleCredentialExchange(c echo.Context) error {
	query := c.QueryParams()
	switch {
	case query.Has("savePrefs"):
		return h.credentialExchange(c, opSave)
	case query.Has("loadPrefs"):
		return h.credentialExchange(c, opLoad)
	default:
		return c.String(http.StatusNotFound, "Unknown preferences operation\n")
	}
}

func (h *Handler) credentialExchange(c echo.Context, op string) error {
	rc := observability.NewRequestContext(h.logger, op, "")
	h.metrics.RecordRequest(op)
	defer func() { h.metrics.RecordDuration(op, rc.Duration()) }()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.metrics.RecordFailure(op)
		rc.Error("failed to read request body", err)
		return c.String(http.StatusOK, respUploadInterrupted)
	}

	username, rest := cutLine(string(body))
	if username == "" {
		h.metrics.RecordFailure(op)
		return c.String(http.StatusOK, respMissingUsername)
	}
	password, payload := cutLine(rest)
	if password == "" {
		h.metrics.RecordFailure(op)
		return c.String(http.StatusOK, respMissingPassword)
	}
	rc.Username = username

	if !h.limiter.Allow(username) {
		h.metrics.RecordFailure(op)
		rc.Warn("rate limited")
		return c.String(http.StatusTooManyRequests, respTooManyRequests)
	}

	ctx := c.Request().Context()
	user, err := h.Authenticator.Authenticate(ctx, username, password)
	if err != nil {
		h.metrics.RecordFailure(op)
		rc.Error("authenticator failed", err)
		return c.String(http.StatusOK, err.Error())
	}
	if user == nil {
		h.metrics.RecordFailure(op)
		rc.Warn("wrong credentials")
		return c.String(http.StatusOK, respWrongCredentials)
	}

	if op == opSave {
		return h.credentialSave(c, rc, user.Username, payload)
	}
	return h.credentialLoad(c, rc, user.Username)
}

func (h *Handler) credentialSave(c echo.Context, rc *observability.RequestContext, username, payload string) error {
	blob, found := strings.CutSuffix(payload, credentialSentinel)
	if !found {
		h.metrics.RecordFailure(opSave)
		rc.Warn("upload missing sentinel")
		return c.String(http.StatusOK, respUploadInterrupted)
	}

	if err := h.Store.SaveBlob(c.Request().Context(), username, blob); err != nil {
		h.metrics.RecordFailure(opSave)
		rc.Error("failed to persist blob", err)
		return c.String(http.StatusOK, err.Error())
	}

	rc.Info("preferences saved", slog.Int("bytes", len(blob)))
	return c.String(http.StatusOK, respOK)
}

func (h *Handler) credentialLoad(c echo.Context, rc *observability.RequestContext, username string) error {
	blob, err := h.Store.LoadBlob(c.Request().Context(), username)
	if err != nil {
		h.metrics.RecordFailure(opLoad)
		rc.Error("failed to load blob", err)
		return c.String(http.StatusOK, err.Error())
	}
	if blob == nil {
		rc.Info("no preferences yet")
		return c.String(http.StatusOK, respNoPrefs)
	}

	rc.Info("preferences loaded", slog.Int("bytes", len(*blob)))
	return c.String(http.StatusOK, "OK\n"+*blob)
}

// cutLine splits off the first line of s. A missing line break leaves rest
// empty, so a body short on lines shows up as an empty next field.
func cutLine(s string) (line, rest string) {
	line, rest, _ = strings.Cut(s, "\n")
	return line, rest
}
