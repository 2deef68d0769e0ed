package exchange

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/prefsync/server/internal/observability"
	"github.com/hrygo/prefsync/server/service/prefs"
)

// Headers set by the page glue after it has authenticated the session. The
// session plumbing itself lives outside this service.
const (
	HeaderUser  = "X-Prefsync-User"
	HeaderGuest = "X-Prefsync-Guest"
)

// handleAppletRender produces the <PARAM> fragment the applet page inlines:
// the save endpoint, a freshly issued one-time save key, and the user's
// stored preferences rendered as applet parameters. Guests get an empty
// fragment; they have no record and never receive a save key.
func (h *Handler) handleAppletRender(c echo.Context) error {
	rc := observability.NewRequestContext(h.logger, opRender, c.Request().Header.Get(HeaderUser))
	h.metrics.RecordRequest(opRender)
	defer func() { h.metrics.RecordDuration(opRender, rc.Duration()) }()

	username := strings.TrimSpace(c.Request().Header.Get(HeaderUser))
	if username == "" || c.Request().Header.Get(HeaderGuest) == "true" {
		return c.String(http.StatusOK, "")
	}

	ctx := c.Request().Context()
	record, err := h.Store.GetOrCreateUserRecord(ctx, username)
	if err != nil {
		h.metrics.RecordFailure(opRender)
		rc.Error("failed to load user record", err)
		return c.String(http.StatusInternalServerError, "Couldn't read preferences\n")
	}

	token, err := h.Issuer.Issue(ctx, record.Username)
	if err != nil {
		h.metrics.RecordFailure(opRender)
		rc.Error("failed to issue save token", err)
		return c.String(http.StatusInternalServerError, "Couldn't issue save key\n")
	}

	set := prefs.Set{}
	if record.Blob != nil {
		set, err = prefs.Decode([]byte(*record.Blob))
		if err != nil {
			h.metrics.RecordFailure(opRender)
			rc.Error("stored blob does not decode", err)
			return c.String(http.StatusInternalServerError, "Couldn't decode preferences\n")
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<PARAM NAME=\"savePrefsURL\" VALUE=\"/prefs/save\">\n\t")
	fmt.Fprintf(&sb, "<PARAM NAME=\"prefsSaveKey\" VALUE=\"%s\">\n\t", token)
	sb.WriteString(prefs.AppletParams(set))

	rc.Info("rendered applet preferences", slog.Int("groups", len(set)))
	return c.HTML(http.StatusOK, sb.String())
}

// handleTokenSave accepts the token-framed upload:
//
//	<save key> "\n" <blob lines...> "\n" "Done"
//
// The first line must redeem an active save key, the last line must be the
// sentinel, and everything between is stored verbatim as the owner's blob.
func (h *Handler) handleTokenSave(c echo.Context) error {
	rc := observability.NewRequestContext(h.logger, opSave, "")
	h.metrics.RecordRequest(opSave)
	defer func() { h.metrics.RecordDuration(opSave, rc.Duration()) }()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.metrics.RecordFailure(opSave)
		rc.Error("failed to read upload body", err)
		return c.String(http.StatusOK, "Upload did not complete")
	}

	lines := strings.Split(string(body), "\n")
	if len(lines) < 2 || lines[len(lines)-1] != tokenSentinel {
		h.metrics.RecordFailure(opSave)
		rc.Warn("upload missing sentinel")
		return c.String(http.StatusOK, "Upload did not complete")
	}
	token := lines[0]
	blob := strings.Join(lines[1:len(lines)-1], "\n")

	ctx := c.Request().Context()
	username, err := h.Issuer.Consume(ctx, token)
	if err != nil {
		h.metrics.RecordFailure(opSave)
		rc.Warn("save key rejected", slog.String("error", err.Error()))
		return c.String(http.StatusOK, fmt.Sprintf("Unknown PrefsSaveKey: %s", token))
	}
	rc.Username = username

	if err := h.Store.SaveBlob(ctx, username, blob); err != nil {
		h.metrics.RecordFailure(opSave)
		rc.Error("failed to persist blob", err)
		return c.String(http.StatusOK, err.Error())
	}

	rc.Info("preferences saved", slog.Int("bytes", len(blob)))
	return c.String(http.StatusOK, "")
}
