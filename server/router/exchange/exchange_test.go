package exchange

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/prefsync/internal/profile"
	"github.com/hrygo/prefsync/server/service/prefs"
	"github.com/hrygo/prefsync/store"
	"github.com/hrygo/prefsync/store/test"
)

// stubAuthenticator authenticates against a fixed username/password map.
type stubAuthenticator struct {
	passwords map[string]string
}

func (a *stubAuthenticator) Authenticate(_ context.Context, username, password string) (*store.User, error) {
	username = store.NormalizeUsername(username)
	if expected, ok := a.passwords[username]; ok && expected == password {
		return &store.User{Username: username, Role: store.RoleUser}, nil
	}
	return nil, nil
}

func newTestHandler(t *testing.T, protocol string) (*Handler, *echo.Echo, *store.Store) {
	t.Helper()
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	p := &profile.Profile{Mode: "dev", Driver: "sqlite", Protocol: protocol}
	authenticator := &stubAuthenticator{passwords: map[string]string{"alice": "secret"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := NewHandler(p, ts, authenticator, logger)
	e := echo.New()
	h.Register(e)
	return h, e, ts
}

func doRequest(e *echo.Echo, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAppletRender(t *testing.T) {
	_, e, ts := newTestHandler(t, profile.ProtocolToken)
	ctx := context.Background()

	require.NoError(t, ts.SaveBlob(ctx, "alice", "Board\npiece-set=string;xboard\n"))

	rec := doRequest(e, http.MethodGet, "/applet/prefs", "", map[string]string{HeaderUser: "Alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `<PARAM NAME="savePrefsURL" VALUE="/prefs/save">`)
	assert.Contains(t, body, `<PARAM NAME="prefsSaveKey" VALUE="`)
	assert.Contains(t, body, `<PARAM NAME="Board.prefsCount" VALUE="1">`)
	assert.Contains(t, body, `<PARAM NAME="Board.0" VALUE="piece-set=string;xboard">`)

	// The render left an active save key behind.
	record, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, record.SaveToken)
}

func TestAppletRenderNewUser(t *testing.T) {
	_, e, ts := newTestHandler(t, profile.ProtocolToken)

	rec := doRequest(e, http.MethodGet, "/applet/prefs", "", map[string]string{HeaderUser: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "prefsSaveKey")

	record, err := ts.GetOrCreateUserRecord(context.Background(), "bob")
	require.NoError(t, err)
	assert.Nil(t, record.Blob)
}

func TestAppletRenderGuest(t *testing.T) {
	_, e, _ := newTestHandler(t, profile.ProtocolToken)

	rec := doRequest(e, http.MethodGet, "/applet/prefs", "", map[string]string{
		HeaderUser:  "guest",
		HeaderGuest: "true",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestTokenSave(t *testing.T) {
	h, e, ts := newTestHandler(t, profile.ProtocolToken)
	ctx := context.Background()

	_, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)
	token, err := h.Issuer.Issue(ctx, "alice")
	require.NoError(t, err)

	body := token + "\nGeneral\nname=str;hello\n\nDone"
	rec := doRequest(e, http.MethodPost, "/prefs/save", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	blob, err := ts.LoadBlob(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.Equal(t, "General\nname=str;hello\n", *blob)

	set, err := prefs.Decode([]byte(*blob))
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, "General", set[0].Type)
	assert.Equal(t, []prefs.Line{{Name: "name", Tag: "str", Value: "hello"}}, set[0].Lines)
}

func TestTokenSaveMissingSentinel(t *testing.T) {
	h, e, ts := newTestHandler(t, profile.ProtocolToken)
	ctx := context.Background()

	_, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)
	token, err := h.Issuer.Issue(ctx, "alice")
	require.NoError(t, err)

	rec := doRequest(e, http.MethodPost, "/prefs/save", token+"\nGeneral\nname=str;hello", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Upload did not complete", rec.Body.String())

	// The interrupted upload neither stored a blob nor burned the token.
	blob, err := ts.LoadBlob(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, blob)
	username, err := ts.ConsumeSaveToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestTokenSaveUnknownToken(t *testing.T) {
	_, e, _ := newTestHandler(t, profile.ProtocolToken)

	rec := doRequest(e, http.MethodPost, "/prefs/save", "bogus\nGeneral\nname=str;hello\n\nDone", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Unknown PrefsSaveKey: bogus", rec.Body.String())
}

func TestTokenSaveReplay(t *testing.T) {
	h, e, ts := newTestHandler(t, profile.ProtocolToken)
	ctx := context.Background()

	_, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)
	token, err := h.Issuer.Issue(ctx, "alice")
	require.NoError(t, err)

	body := token + "\nGeneral\nname=str;hello\n\nDone"
	rec := doRequest(e, http.MethodPost, "/prefs/save", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	// Same token again: the save must be rejected.
	rec = doRequest(e, http.MethodPost, "/prefs/save", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Unknown PrefsSaveKey: "+token, rec.Body.String())
}

func TestCredentialSaveAndLoad(t *testing.T) {
	_, e, ts := newTestHandler(t, profile.ProtocolCredential)

	rec := doRequest(e, http.MethodPost, "/prefs?savePrefs",
		"alice\nsecret\nGeneral\nname=str;hi\nPREFS_UPLOAD_END", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	blob, err := ts.LoadBlob(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.Equal(t, "General\nname=str;hi\n", *blob)

	rec = doRequest(e, http.MethodPost, "/prefs?loadPrefs", "alice\nsecret\n", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\nGeneral\nname=str;hi\n", rec.Body.String())
}

func TestCredentialLoadNewUser(t *testing.T) {
	_, e, _ := newTestHandler(t, profile.ProtocolCredential)

	rec := doRequest(e, http.MethodPost, "/prefs?loadPrefs", "alice\nsecret\n", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NOPREFS\n", rec.Body.String())
}

func TestCredentialMissingFields(t *testing.T) {
	_, e, _ := newTestHandler(t, profile.ProtocolCredential)

	rec := doRequest(e, http.MethodPost, "/prefs?loadPrefs", "", nil)
	assert.Equal(t, "Missing username in POST data\n", rec.Body.String())

	rec = doRequest(e, http.MethodPost, "/prefs?loadPrefs", "alice", nil)
	assert.Equal(t, "Missing password in POST data\n", rec.Body.String())
}

func TestCredentialWrongPassword(t *testing.T) {
	_, e, _ := newTestHandler(t, profile.ProtocolCredential)

	rec := doRequest(e, http.MethodPost, "/prefs?loadPrefs", "alice\nwrong\n", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Wrong username or password\n", rec.Body.String())
}

func TestCredentialSaveInterrupted(t *testing.T) {
	_, e, ts := newTestHandler(t, profile.ProtocolCredential)

	rec := doRequest(e, http.MethodPost, "/prefs?savePrefs",
		"alice\nsecret\nGeneral\nname=str;hi\n", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Upload of preferences interrupted\n", rec.Body.String())

	blob, err := ts.LoadBlob(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, blob, "interrupted upload must not overwrite anything")
}

func TestCredentialUnknownOperation(t *testing.T) {
	_, e, _ := newTestHandler(t, profile.ProtocolCredential)

	rec := doRequest(e, http.MethodPost, "/prefs", "alice\nsecret\n", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProtocolSelection(t *testing.T) {
	// A credential instance does not expose the token routes and vice versa.
	_, credentialEcho, _ := newTestHandler(t, profile.ProtocolCredential)
	rec := doRequest(credentialEcho, http.MethodPost, "/prefs/save", "x\n\nDone", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, tokenEcho, _ := newTestHandler(t, profile.ProtocolToken)
	rec = doRequest(tokenEcho, http.MethodPost, "/prefs?loadPrefs", "alice\nsecret\n", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
