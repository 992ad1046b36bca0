package httpserver

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/sitepick/assets"
	"github.com/robalobadob/sitepick/internal/config"
	"github.com/robalobadob/sitepick/internal/database"
	"github.com/robalobadob/sitepick/internal/game"
	"github.com/robalobadob/sitepick/internal/listing"
	"github.com/robalobadob/sitepick/internal/results"
	"github.com/robalobadob/sitepick/internal/store"
)

type testEnv struct {
	ts      *httptest.Server
	db      *sql.DB
	sched   *game.FakeScheduler
	results *results.Store
	timing  game.Timing
}

func testListings() []listing.Listing {
	return []listing.Listing{
		{ID: 1, Title: "Street front", Area: 40, Price: 40000, IsGood: true},
		{ID: 2, Title: "Basement", IsGood: false, StopFactorReason: "stairs down"},
		{ID: 3, Title: "Corner", IsGood: true},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db, assets.Migrations()))

	cfg, err := config.Load()
	require.NoError(t, err)

	sched := game.NewFakeScheduler()
	res := results.NewStore(db)
	srv := New(Deps{
		Config:    cfg,
		Store:     store.NewMemoryStore(),
		Results:   res,
		DB:        db,
		Listings:  testListings(),
		Scheduler: sched,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, db: db, sched: sched, results: res, timing: cfg.Timing()}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func do(t *testing.T, c *http.Client, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// errorCode sends body and returns the status and the "error" field of the reply.
func errorCode(t *testing.T, method, url string, body any) (int, string) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(method, url, bytes.NewReader(b))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out.Error
}

// settle lets the pending decision resolve.
func (e *testEnv) settle() { e.sched.Advance(e.timing.AdvanceDelay) }

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	var out map[string]bool
	assert.Equal(t, http.StatusOK, do(t, newClient(t), http.MethodGet, e.ts.URL+"/health", nil, &out))
	assert.True(t, out["ok"])
}

func TestSession_FullGuestRunWins(t *testing.T) {
	e := newTestEnv(t)
	c := newClient(t)

	var v game.View
	require.Equal(t, http.StatusCreated, do(t, c, http.MethodPost, e.ts.URL+"/session/new", nil, &v))
	assert.Equal(t, game.PhaseIntro, v.Phase)
	base := e.ts.URL + "/session/" + v.SessionID

	// Decide before start is a conflict.
	assert.Equal(t, http.StatusConflict, do(t, c, http.MethodPost, base+"/decide", map[string]bool{"approved": true}, nil))

	var started game.View
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, base+"/start", nil, &started))
	assert.Equal(t, game.PhasePlaying, started.Phase)
	require.NotNil(t, started.Card)
	assert.Equal(t, 1, started.Card.ID)
	assert.Equal(t, 1000, started.Card.PricePerSqm)

	for _, approved := range []bool{true, false, false} {
		var res decideRes
		require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, base+"/decide", map[string]bool{"approved": approved}, &res))
		assert.NotNil(t, res.View.Feedback)
		assert.True(t, res.View.Locked)

		// Double submit is rejected until the decision settles.
		assert.Equal(t, http.StatusConflict, do(t, c, http.MethodPost, base+"/decide", map[string]bool{"approved": approved}, nil))
		e.settle()
	}

	var won game.View
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, base, nil, &won))
	assert.Equal(t, game.PhaseWon, won.Phase)
	assert.Nil(t, won.Card)
	assert.Equal(t, game.Stats{Score: 150, CorrectDecisions: 2, TotalDecisions: 3}, won.Stats)
	assert.Equal(t, 67, won.Accuracy)
}

func TestSession_ApproveBadLoses(t *testing.T) {
	e := newTestEnv(t)
	c := newClient(t)

	var v game.View
	require.Equal(t, http.StatusCreated, do(t, c, http.MethodPost, e.ts.URL+"/session/new", nil, &v))
	base := e.ts.URL + "/session/" + v.SessionID
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, base+"/start", nil, nil))

	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, base+"/decide", map[string]bool{"approved": true}, nil))
	e.settle()

	var res decideRes
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, base+"/decide", map[string]bool{"approved": true}, &res))
	assert.True(t, res.Verdict.Fatal)
	assert.Equal(t, "stairs down", res.Verdict.Message)
	assert.Empty(t, res.View.FailReason, "reason is revealed once the run is lost")

	e.sched.Advance(e.timing.LossDelay)
	var lost game.View
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, base, nil, &lost))
	assert.Equal(t, game.PhaseLost, lost.Phase)
	assert.Equal(t, "stairs down", lost.FailReason)

	// Restart clears everything.
	var restarted game.View
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, base+"/start", nil, &restarted))
	assert.Equal(t, game.PhasePlaying, restarted.Phase)
	assert.Equal(t, game.Stats{}, restarted.Stats)
	assert.Empty(t, restarted.FailReason)
	require.NotNil(t, restarted.Card)
	assert.Equal(t, 1, restarted.Card.ID)
}

func TestSession_BadRequests(t *testing.T) {
	e := newTestEnv(t)
	c := newClient(t)

	var v game.View
	require.Equal(t, http.StatusCreated, do(t, c, http.MethodPost, e.ts.URL+"/session/new", nil, &v))
	base := e.ts.URL + "/session/" + v.SessionID
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, base+"/start", nil, nil))

	assert.Equal(t, http.StatusBadRequest, do(t, c, http.MethodPost, base+"/decide", map[string]string{}, nil))
	assert.Equal(t, http.StatusNotFound, do(t, c, http.MethodGet, e.ts.URL+"/session/nope", nil, nil))

	// Another guest cannot see or drive this session.
	other := newClient(t)
	assert.Equal(t, http.StatusNotFound, do(t, other, http.MethodGet, base, nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, other, http.MethodPost, base+"/decide", map[string]bool{"approved": true}, nil))

	assert.Equal(t, http.StatusNoContent, do(t, c, http.MethodDelete, base, nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, c, http.MethodGet, base, nil, nil))
}

func TestAuth_SignupPlayLeaderboard(t *testing.T) {
	e := newTestEnv(t)
	c := newClient(t)

	var me authUser
	require.Equal(t, http.StatusCreated, do(t, c, http.MethodPost, e.ts.URL+"/auth/signup", credentials{Username: "anna_k", Password: "correct horse"}, &me))
	assert.Equal(t, "anna_k", me.Username)

	assert.Equal(t, http.StatusConflict, do(t, newClient(t), http.MethodPost, e.ts.URL+"/auth/signup", credentials{Username: "ANNA_K", Password: "another pass"}, nil))

	var v game.View
	require.Equal(t, http.StatusCreated, do(t, c, http.MethodPost, e.ts.URL+"/session/new", nil, &v))
	base := e.ts.URL + "/session/" + v.SessionID
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, base+"/start", nil, nil))
	for _, approved := range []bool{true, false, true} {
		require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, base+"/decide", map[string]bool{"approved": approved}, nil))
		e.settle()
	}

	var stats map[string]any
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, e.ts.URL+"/stats/me", nil, &stats))
	assert.EqualValues(t, 1, stats["gamesPlayed"])
	assert.EqualValues(t, 1, stats["wins"])
	assert.EqualValues(t, 250, stats["bestScore"])

	var board struct {
		Top []results.LBRow `json:"top"`
	}
	require.Equal(t, http.StatusOK, do(t, newClient(t), http.MethodGet, e.ts.URL+"/leaderboard", nil, &board))
	require.Len(t, board.Top, 1)
	assert.Equal(t, "anna_k", board.Top[0].Username)
	assert.Equal(t, 250, board.Top[0].Score)
	assert.Equal(t, 100, board.Top[0].Accuracy)

	assert.Equal(t, http.StatusBadRequest, do(t, c, http.MethodGet, e.ts.URL+"/leaderboard?limit=0", nil, nil))
}

func TestAuth_LoginClaimsGuestRuns(t *testing.T) {
	e := newTestEnv(t)

	require.Equal(t, http.StatusCreated, do(t, newClient(t), http.MethodPost, e.ts.URL+"/auth/signup", credentials{Username: "boris", Password: "password1"}, nil))

	// Play and win as a guest.
	guest := newClient(t)
	var v game.View
	require.Equal(t, http.StatusCreated, do(t, guest, http.MethodPost, e.ts.URL+"/session/new", nil, &v))
	base := e.ts.URL + "/session/" + v.SessionID
	require.Equal(t, http.StatusOK, do(t, guest, http.MethodPost, base+"/start", nil, nil))
	for _, approved := range []bool{true, false, true} {
		require.Equal(t, http.StatusOK, do(t, guest, http.MethodPost, base+"/decide", map[string]bool{"approved": approved}, nil))
		e.settle()
	}

	assert.Equal(t, http.StatusUnauthorized, do(t, guest, http.MethodPost, e.ts.URL+"/auth/login", credentials{Username: "boris", Password: "wrong-password"}, nil))
	require.Equal(t, http.StatusOK, do(t, guest, http.MethodPost, e.ts.URL+"/auth/login", credentials{Username: "boris", Password: "password1"}, nil))

	var runs []results.Result
	require.Equal(t, http.StatusOK, do(t, guest, http.MethodGet, e.ts.URL+"/games/mine", nil, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "won", runs[0].Outcome)

	// The session created as a guest is still reachable after login.
	assert.Equal(t, http.StatusOK, do(t, guest, http.MethodGet, base, nil, nil))

	require.Equal(t, http.StatusOK, do(t, guest, http.MethodPost, e.ts.URL+"/auth/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, do(t, guest, http.MethodGet, e.ts.URL+"/auth/me", nil, nil))
}

func TestAuth_RequireAuthRejectsBadToken(t *testing.T) {
	e := newTestEnv(t)
	req, err := http.NewRequest(http.MethodGet, e.ts.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_SignupErrors(t *testing.T) {
	e := newTestEnv(t)
	url := e.ts.URL + "/auth/signup"

	status, code := errorCode(t, http.MethodPost, url, credentials{Username: "vera", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "password must be 8-72 chars", code)

	status, code = errorCode(t, http.MethodPost, url, credentials{Username: "no spaces", Password: "password1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "username: letters, numbers, underscore only", code)

	status, code = errorCode(t, http.MethodPost, url, credentials{Username: "vera", Password: "password1"})
	require.Equal(t, http.StatusCreated, status)
	status, code = errorCode(t, http.MethodPost, url, credentials{Username: "Vera", Password: "password2"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "username_taken", code)

	// Storage failures are reported without their internal text.
	require.NoError(t, e.db.Close())
	status, code = errorCode(t, http.MethodPost, url, credentials{Username: "gleb", Password: "password1"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "signup_failed", code)
}

func TestIsUniqueViolation(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db, assets.Migrations()))

	insert := `INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`
	_, err = db.Exec(insert, "u1", "dina", "h", "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	_, err = db.Exec(insert, "u2", "DINA", "h", "2026-01-01T00:00:00Z")
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))

	_, err = db.Exec(insert, "u3", nil, "h", "2026-01-01T00:00:00Z")
	require.Error(t, err)
	assert.False(t, isUniqueViolation(err))
	assert.False(t, isUniqueViolation(nil))
}

func TestAuth_SecureCookies(t *testing.T) {
	t.Setenv("SECURE_COOKIES", "true")
	e := newTestEnv(t)

	b, err := json.Marshal(credentials{Username: "fedor", Password: "password1"})
	require.NoError(t, err)
	resp, err := http.Post(e.ts.URL+"/auth/signup", "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var found bool
	for _, ck := range resp.Cookies() {
		if ck.Name == "sitepick_token" {
			found = true
			assert.True(t, ck.Secure)
			assert.Equal(t, http.SameSiteNoneMode, ck.SameSite)
		}
	}
	assert.True(t, found)
}
