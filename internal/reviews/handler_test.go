package reviews

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolshed/internal/catalog"
	"toolshed/internal/security"
	"toolshed/internal/web"
	"toolshed/pkg/models"
)

var tokenRx = regexp.MustCompile(`name="csrf_token" value="([^"]*)"`)

type recordingFeed struct{ got []models.Review }

func (f *recordingFeed) Publish(r models.Review) { f.got = append(f.got, r) }

type testEnv struct {
	router *gin.Engine
	repo   *Repo
	feed   *recordingFeed
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalogPath := filepath.Join(t.TempDir(), "tools.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`[{"name": "ripgrep", "description": "fast grep"}]`), 0o644))

	repo := newTestRepo(t)
	h := NewHandler(repo, catalog.NewLoader(catalogPath, zap.NewNop()), security.NewCSRF("test-secret"), zap.NewNop())
	h.now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }
	feed := &recordingFeed{}
	h.Feed = feed

	tmpl, err := web.Templates()
	require.NoError(t, err)

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	h.RegisterRoutes(r)

	return &testEnv{router: r, repo: repo, feed: feed}
}

// session fetches the homepage and returns the csrf cookie and token a
// browser would submit.
func (e *testEnv) session(t *testing.T) (*http.Cookie, string) {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	m := tokenRx.FindStringSubmatch(w.Body.String())
	require.Len(t, m, 2)
	return cookies[0], m[1]
}

func (e *testEnv) post(cookie *http.Cookie, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) count(t *testing.T) int {
	t.Helper()
	n, err := e.repo.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestHome_GetRendersCatalogAndForm(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.repo.Append(context.Background(), "grace", "jq saved my day", time.Now())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Contains(t, body, "ripgrep")
	require.Contains(t, body, "fast grep")
	require.Contains(t, body, "jq saved my day")
	require.Regexp(t, tokenRx, body)
}

func TestHome_PostStoresAndRedirects(t *testing.T) {
	env := newTestEnv(t)
	cookie, token := env.session(t)

	w := env.post(cookie, url.Values{
		"username":   {"ada"},
		"review":     {"awk is underrated"},
		"csrf_token": {token},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))
	require.Equal(t, 1, env.count(t))

	require.Len(t, env.feed.got, 1)
	require.Equal(t, "ada", env.feed.got[0].Username)
	require.True(t, time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC).Equal(env.feed.got[0].Timestamp))

	// the follow-up GET lists it
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Contains(t, w.Body.String(), "awk is underrated")
}

func TestHome_PostStripsMarkup(t *testing.T) {
	env := newTestEnv(t)
	cookie, token := env.session(t)

	w := env.post(cookie, url.Values{
		"username":   {"<b>ada</b>"},
		"review":     {`<script>alert(1)</script> <a href="x">great</a> tool`},
		"csrf_token": {token},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)

	recent, err := env.repo.Recent(context.Background(), RecentLimit)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "ada", recent[0].Username)
	require.Equal(t, "alert(1) great tool", recent[0].Text)
}

func TestHome_PostKeepsSanitizedValueAsIs(t *testing.T) {
	env := newTestEnv(t)
	cookie, token := env.session(t)

	w := env.post(cookie, url.Values{
		"username":   {"  ada <i>l</i> "},
		"review":     {"\n  indented\nlines  "},
		"csrf_token": {token},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)

	recent, err := env.repo.Recent(context.Background(), RecentLimit)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "  ada l ", recent[0].Username)
	require.Equal(t, "\n  indented\nlines  ", recent[0].Text)
}

func TestHome_PostValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		username string
		review   string
		wantMsg  string
	}{
		{name: "empty username", username: "", review: "fine", wantMsg: "Username is required."},
		{name: "blank username", username: "   ", review: "fine", wantMsg: "Username is required."},
		{name: "long username", username: strings.Repeat("u", 51), review: "fine", wantMsg: "Username must be at most 50 characters."},
		{name: "empty review", username: "ada", review: "", wantMsg: "Review is required."},
		{name: "long review", username: "ada", review: strings.Repeat("r", 2001), wantMsg: "Review must be at most 2000 characters."},
		{name: "markup only", username: "ada", review: "<br><hr/>", wantMsg: "Review is required."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			cookie, token := env.session(t)

			w := env.post(cookie, url.Values{
				"username":   {tt.username},
				"review":     {tt.review},
				"csrf_token": {token},
			})
			require.Equal(t, http.StatusOK, w.Code)
			require.Contains(t, w.Body.String(), tt.wantMsg)
			require.Equal(t, 0, env.count(t))
			require.Empty(t, env.feed.got)
		})
	}
}

func TestHome_PostLengthCountsCharacters(t *testing.T) {
	env := newTestEnv(t)
	cookie, token := env.session(t)

	// 2000 two-byte runes is within the limit
	w := env.post(cookie, url.Values{
		"username":   {strings.Repeat("é", 50)},
		"review":     {strings.Repeat("é", 2000)},
		"csrf_token": {token},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, 1, env.count(t))
}

func TestHome_PostRejectsBadCSRF(t *testing.T) {
	env := newTestEnv(t)
	cookie, token := env.session(t)
	valid := url.Values{"username": {"ada"}, "review": {"hello"}}

	cases := map[string]struct {
		cookie *http.Cookie
		token  string
	}{
		"no token":  {cookie: cookie, token: ""},
		"no cookie": {cookie: nil, token: token},
		"forged":    {cookie: cookie, token: "a.b.c"},
		"other nonce": {
			cookie: &http.Cookie{Name: security.CSRFCookieName, Value: "someone-else"},
			token:  token,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			form := url.Values{}
			for k, v := range valid {
				form[k] = v
			}
			form.Set("csrf_token", tc.token)

			w := env.post(tc.cookie, form)
			require.Equal(t, http.StatusOK, w.Code)
			require.Contains(t, w.Body.String(), "The form expired, please submit it again.")
			require.Equal(t, 0, env.count(t))
		})
	}
}

func TestHome_PostStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	cookie, token := env.session(t)
	require.NoError(t, env.repo.DB.Close())

	w := env.post(cookie, url.Values{
		"username":   {"ada"},
		"review":     {"will not persist"},
		"csrf_token": {token},
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "could not be saved")
	require.Empty(t, env.feed.got)
}

func TestHome_GetDegradesWhenStoreFails(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.repo.DB.Close())

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "No reviews yet.")
}
