package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hafizmfadli/go-review/internal/auth"
	"github.com/hafizmfadli/go-review/internal/data"
	"github.com/hafizmfadli/go-review/internal/jsonlog"
)

type sentMail struct {
	recipient string
	template  string
	data      map[string]any
}

// fakeMailer records messages instead of delivering them.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(recipient, templateFile string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, _ := payload.(map[string]any)
	m.sent = append(m.sent, sentMail{recipient: recipient, template: templateFile, data: d})
	return nil
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

type testServer struct {
	app     *application
	db      *memDB
	mailer  *fakeMailer
	handler http.Handler
}

func newTestApplication(t *testing.T) *application {
	t.Helper()

	var cfg config
	cfg.env = "testing"
	cfg.limiter.enabled = false
	cfg.auth.codeTTL = time.Hour
	cfg.auth.accessTTL = time.Hour

	return &application{
		config: cfg,
		logger: jsonlog.NewLogger(io.Discard, jsonlog.LevelOff),
		mailer: &fakeMailer{},
		codes:  auth.NewCodeGenerator("test-code-secret", cfg.auth.codeTTL),
		tokens: auth.NewTokenIssuer("test-jwt-secret", cfg.auth.accessTTL),
	}
}

// newTestServer builds the full handler chain over an empty in-memory
// database. configure, if given, adjusts the application before routes are
// built.
func newTestServer(t *testing.T, configure ...func(*application)) *testServer {
	t.Helper()

	db := newMemDB()
	app := newTestApplication(t)
	app.models = db.models()
	for _, fn := range configure {
		fn(app)
	}

	return &testServer{
		app:     app,
		db:      db,
		mailer:  app.mailer.(*fakeMailer),
		handler: app.routes(),
	}
}

type response struct {
	status int
	header http.Header
	body   map[string]any
}

// do sends a request through the handler chain. body, if not nil, is
// encoded as JSON; a string body is sent verbatim.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		js, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(js)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	res := response{status: rr.Code, header: rr.Header()}
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res.body), rr.Body.String())
	}
	return res
}

// user stores a confirmed user with the given role and returns it with a
// valid access token.
func (ts *testServer) user(t *testing.T, username string, role data.Role) (*data.User, string) {
	t.Helper()

	user := &data.User{
		Username:  username,
		Email:     username + "@example.com",
		Role:      role,
		Confirmed: true,
	}
	require.NoError(t, ts.app.models.Users.Insert(user))

	token, err := ts.app.tokens.Issue(user.ID)
	require.NoError(t, err)
	return user, token
}

func (ts *testServer) term(t *testing.T, store data.TermStore, name, slug string) *data.Term {
	t.Helper()

	term := &data.Term{Name: name, Slug: slug}
	require.NoError(t, store.Insert(term))
	return term
}

func (ts *testServer) title(t *testing.T, name string, year int32, category *data.Category, genres ...data.Genre) *data.Title {
	t.Helper()

	if genres == nil {
		genres = []data.Genre{}
	}
	title := &data.Title{Name: name, Year: year, Category: category, Genres: genres}
	require.NoError(t, ts.app.models.Titles.Insert(title))
	return title
}

// object returns the JSON object stored under key in body.
func object(t *testing.T, body map[string]any, key string) map[string]any {
	t.Helper()

	obj, ok := body[key].(map[string]any)
	require.Truef(t, ok, "%q is not an object in %v", key, body)
	return obj
}

// list returns the JSON array stored under key in body.
func list(t *testing.T, body map[string]any, key string) []any {
	t.Helper()

	arr, ok := body[key].([]any)
	require.Truef(t, ok, "%q is not an array in %v", key, body)
	return arr
}
