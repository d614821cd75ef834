package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

type fakeCreds struct {
	mu      sync.Mutex
	tok     *oauth2.Token
	rotated int
	jar     http.CookieJar
}

func (f *fakeCreds) Token() *oauth2.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tok
}

func (f *fakeCreds) Rotate(_ context.Context, tok *oauth2.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tok = tok
	f.rotated++
}

func (f *fakeCreds) Jar() http.CookieJar { return f.jar }

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Options{BaseURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.Error(t, err)

	c, err := New(Options{BaseURL: "http://backend.local/api/"})
	require.NoError(t, err)
	assert.Equal(t, "http://backend.local/api/orders/3", c.resolve("/orders/3", nil).String())
}

func TestDo_InjectsAuthParam(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "id-token", r.URL.Query().Get(AuthParam))
		assert.Equal(t, "EUR", r.URL.Query().Get("currency"))
		json.NewEncoder(w).Encode([]map[string]any{{"id": 1}})
	}))

	var out []map[string]any
	creds := &fakeCreds{tok: &oauth2.Token{AccessToken: "id-token"}}
	err := client.Get(context.Background(), creds, "/orders", map[string][]string{"currency": {"EUR"}}, &out)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestDo_NoCredentialsSendsNoToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has(AuthParam))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.tn", body["email"])
		w.WriteHeader(http.StatusNoContent)
	}))

	err := client.Post(context.Background(), nil, "/admin/signin", map[string]string{"email": "a@b.tn"}, nil)
	assert.NoError(t, err)
}

func TestDo_RefreshesOnceAndReplays(t *testing.T) {
	var refreshes, calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case RefreshPath:
			refreshes.Add(1)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "refresh-1", body["refresh_token"])
			json.NewEncoder(w).Encode(map[string]any{"id_token": "fresh", "refresh_token": "refresh-2", "expires_in": "3600"})
		case "/orders":
			calls.Add(1)
			if r.URL.Query().Get(AuthParam) != "fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode([]int{1, 2})
		}
	}))

	creds := &fakeCreds{tok: &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh-1"}}
	var out []int
	require.NoError(t, client.Get(context.Background(), creds, "/orders", nil, &out))
	assert.Equal(t, []int{1, 2}, out)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, creds.rotated)
	assert.Equal(t, "refresh-2", creds.Token().RefreshToken)
	assert.False(t, creds.Token().Expiry.IsZero())
}

// sessionCreds shares one refresh between the concurrent requests of a session.
type sessionCreds struct {
	fakeCreds
	refreshMu sync.Mutex
}

func (s *sessionCreds) RefreshLock() sync.Locker { return &s.refreshMu }

func TestDo_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	var refreshes atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == RefreshPath {
			// The refresh token is single use.
			if refreshes.Add(1) > 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			time.Sleep(20 * time.Millisecond)
			json.NewEncoder(w).Encode(map[string]any{"idToken": "fresh", "refreshToken": "refresh-2"})
			return
		}
		if r.URL.Query().Get(AuthParam) != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]int{1})
	}))

	creds := &sessionCreds{fakeCreds: fakeCreds{tok: &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh-1"}}}
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out []int
			errs[i] = client.Get(context.Background(), creds, "/api/dashboard/summary", nil, &out)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, "fresh", creds.Token().AccessToken)
}

func TestDo_SecondUnauthorizedIsFinal(t *testing.T) {
	var refreshes, calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == RefreshPath {
			refreshes.Add(1)
			json.NewEncoder(w).Encode(map[string]any{"idToken": "still-bad"})
			return
		}
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	creds := &fakeCreds{tok: &oauth2.Token{AccessToken: "stale", RefreshToken: "r"}}
	err := client.Get(context.Background(), creds, "/profile/me", nil, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, int32(2), calls.Load())
	// A refresh answer without a refresh token keeps the previous one.
	assert.Equal(t, "r", creds.Token().RefreshToken)
}

func TestDo_RefreshFailures(t *testing.T) {
	t.Run("no refresh token", func(t *testing.T) {
		var refreshes atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == RefreshPath {
				refreshes.Add(1)
			}
			w.WriteHeader(http.StatusUnauthorized)
		}))
		err := client.Get(context.Background(), &fakeCreds{tok: &oauth2.Token{AccessToken: "x"}}, "/orders", nil, nil)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Zero(t, refreshes.Load())
	})

	t.Run("refresh rejected", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == RefreshPath {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		}))
		creds := &fakeCreds{tok: &oauth2.Token{AccessToken: "x", RefreshToken: "r"}}
		err := client.Get(context.Background(), creds, "/orders", nil, nil)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Zero(t, creds.rotated)
	})

	t.Run("anonymous 401 is a plain API error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"INVALID_LOGIN_CREDENTIALS"}}`))
		}))
		err := client.Post(context.Background(), nil, "/admin/signin", map[string]string{}, nil)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Equal(t, "INVALID_LOGIN_CREDENTIALS", apiErr.Code())
		assert.False(t, errors.Is(err, ErrUnauthorized))
	})
}

func TestExtractMessage(t *testing.T) {
	cases := map[string]string{
		`{"error":{"message":"EMAIL_EXISTS"}}`:        "EMAIL_EXISTS",
		`{"error":"Order not found"}`:                  "Order not found",
		`{"msg":"Token has expired"}`:                  "Token has expired",
		`{"message":"Invalid file"}`:                   "Invalid file",
		`{"error":{"code":400}}`:                       "",
		`{}`:                                           "",
		`plain text failure`:                           "plain text failure",
		`<html><body>Bad Gateway</body></html>`:        "",
		``:                                             "",
		`{"error":"", "msg":"fallback to next field"}`: "fallback to next field",
	}
	for body, want := range cases {
		assert.Equal(t, want, ExtractMessage([]byte(body)), body)
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, ExpiredErrorMessage, Message(ErrUnauthorized))
	assert.Equal(t, "Order not found", Message(&APIError{Status: 404, Message: "Order not found"}))
	assert.Equal(t, GenericErrorMessage, Message(&APIError{Status: 500}))
	assert.Equal(t, NetworkErrorMessage, Message(ErrNetwork))
	assert.True(t, IsNotFound(&APIError{Status: 404}))
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := New(Options{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)
	err = client.Get(context.Background(), nil, "/orders", nil, nil)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestUpload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("invoice_id"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "orders.xlsx", header.Filename)
		assert.Equal(t, "spreadsheet-bytes", string(content))
		json.NewEncoder(w).Encode(map[string]any{"message": "ok", "inserted": 3})
	}))

	var out struct {
		Inserted int `json:"inserted"`
	}
	err := client.Upload(context.Background(), &fakeCreds{tok: &oauth2.Token{AccessToken: "t"}}, "/upload-orders", File{
		Field:   "file",
		Name:    "orders.xlsx",
		Content: strings.NewReader("spreadsheet-bytes"),
		Fields:  map[string]string{"invoice_id": "42"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Inserted)
}

func TestCookiesArePerSession(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("backend_sid"); err == nil {
			w.Write([]byte(`"` + c.Value + `"`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "backend_sid", Value: r.URL.Query().Get(AuthParam), Path: "/"})
		w.Write([]byte(`"none"`))
	}))

	newJar := func() http.CookieJar {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		require.NoError(t, err)
		return jar
	}
	alice := &fakeCreds{tok: &oauth2.Token{AccessToken: "alice"}, jar: newJar()}
	bob := &fakeCreds{tok: &oauth2.Token{AccessToken: "bob"}, jar: newJar()}

	var got string
	require.NoError(t, client.Get(context.Background(), alice, "/whoami", nil, &got))
	assert.Equal(t, "none", got)
	require.NoError(t, client.Get(context.Background(), alice, "/whoami", nil, &got))
	assert.Equal(t, "alice", got)
	require.NoError(t, client.Get(context.Background(), bob, "/whoami", nil, &got))
	assert.Equal(t, "none", got)
}

func TestDownload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/invoice/9/pdf" {
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4 body"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Invoice not found"}`))
	}))
	creds := &fakeCreds{tok: &oauth2.Token{AccessToken: "t"}}

	blob, err := client.Download(context.Background(), creds, "/invoice/9/pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", blob.ContentType)
	assert.Equal(t, "%PDF-1.4 body", string(blob.Data))

	_, err = client.Download(context.Background(), creds, "/invoice/10/pdf", nil)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Invoice not found", Message(err))
}
