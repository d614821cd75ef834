package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/metrics"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// AuthParam is the query parameter carrying the session id token.
	AuthParam   = "auth"
	RefreshPath = "/admin/token/refresh"

	maxResponseBytes = 16 << 20
)

// Credentials supplies the token of the calling session and receives rotated tokens.
// Implementations must be safe for concurrent use.
type Credentials interface {
	Token() *oauth2.Token
	Rotate(ctx context.Context, tok *oauth2.Token)
}

// RefreshLocker is implemented by credentials whose concurrent requests must share
// a single token refresh.
type RefreshLocker interface {
	RefreshLock() sync.Locker
}

// CookieSource is implemented by credentials that keep backend cookies per session.
type CookieSource interface {
	Jar() http.CookieJar
}

// File is a multipart file part.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
	Fields      map[string]string
}

// Blob receives a non-JSON answer, such as a PDF document.
type Blob struct {
	ContentType string
	Data        []byte
}

// Request describes one backend call. File takes precedence over Body.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	File   *File
}

type Options struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	Metrics       *metrics.Metrics
	HTTPClient    *http.Client
}

// Client is the single configured client to the backend REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL %q: %w", opts.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q: scheme and host are required", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    opts.Metrics,
	}, nil
}

func (c *Client) Get(ctx context.Context, creds Credentials, path string, query url.Values, out any) error {
	return c.Do(ctx, creds, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, creds Credentials, path string, body, out any) error {
	return c.Do(ctx, creds, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, creds Credentials, path string, body, out any) error {
	return c.Do(ctx, creds, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, creds Credentials, path string, out any) error {
	return c.Do(ctx, creds, Request{Method: http.MethodDelete, Path: path}, out)
}

func (c *Client) Upload(ctx context.Context, creds Credentials, path string, file File, out any) error {
	return c.Do(ctx, creds, Request{Method: http.MethodPost, Path: path, File: &file}, out)
}

// Download fetches a binary document such as an invoice PDF.
func (c *Client) Download(ctx context.Context, creds Credentials, path string, query url.Values) (Blob, error) {
	var blob Blob
	err := c.Do(ctx, creds, Request{Method: http.MethodGet, Path: path, Query: query}, &blob)
	return blob, err
}

// Do sends req with the session token of creds and decodes a 2xx JSON answer into out.
// A 401 triggers exactly one token refresh followed by one replay.
func (c *Client) Do(ctx context.Context, creds Credentials, req Request, out any) error {
	payload, contentType, err := req.encode()
	if err != nil {
		return err
	}

	sent := accessToken(creds)
	resp, err := c.send(ctx, creds, sent, req, payload, contentType)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && sent != "" {
		drain(resp)
		if err := c.refreshOnce(ctx, creds, sent); err != nil {
			return err
		}
		resp, err = c.send(ctx, creds, accessToken(creds), req, payload, contentType)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return fmt.Errorf("%w: %s %s rejected after token refresh", ErrUnauthorized, req.Method, req.Path)
		}
	}
	defer resp.Body.Close()

	return decode(resp, out)
}

// send issues one request carrying token, when set, as the auth parameter.
func (c *Client) send(ctx context.Context, creds Credentials, token string, req Request, payload []byte, contentType string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	u := c.resolve(req.Path, req.Query)
	if token != "" {
		q := u.Query()
		q.Set(AuthParam, token)
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", req.Method, req.Path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	var jar http.CookieJar
	if cs, ok := creds.(CookieSource); ok {
		jar = cs.Jar()
	}
	if jar != nil {
		for _, cookie := range jar.Cookies(u) {
			httpReq.AddCookie(cookie)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveUpstream(req.Method, req.Path, 0, time.Since(start))
		logger.FromContext(ctx).Warn("Backend request failed", "method", req.Method, "path", req.Path, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	c.metrics.ObserveUpstream(req.Method, req.Path, resp.StatusCode, time.Since(start))
	logger.FromContext(ctx).Debug("Backend request", "method", req.Method, "path", req.Path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if jar != nil {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			jar.SetCookies(u, cookies)
		}
	}
	return resp, nil
}

// refreshOnce refreshes the tokens of creds after stale was rejected. Requests of the
// same session wait for each other, and a request whose token was already rotated
// by another one replays without refreshing again.
func (c *Client) refreshOnce(ctx context.Context, creds Credentials, stale string) error {
	if rl, ok := creds.(RefreshLocker); ok {
		mu := rl.RefreshLock()
		mu.Lock()
		defer mu.Unlock()
	}
	if current := accessToken(creds); current != "" && current != stale {
		c.metrics.TokenRefresh("shared")
		return nil
	}
	return c.refresh(ctx, creds)
}

// refresh exchanges the refresh token of creds for a new token pair and hands it to creds.
func (c *Client) refresh(ctx context.Context, creds Credentials) error {
	tok := creds.Token()
	if tok == nil || tok.RefreshToken == "" {
		c.metrics.TokenRefresh("unavailable")
		return fmt.Errorf("%w: no refresh token", ErrUnauthorized)
	}

	req := Request{Method: http.MethodPost, Path: RefreshPath, Body: map[string]string{"refresh_token": tok.RefreshToken}}
	payload, contentType, err := req.encode()
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, nil, "", req, payload, contentType)
	if err != nil {
		c.metrics.TokenRefresh("error")
		return fmt.Errorf("%w: refresh failed: %w", ErrUnauthorized, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil || resp.StatusCode/100 != 2 {
		c.metrics.TokenRefresh("rejected")
		return fmt.Errorf("%w: refresh rejected with status %d", ErrUnauthorized, resp.StatusCode)
	}

	rotated, ok := parseTokenPair(body)
	if !ok {
		c.metrics.TokenRefresh("rejected")
		return fmt.Errorf("%w: refresh response carried no token", ErrUnauthorized)
	}
	if rotated.RefreshToken == "" {
		rotated.RefreshToken = tok.RefreshToken
	}
	creds.Rotate(ctx, rotated)
	c.metrics.TokenRefresh("success")
	logger.FromContext(ctx).Info("Backend token refreshed")
	return nil
}

// parseTokenPair reads a refresh answer. Both camelCase and snake_case field names are accepted.
func parseTokenPair(body []byte) (*oauth2.Token, bool) {
	first := func(paths ...string) gjson.Result {
		for _, p := range paths {
			if r := gjson.GetBytes(body, p); r.Exists() && r.String() != "" {
				return r
			}
		}
		return gjson.Result{}
	}

	idToken := first("idToken", "id_token", "access_token").String()
	if idToken == "" {
		return nil, false
	}
	tok := &oauth2.Token{
		AccessToken:  idToken,
		RefreshToken: first("refreshToken", "refresh_token").String(),
	}
	if secs := first("expiresIn", "expires_in").Int(); secs > 0 {
		tok.Expiry = time.Now().Add(time.Duration(secs) * time.Second)
	}
	return tok, true
}

func (c *Client) resolve(path string, query url.Values) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return &u
}

func (r Request) encode() ([]byte, string, error) {
	if r.File != nil {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)

		keys := make([]string, 0, len(r.File.Fields))
		for k := range r.File.Fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if err := mw.WriteField(k, r.File.Fields[k]); err != nil {
				return nil, "", fmt.Errorf("write multipart field %s: %w", k, err)
			}
		}

		contentType := r.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, r.File.Field, r.File.Name))
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create multipart file part: %w", err)
		}
		if _, err := io.Copy(part, r.File.Content); err != nil {
			return nil, "", fmt.Errorf("copy upload content: %w", err)
		}
		if err := mw.Close(); err != nil {
			return nil, "", fmt.Errorf("close multipart body: %w", err)
		}
		return buf.Bytes(), mw.FormDataContentType(), nil
	}

	if r.Body == nil {
		return nil, "", nil
	}
	payload, err := json.Marshal(r.Body)
	if err != nil {
		return nil, "", fmt.Errorf("encode %s %s body: %w", r.Method, r.Path, err)
	}
	return payload, "application/json", nil
}

func decode(resp *http.Response, out any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrNetwork, err)
	}

	if resp.StatusCode/100 != 2 {
		return &APIError{Status: resp.StatusCode, Message: ExtractMessage(body)}
	}
	if blob, ok := out.(*Blob); ok {
		blob.ContentType = resp.Header.Get("Content-Type")
		blob.Data = body
		return nil
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}

func accessToken(creds Credentials) string {
	if creds == nil {
		return ""
	}
	if tok := creds.Token(); tok != nil {
		return tok.AccessToken
	}
	return ""
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
}
