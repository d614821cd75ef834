package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/tidwall/gjson"
	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/store"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOrderNotPending   = errors.New("only pending orders can be changed")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidUpload     = errors.New("invalid upload")
)

// Backend is the REST client the services call. *apiclient.Client implements it.
type Backend interface {
	Do(ctx context.Context, creds apiclient.Credentials, req apiclient.Request, out any) error
}

// ClientMeta describes the browser behind a request.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// Upload is a file received from the browser, already size-limited by the handler.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.ReadSeeker
}

// caller sends backend requests on behalf of a workspace and expires the session
// when the backend still answers 401 after the token refresh.
type caller struct {
	backend Backend
	auth    *AuthService
}

func (c caller) do(ctx context.Context, ws *store.Workspace, req apiclient.Request, out any) error {
	err := c.backend.Do(ctx, c.auth.Credentials(ws), req, out)
	if errors.Is(err, apiclient.ErrUnauthorized) {
		c.auth.ExpireSession(ctx, ws)
	}
	if err != nil {
		logger.FromContext(ctx).Debug("Backend call failed", "method", req.Method, "path", req.Path, "error", err)
	}
	return err
}

// list fetches a collection. The backend answers either a bare array or an object
// wrapping it under one of keys.
func (c caller) list(ctx context.Context, ws *store.Workspace, req apiclient.Request, out any, keys ...string) error {
	var raw json.RawMessage
	if err := c.do(ctx, ws, req, &raw); err != nil {
		return err
	}
	return decodeList(raw, out, keys...)
}

func decodeList(raw json.RawMessage, out any, keys ...string) error {
	if len(raw) == 0 {
		return nil
	}
	doc := gjson.ParseBytes(raw)
	if doc.IsArray() {
		return unmarshalList(doc.Raw, out)
	}
	for _, key := range slices.Concat(keys, []string{"data", "items", "results"}) {
		if r := doc.Get(key); r.IsArray() {
			return unmarshalList(r.Raw, out)
		}
	}
	return nil
}

func unmarshalList(raw string, out any) error {
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode list: %w", err)
	}
	return nil
}

func uploadFile(field string, up Upload, fields map[string]string) apiclient.File {
	return apiclient.File{
		Field:       field,
		Name:        up.Name,
		ContentType: up.ContentType,
		Content:     up.Content,
		Fields:      fields,
	}
}
