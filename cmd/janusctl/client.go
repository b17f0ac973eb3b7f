package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/BrandonDHaskell/Janus/internal/janus/types"
)

type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{base: strings.TrimRight(base, "/"), http: http.DefaultClient}
}

type apiError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("%s: %s (http %d)", e.Code, e.Message, e.Status)
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// setAccess uses the per-record route for a single id and the bulk route
// otherwise.
func (c *client) setAccess(ctx context.Context, verb string, all bool, ids []string) (any, error) {
	ids = trimIDs(ids)
	switch {
	case all:
		var resp types.CountResponse
		err := c.do(ctx, "POST", "/v1/extensions/"+verb, types.SelectionRequest{All: true}, &resp)
		return resp, err
	case len(ids) == 0:
		return nil, fmt.Errorf("%s needs at least one id or --all", verb)
	case len(ids) == 1:
		var resp types.RecordResponse
		err := c.do(ctx, "POST", "/v1/extensions/"+escape(ids[0])+"/"+verb, nil, &resp)
		return resp, err
	default:
		var resp types.CountResponse
		err := c.do(ctx, "POST", "/v1/extensions/"+verb, types.SelectionRequest{IDs: ids}, &resp)
		return resp, err
	}
}

func (c *client) deleteRecords(ctx context.Context, ids []string) (any, error) {
	ids = trimIDs(ids)
	switch len(ids) {
	case 0:
		return nil, errors.New("delete needs at least one id")
	case 1:
		var resp types.RecordResponse
		err := c.do(ctx, "DELETE", "/v1/extensions/"+escape(ids[0]), nil, &resp)
		return resp, err
	default:
		var resp types.CountResponse
		err := c.do(ctx, "POST", "/v1/extensions/delete", types.SelectionRequest{IDs: ids}, &resp)
		return resp, err
	}
}

func escape(s string) string { return url.PathEscape(s) }
