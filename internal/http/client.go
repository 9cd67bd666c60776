package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mutdb/internal/model"
	"mutdb/pkg/dberrors"
	"mutdb/pkg/store"
	"mutdb/pkg/types"
)

// Client talks to a running Server. It has the same method set as the local
// account service, so the CLI can use either.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Upsert(ctx context.Context, rows ...model.Account) error {
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}
	_, err = c.do(ctx, http.MethodPut, "/api/rows", nil, body)
	return err
}

func (c *Client) Delete(ctx context.Context, ids ...types.RowID) error {
	for _, id := range ids {
		if _, err := c.do(ctx, http.MethodDelete, "/api/rows/"+url.PathEscape(id), nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Get(ctx context.Context, id types.RowID) (model.Account, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/rows/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return model.Account{}, err
	}
	if resp.Row == nil {
		return model.Account{}, fmt.Errorf("GET %s: empty row", id)
	}
	return *resp.Row, nil
}

func (c *Client) Scan(ctx context.Context, f model.Filter) ([]model.Account, error) {
	q := url.Values{}
	if f.Currency != "" {
		q.Set("currency", f.Currency)
	}
	if f.Min != nil {
		q.Set("min", strconv.FormatInt(*f.Min, 10))
	}
	if f.Max != nil {
		q.Set("max", strconv.FormatInt(*f.Max, 10))
	}

	resp, err := c.do(ctx, http.MethodGet, "/api/rows", q, nil)
	if err != nil {
		return nil, err
	}
	if resp.Rows == nil {
		return []model.Account{}, nil
	}
	return resp.Rows, nil
}

func (c *Client) Flush(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/flush", nil, nil)
	return err
}

func (c *Client) Stats(ctx context.Context) (store.Stats, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/stats", nil, nil)
	if err != nil {
		return store.Stats{}, err
	}
	if resp.Stats == nil {
		return store.Stats{}, fmt.Errorf("GET stats: empty body")
	}
	return *resp.Stats, nil
}

func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return Response{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s failed: %w", method, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	var out Response
	if err := json.Unmarshal(b, &out); err != nil {
		return Response{}, fmt.Errorf("decode: %w body=%s", err, string(b))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return out, nil
	case resp.StatusCode == http.StatusNotFound:
		return out, fmt.Errorf("%w: %s", dberrors.ErrNotFound, out.Error)
	case resp.StatusCode == http.StatusBadRequest:
		return out, fmt.Errorf("%w: %s", dberrors.ErrInvalidArgument, out.Error)
	default:
		return out, fmt.Errorf("%s status=%d error=%s", method, resp.StatusCode, out.Error)
	}
}
