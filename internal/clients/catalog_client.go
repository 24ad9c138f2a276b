// internal/clients/catalog_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ledgerlib/internal/catalog"
	"ledgerlib/internal/journal"
)

// CatalogClient talks to the catalog HTTP service. Error responses are mapped
// back onto the catalog sentinel errors so callers can use errors.Is.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *CatalogClient) do(ctx context.Context, method, path string, body, out interface{}, want int) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return responseError(resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func responseError(status int, msg string) error {
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", catalog.ErrInvalidData, msg)
	case http.StatusNotFound:
		return catalog.ErrNotFound
	case http.StatusConflict:
		return catalog.ErrNotAvailable
	case http.StatusNotImplemented:
		return catalog.ErrHistoryUnavailable
	}
	return fmt.Errorf("unexpected status code: %d: %s", status, msg)
}

func (c *CatalogClient) CreateItem(ctx context.Context, title, owner string) (uint32, error) {
	req := struct {
		Title string `json:"title"`
		Owner string `json:"owner"`
	}{Title: title, Owner: owner}

	var resp struct {
		ID uint32 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/items", req, &resp, http.StatusCreated); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// GetItem mirrors Service.GetItem: a missing item is (nil, false, nil).
func (c *CatalogClient) GetItem(ctx context.Context, id uint32) (*catalog.Item, bool, error) {
	var item catalog.Item
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/items/%d", id), nil, &item, http.StatusOK)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &item, true, nil
}

func (c *CatalogClient) Loan(ctx context.Context, id uint32) error {
	return c.transition(ctx, id, "loan")
}

func (c *CatalogClient) ReturnItem(ctx context.Context, id uint32) error {
	return c.transition(ctx, id, "return")
}

func (c *CatalogClient) Reserve(ctx context.Context, id uint32) error {
	return c.transition(ctx, id, "reserve")
}

func (c *CatalogClient) transition(ctx context.Context, id uint32, op string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/items/%d/%s", id, op), nil, nil, http.StatusNoContent)
}

func (c *CatalogClient) SetStatus(ctx context.Context, id uint32, status catalog.Status) error {
	req := struct {
		Status catalog.Status `json:"status"`
	}{Status: status}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/items/%d/status", id), req, nil, http.StatusNoContent)
}

func (c *CatalogClient) ListAll(ctx context.Context) ([]catalog.Item, error) {
	return c.list(ctx, "/items")
}

func (c *CatalogClient) ListAvailable(ctx context.Context) ([]catalog.Item, error) {
	return c.list(ctx, "/items?status=available")
}

func (c *CatalogClient) list(ctx context.Context, path string) ([]catalog.Item, error) {
	items := []catalog.Item{}
	if err := c.do(ctx, http.MethodGet, path, nil, &items, http.StatusOK); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *CatalogClient) History(ctx context.Context, id uint32) ([]journal.Event, error) {
	var events []journal.Event
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/items/%d/history", id), nil, &events, http.StatusOK); err != nil {
		return nil, err
	}
	return events, nil
}
