// Package recorder talks to the remote car-entries API.
package recorder

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

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/repository"
)

const defaultTimeout = 10 * time.Second

// Client implements repository.EntryRepository over HTTP.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpc: httpc}
}

type enterRequest struct {
	Numberplate string `json:"numberplate"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) Enter(ctx context.Context, plate string) (*model.CarEntry, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return nil, repository.ErrEmptyPlate
	}

	var entry model.CarEntry
	if err := c.do(ctx, http.MethodPost, "/car-entries/enter", enterRequest{Numberplate: plate}, &entry); err != nil {
		return nil, fmt.Errorf("enter %s: %w", plate, err)
	}
	return &entry, nil
}

func (c *Client) Exit(ctx context.Context) (*model.CarEntry, error) {
	var entry model.CarEntry
	err := c.do(ctx, http.MethodPost, "/car-entries/exit", struct{}{}, &entry)
	if err != nil {
		return nil, fmt.Errorf("exit: %w", err)
	}
	entry.Derive()
	return &entry, nil
}

func (c *Client) Pending(ctx context.Context) ([]model.CarEntry, error) {
	entries := []model.CarEntry{}
	if err := c.do(ctx, http.MethodGet, "/car-entries/pending", nil, &entries); err != nil {
		return nil, fmt.Errorf("pending: %w", err)
	}
	return entries, nil
}

func (c *Client) Recent(ctx context.Context, limit int) ([]model.CarEntry, error) {
	query := url.Values{"limit": {strconv.Itoa(repository.ClampLimit(limit))}}
	entries := []model.CarEntry{}
	if err := c.do(ctx, http.MethodGet, "/car-entries?"+query.Encode(), nil, &entries); err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	return entries, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, path, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("bad JSON: %w", err)
	}
	return nil
}

func statusError(status int, path string, raw []byte) error {
	var er errorResponse
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		msg = er.Error
	}
	if status == http.StatusBadRequest && path == "/car-entries/exit" {
		return fmt.Errorf("%w: %s", repository.ErrNoOpenEntry, msg)
	}
	return fmt.Errorf("recording API %d: %s", status, msg)
}
