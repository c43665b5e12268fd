// Package crm pulls the patient list from the Wlaunch booking system into
// the local client directory. The CRM is the source of truth for who counts
// as a clinic client; the bot only ever reads the local mirror.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clinic-concierge/internal/config"
)

const defaultBaseURL = "https://api.wlaunch.net/v1"

// Client is a read-only Wlaunch API client authenticated with a bearer key.
type Client struct {
	apiKey    string
	companyID string
	baseURL   string
	http      *http.Client
}

func NewClient(cfg config.CRMConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		apiKey:    cfg.APIKey,
		companyID: cfg.CompanyID,
		baseURL:   strings.TrimRight(base, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// APIClient is one patient record as the CRM returns it.
type APIClient struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type clientPage struct {
	Content []APIClient `json:"content"`
	Page    struct {
		TotalPages    int `json:"total_pages"`
		Number        int `json:"number"`
		TotalElements int `json:"total_elements"`
	} `json:"page"`
}

// Page is one page of the client listing.
type Page struct {
	Clients    []APIClient
	TotalPages int
}

// ListClients fetches one page of company clients, newest first. A non-zero
// createdStart/createdEnd narrows the listing to clients created in that
// window, which is how incremental sync avoids re-walking the whole book.
func (c *Client) ListClients(ctx context.Context, page, size int, createdStart, createdEnd time.Time) (Page, error) {
	params := url.Values{}
	params.Set("sort", "created,desc")
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(size))
	if !createdStart.IsZero() && !createdEnd.IsZero() {
		params.Set("createdStart", createdStart.UTC().Format("2006-01-02T15:04:05.000Z"))
		params.Set("createdEnd", createdEnd.UTC().Format("2006-01-02T15:04:05.999Z"))
	}

	endpoint := fmt.Sprintf("%s/company/%s/client?%s", c.baseURL, c.companyID, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("wlaunch request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return Page{}, fmt.Errorf("wlaunch response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("wlaunch status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var p clientPage
	if err := json.Unmarshal(body, &p); err != nil {
		return Page{}, fmt.Errorf("wlaunch response: invalid json: %w", err)
	}
	return Page{Clients: p.Content, TotalPages: p.Page.TotalPages}, nil
}

// Health fetches a single-element page to verify credentials.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.ListClients(ctx, 0, 1, time.Time{}, time.Time{})
	return err
}
