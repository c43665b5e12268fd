// Package telephony is the Zadarma provider adapter: the signed REST client
// that places callback calls, and the webhook endpoint that feeds call
// outcomes into the core processor. No business logic lives here.
package telephony

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"clinic-concierge/internal/config"
	"clinic-concierge/internal/phone"
	"clinic-concierge/pkg/logger"
)

const defaultBaseURL = "https://api.zadarma.com"

// Client talks to the Zadarma REST API. Requests are authenticated with the
// provider's scheme: an HMAC-SHA1 over method+query+md5(query), hex-encoded
// and then base64-encoded, sent as "key:signature".
type Client struct {
	key     string
	secret  string
	baseURL string
	from    string
	http    *http.Client
}

func NewClient(cfg config.ZadarmaConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		key:     cfg.APIKey,
		secret:  cfg.APISecret,
		baseURL: strings.TrimRight(base, "/"),
		from:    cfg.MainPhone,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// apiResponse is the envelope every Zadarma endpoint returns.
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Dial requests a callback call from the main clinic number to toNumber.
// The provider accepts the request asynchronously; the actual outcome
// arrives later on the webhook. Dial implements calls.Dialer.
func (c *Client) Dial(ctx context.Context, toNumber string) error {
	params := url.Values{}
	params.Set("from", c.from)
	params.Set("to", phone.ToProviderFormat(toNumber))

	var resp apiResponse
	if err := c.get(ctx, "/v1/request/callback/", params, &resp); err != nil {
		return err
	}
	if resp.Status != "success" {
		return fmt.Errorf("callback rejected: %s", resp.Message)
	}
	return nil
}

// Health verifies credentials against the SIP listing endpoint.
func (c *Client) Health(ctx context.Context) error {
	var resp apiResponse
	if err := c.get(ctx, "/v1/sip/", url.Values{}, &resp); err != nil {
		return err
	}
	if resp.Status != "success" {
		return fmt.Errorf("zadarma auth failed: %s", resp.Message)
	}
	return nil
}

func (c *Client) get(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("format", "json")
	query := sortedEncode(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+method+"?"+query, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authHeader(method, query))

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("zadarma request %s: %w", method, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("zadarma response %s: %w", method, err)
	}
	logger.From(ctx).Debug("zadarma response", "method", method, "status", res.StatusCode)

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("zadarma response %s: invalid json: %w", method, err)
	}
	return nil
}

// authHeader builds the provider's Authorization value for a query string.
func (c *Client) authHeader(method, query string) string {
	sum := md5.Sum([]byte(query))
	data := method + query + hex.EncodeToString(sum[:])

	mac := hmac.New(sha1.New, []byte(c.secret))
	mac.Write([]byte(data))
	// The provider signs over the hex digest, not the raw MAC bytes.
	signature := base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(mac.Sum(nil))))

	return c.key + ":" + signature
}

// sortedEncode encodes params with keys in ascending order, matching the
// string the provider signs on its side.
func sortedEncode(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(k)))
	}
	return b.String()
}
