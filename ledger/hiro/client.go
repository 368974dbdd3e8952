// Package hiro implements ledger.Client against the Hiro Stacks API.
package hiro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/smartcontractkit/stacks-batcher/ledger"
	"github.com/smartcontractkit/stacks-batcher/signer"
)

const (
	// MainnetURL is the public Hiro mainnet endpoint.
	MainnetURL = "https://api.mainnet.hiro.so"
	// TestnetURL is the public Hiro testnet endpoint.
	TestnetURL = "https://api.testnet.hiro.so"

	apiKeyHeader   = "x-api-key"
	defaultTimeout = 30 * time.Second
)

var _ ledger.Client = (*Client)(nil)

// Options configure a Client.
type Options struct {
	// APIKey is sent in the x-api-key header when set.
	APIKey string
	// Timeout bounds every request. Defaults to 30s.
	Timeout time.Duration
	// Debug enables resty request and response logging.
	Debug bool
}

// Client is a ledger.Client backed by the Hiro HTTP API.
type Client struct {
	baseURL string
	client  *resty.Client
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("hiro API URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	headers := map[string]string{"Accept": "application/json"}
	if opts.APIKey != "" {
		headers[apiKeyHeader] = opts.APIKey
	}

	return &Client{
		baseURL: baseURL,
		client: resty.New().
			SetBaseURL(baseURL).
			SetDebug(opts.Debug).
			SetTimeout(opts.Timeout).
			SetHeaders(headers),
	}, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type accountResponse struct {
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// Account implements ledger.Client.
func (c *Client) Account(ctx context.Context, address string) (ledger.AccountInfo, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("address", address).
		SetQueryParam("proof", "0").
		Get("/v2/accounts/{address}")
	if err != nil {
		return ledger.AccountInfo{}, transportError(ctx, "account", err)
	}
	if err = statusError("account", resp); err != nil {
		return ledger.AccountInfo{}, err
	}

	var body accountResponse
	if err = json.Unmarshal(resp.Body(), &body); err != nil {
		return ledger.AccountInfo{}, fmt.Errorf("failed to decode account %s: %w", address, err)
	}

	balance, err := parseBalance(body.Balance)
	if err != nil {
		return ledger.AccountInfo{}, fmt.Errorf("account %s: %w", address, err)
	}

	return ledger.AccountInfo{Address: address, Nonce: body.Nonce, Balance: balance}, nil
}

type rejectionResponse struct {
	Error      string          `json:"error"`
	Reason     string          `json:"reason"`
	ReasonData json.RawMessage `json:"reason_data"`
	TxID       string          `json:"txid"`
}

// Submit implements ledger.Client.
func (c *Client) Submit(ctx context.Context, payload signer.SignedPayload) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(payload.Raw).
		Post("/v2/transactions")
	if err != nil {
		return "", transportError(ctx, "submit", err)
	}

	if resp.StatusCode() == http.StatusBadRequest {
		var rej rejectionResponse
		if jerr := json.Unmarshal(resp.Body(), &rej); jerr != nil || rej.Reason == "" {
			return "", &ledger.RejectionError{
				Category: ledger.CategoryMalformed,
				Reason:   "Unknown",
				Data:     strings.TrimSpace(resp.String()),
			}
		}

		return "", ledger.ClassifyRejection(rej.Reason, reasonData(rej.ReasonData), payload.TxID, normalizeTxID(rej.TxID))
	}
	if err = statusError("submit", resp); err != nil {
		return "", err
	}

	var txid string
	if err = json.Unmarshal(resp.Body(), &txid); err != nil {
		// some nodes answer with a bare txid
		txid = strings.Trim(strings.TrimSpace(resp.String()), `"`)
	}
	if txid == "" {
		return "", errors.New("submit: empty txid in response")
	}

	return normalizeTxID(txid), nil
}

type txResponse struct {
	TxID     string `json:"tx_id"`
	TxStatus string `json:"tx_status"`
	TxResult *struct {
		Repr string `json:"repr"`
	} `json:"tx_result"`
	BlockHeight uint64 `json:"block_height"`
}

// Status implements ledger.Client.
func (c *Client) Status(ctx context.Context, txid string) (ledger.TxInfo, error) {
	txid = normalizeTxID(txid)

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("txid", txid).
		Get("/extended/v1/tx/{txid}")
	if err != nil {
		return ledger.TxInfo{}, transportError(ctx, "status", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ledger.TxInfo{}, fmt.Errorf("%s: %w", txid, ledger.ErrNotFound)
	}
	if err = statusError("status", resp); err != nil {
		return ledger.TxInfo{}, err
	}

	var body txResponse
	if err = json.Unmarshal(resp.Body(), &body); err != nil {
		return ledger.TxInfo{}, fmt.Errorf("failed to decode status of %s: %w", txid, err)
	}

	info := ledger.TxInfo{
		TxID:        txid,
		Status:      ledger.TxStatus(body.TxStatus),
		BlockHeight: body.BlockHeight,
	}
	if body.TxResult != nil {
		info.Result = body.TxResult.Repr
	}

	return info, nil
}

// transportError reports a failed round trip. Cancellation is returned as is so callers can
// stop instead of retrying.
func transportError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}

	return &ledger.TransientError{Op: op, Err: err}
}

// statusError maps non 2xx responses. Throttling and server errors are transient.
func statusError(op string, resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests, code >= 500:
		return &ledger.TransientError{
			Op:  op,
			Err: fmt.Errorf("hiro API returned status %d: %s", code, strings.TrimSpace(resp.String())),
		}
	default:
		return fmt.Errorf("%s: hiro API returned status %d: %s", op, code, strings.TrimSpace(resp.String()))
	}
}

func parseBalance(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}

	base := 10
	if strings.HasPrefix(s, "0x") {
		s, base = s[2:], 16
	}

	b, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("invalid balance %q", s)
	}

	return b, nil
}

func reasonData(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	return string(raw)
}

func normalizeTxID(txid string) string {
	if txid == "" || strings.HasPrefix(txid, "0x") {
		return txid
	}

	return "0x" + txid
}
