package aptos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const DefaultNodeURL = "https://fullnode.mainnet.aptoslabs.com"

// ErrResourceNotFound is returned when the node reports that an account,
// resource, or table item does not exist, as opposed to a transport or
// server failure.
var ErrResourceNotFound = errors.New("aptos: resource not found")

// APIError is a structured error response from a fullnode.
type APIError struct {
	StatusCode int
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aptos node error (%d %s): %s", e.StatusCode, e.ErrorCode, e.Message)
}

// IsNotFound reports whether err represents a missing account, resource, or
// table item rather than a transient failure.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrResourceNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode {
		case "resource_not_found", "account_not_found", "table_item_not_found":
			return true
		}
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// ViewRequest is the body of the fullnode view endpoint. Arguments are
// stringified the way Move expects them (u64 values as decimal strings).
type ViewRequest struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []string `json:"arguments"`
}

// EntryFunctionPayload describes an entry-function call for a wallet to
// sign and submit. This client never signs anything itself.
type EntryFunctionPayload struct {
	Function      string        `json:"function"`
	TypeArguments []string      `json:"type_arguments"`
	Arguments     []interface{} `json:"arguments"`
}

// Client is a read-only Aptos fullnode client covering the view, resource,
// and transaction-status endpoints the vault layer needs.
type Client struct {
	http   *resty.Client
	logger *logrus.Logger
}

func NewClient(nodeURL string, logger *logrus.Logger) *Client {
	if nodeURL == "" {
		nodeURL = DefaultNodeURL
	}

	httpClient := resty.New().
		SetBaseURL(nodeURL).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &Client{http: httpClient, logger: logger}
}

func (c *Client) parseError(resp *resty.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil {
		apiErr.Message = string(resp.Body())
	}
	if IsNotFound(apiErr) {
		return fmt.Errorf("%w: %s", ErrResourceNotFound, apiErr.Message)
	}
	return apiErr
}

// View invokes a Move view function and returns its raw return values in
// positional order.
func (c *Client) View(ctx context.Context, req *ViewRequest) ([]json.RawMessage, error) {
	if req.TypeArguments == nil {
		req.TypeArguments = []string{}
	}
	if req.Arguments == nil {
		req.Arguments = []string{}
	}

	var result []json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/v1/view")
	if err != nil {
		return nil, fmt.Errorf("view call %s failed: %w", req.Function, err)
	}
	if resp.IsError() {
		return nil, c.parseError(resp)
	}
	return result, nil
}

type accountResource struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// GetAccountResource fetches a typed resource from an account and returns
// its data field. A missing resource yields ErrResourceNotFound.
func (c *Client) GetAccountResource(ctx context.Context, address, resourceType string) (json.RawMessage, error) {
	var resource accountResource
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&resource).
		Get(fmt.Sprintf("/v1/accounts/%s/resource/%s", address, resourceType))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch resource %s: %w", resourceType, err)
	}
	if resp.IsError() {
		return nil, c.parseError(resp)
	}
	return resource.Data, nil
}

type transactionStatus struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	VMStatus string `json:"vm_status"`
}

// WaitForTransaction polls the node until the transaction with the given
// hash lands on chain. It returns nil for a successful execution and the
// VM status as an error for a failed one.
func (c *Client) WaitForTransaction(ctx context.Context, txnHash string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		var status transactionStatus
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&status).
			Get("/v1/transactions/by_hash/" + txnHash)
		if err == nil && !resp.IsError() && status.Type != "pending_transaction" {
			if status.Success {
				return nil
			}
			return fmt.Errorf("transaction %s failed: %s", txnHash, status.VMStatus)
		}
		if err != nil {
			c.logger.WithError(err).WithField("txn", txnHash).Debug("Transaction poll failed, retrying")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for transaction %s: %w", txnHash, ctx.Err())
		case <-ticker.C:
		}
	}
}
