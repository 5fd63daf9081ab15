package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/copyvault/trader/pkg/aptos"
	"github.com/copyvault/trader/pkg/models"
)

const (
	// DefaultModuleAddress is the mainnet deployment of the vault module.
	DefaultModuleAddress = "0x71940f0f7409ef0324c67cca8c9c191682118b19df6b7e2852ffcd23a0d407a1"
	DefaultModuleName    = "perps_vault"
)

// ErrVaultNotFound is returned by reads against an owner that has never
// created a vault. Callers can branch on it without inspecting node errors.
var ErrVaultNotFound = errors.New("vault: no vault exists for this owner")

// ErrNoSubmitter is returned by mutating calls when the client was built
// without a transaction submitter.
var ErrNoSubmitter = errors.New("vault: no transaction submitter configured")

// TransactionSubmitter signs and submits an entry-function call and returns
// the transaction hash. It is satisfied by whatever wallet integration the
// host application provides; this package never touches key material.
type TransactionSubmitter interface {
	SignAndSubmitTransaction(ctx context.Context, payload aptos.EntryFunctionPayload) (string, error)
}

type Config struct {
	ModuleAddress string
	ModuleName    string
}

// Client wraps the copy-trading vault contract. View calls only need a node
// client; entry-function calls additionally need a TransactionSubmitter.
type Client struct {
	cfg       Config
	node      *aptos.Client
	submitter TransactionSubmitter
	logger    *logrus.Logger
}

func NewClient(cfg Config, node *aptos.Client, submitter TransactionSubmitter, logger *logrus.Logger) *Client {
	if cfg.ModuleAddress == "" {
		cfg.ModuleAddress = DefaultModuleAddress
	}
	if cfg.ModuleName == "" {
		cfg.ModuleName = DefaultModuleName
	}
	return &Client{cfg: cfg, node: node, submitter: submitter, logger: logger}
}

func (c *Client) function(name string) string {
	return fmt.Sprintf("%s::%s::%s", c.cfg.ModuleAddress, c.cfg.ModuleName, name)
}

func (c *Client) submit(ctx context.Context, name string, args []interface{}) (string, error) {
	if c.submitter == nil {
		return "", ErrNoSubmitter
	}

	payload := aptos.EntryFunctionPayload{
		Function:      c.function(name),
		TypeArguments: []string{},
		Arguments:     args,
	}

	hash, err := c.submitter.SignAndSubmitTransaction(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("failed to submit %s: %w", name, err)
	}

	c.logger.WithFields(logrus.Fields{
		"function": name,
		"txn":      hash,
	}).Info("Vault transaction submitted")

	if err := c.node.WaitForTransaction(ctx, hash); err != nil {
		return hash, err
	}
	return hash, nil
}

// CreateVault creates a vault following traderAddress, funded with
// collateralAPT and capped at maxLeverage. Returns the transaction hash.
func (c *Client) CreateVault(ctx context.Context, traderAddress string, collateralAPT float64, maxLeverage int) (string, error) {
	return c.submit(ctx, "create_vault", []interface{}{
		traderAddress,
		AptToOctas(collateralAPT),
		strconv.Itoa(maxLeverage),
	})
}

func (c *Client) AddCollateral(ctx context.Context, amountAPT float64) (string, error) {
	return c.submit(ctx, "add_collateral", []interface{}{AptToOctas(amountAPT)})
}

func (c *Client) WithdrawCollateral(ctx context.Context, amountAPT float64) (string, error) {
	return c.submit(ctx, "withdraw_collateral", []interface{}{AptToOctas(amountAPT)})
}

// ToggleVaultStatus flips the caller's vault between active and paused.
func (c *Client) ToggleVaultStatus(ctx context.Context) (string, error) {
	return c.submit(ctx, "toggle_vault_status", []interface{}{})
}

func (c *Client) view(ctx context.Context, name string, args []string) ([]json.RawMessage, error) {
	return c.node.View(ctx, &aptos.ViewRequest{
		Function:  c.function(name),
		Arguments: args,
	})
}

// VaultExists reports whether ownerAddress has a vault by fetching the
// PerpsVault resource directly. A missing resource or account counts as no
// vault; transient node failures propagate as errors.
func (c *Client) VaultExists(ctx context.Context, ownerAddress string) (bool, error) {
	resourceType := fmt.Sprintf("%s::%s::PerpsVault", c.cfg.ModuleAddress, c.cfg.ModuleName)
	if _, err := c.node.GetAccountResource(ctx, ownerAddress, resourceType); err != nil {
		if aptos.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetVaultInfo returns the vault owned by ownerAddress, or ErrVaultNotFound
// if none exists. Transient node failures are returned as-is so callers can
// tell "no vault" apart from "node unavailable".
func (c *Client) GetVaultInfo(ctx context.Context, ownerAddress string) (*models.VaultInfo, error) {
	result, err := c.view(ctx, "get_vault_info", []string{ownerAddress})
	if err != nil {
		if aptos.IsNotFound(err) {
			return nil, ErrVaultNotFound
		}
		return nil, err
	}
	if len(result) < 4 {
		return nil, fmt.Errorf("get_vault_info returned %d values, expected 4", len(result))
	}

	info := &models.VaultInfo{}
	fields := []interface{}{&info.TraderFollowing, &info.Collateral, &info.MaxLeverage, &info.IsActive}
	for i, field := range fields {
		if err := json.Unmarshal(result[i], field); err != nil {
			return nil, fmt.Errorf("failed to decode get_vault_info value %d: %w", i, err)
		}
	}
	return info, nil
}

// GetTraderStats returns the aggregate follower stats for a trader, or
// ErrVaultNotFound when the trader is not registered.
func (c *Client) GetTraderStats(ctx context.Context, traderAddress string) (*models.TraderStats, error) {
	result, err := c.view(ctx, "get_trader_stats", []string{traderAddress})
	if err != nil {
		if aptos.IsNotFound(err) {
			return nil, ErrVaultNotFound
		}
		return nil, err
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("get_trader_stats returned %d values, expected 3", len(result))
	}

	stats := &models.TraderStats{}
	fields := []*uint64{&stats.TotalFollowers, &stats.TotalPositions, &stats.WinRate}
	for i, field := range fields {
		v, err := decodeU64(result[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decode get_trader_stats value %d: %w", i, err)
		}
		*field = v
	}
	return stats, nil
}

// GetPositionCount returns how many mirrored positions a vault currently
// holds open.
func (c *Client) GetPositionCount(ctx context.Context, ownerAddress string) (uint64, error) {
	result, err := c.view(ctx, "get_position_count", []string{ownerAddress})
	if err != nil {
		if aptos.IsNotFound(err) {
			return 0, ErrVaultNotFound
		}
		return 0, err
	}
	if len(result) == 0 {
		return 0, fmt.Errorf("get_position_count returned no values")
	}
	return decodeU64(result[0])
}

// decodeU64 handles the node's u64 encoding, which is a decimal string.
func decodeU64(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseUint(s, 10, 64)
}
