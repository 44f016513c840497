package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/availops/creditflow/internal/core/domain"
)

// User is the backend's user object, reduced to what this system reads.
type User struct {
	ID            int64           `json:"id"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
}

// GetUser fetches the authenticated user, including the main credit
// balance the reconciliation poller watches.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/v1/user/get_user", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreditBalance returns just the main credit balance.
func (c *Client) CreditBalance(ctx context.Context) (decimal.Decimal, error) {
	user, err := c.GetUser(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return user.CreditBalance, nil
}

// EstimateCredits asks the backend how many credits a token amount buys.
// Display-only: estimation failures never block a purchase.
func (c *Client) EstimateCredits(ctx context.Context, amount decimal.Decimal, tokenAddress string, chainID domain.ChainID) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("amount", amount.String())
	query.Set("token_address", tokenAddress)
	query.Set("chain_id", chainID.String())

	var resp struct {
		Data decimal.Decimal `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/user/estimate_credits_against_token", query, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Data, nil
}
