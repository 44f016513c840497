package api

import (
	"context"
	"net/http"

	"github.com/availops/creditflow/internal/core/domain"
)

// CreateOrder registers a pending purchase order for the given chain.
// The order must exist before any payment is submitted.
func (c *Client) CreateOrder(ctx context.Context, chainID domain.ChainID) (int64, error) {
	payload := struct {
		Chain int64 `json:"chain"`
	}{Chain: int64(chainID)}

	var resp struct {
		Data *struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/user/register_credit_request", nil, payload, &resp); err != nil {
		return 0, wrapOrderErr(err)
	}
	if resp.Data == nil {
		return 0, domain.Fail(domain.FailureOrderCreation, "Order creation returned no data", nil)
	}
	return resp.Data.ID, nil
}

// ReportInclusion attaches the on-chain transaction hash to an order so the
// backend can verify the payment and grant credits. By the time this is
// called the payment has already settled: a failure here means paid but not
// credited, and callers must treat it as such.
func (c *Client) ReportInclusion(ctx context.Context, orderID int64, txHash string) error {
	payload := struct {
		OrderID int64  `json:"order_id"`
		TxHash  string `json:"tx_hash"`
	}{OrderID: orderID, TxHash: txHash}

	if err := c.do(ctx, http.MethodPost, "/v1/user/add_inclusion_details", nil, payload, nil); err != nil {
		if domain.FailureOf(err) == domain.FailureNetwork {
			return domain.Fail(domain.FailureInclusionReport, "Transaction failed", err)
		}
		return domain.Fail(domain.FailureInclusionReport, err.Error(), err)
	}
	return nil
}

func wrapOrderErr(err error) error {
	if domain.FailureOf(err) != "" {
		return err
	}
	return domain.Fail(domain.FailureOrderCreation, err.Error(), err)
}
