package avail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// SidecarSubmitter implements BatchSubmitter against the wallet sidecar,
// the external process that holds the Avail signing key. The sidecar
// accepts a transfer+remark batch and exposes the extrinsic's phase until
// it finalizes; this client maps that into phase reports.
type SidecarSubmitter struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
}

func NewSidecarSubmitter(baseURL string, timeout time.Duration) *SidecarSubmitter {
	return &SidecarSubmitter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		pollInterval: time.Second,
	}
}

type submitRequest struct {
	Amount string `json:"amount"`
	Remark string `json:"remark"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Phase  string `json:"phase"`
	TxHash string `json:"tx_hash,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SubmitTransferWithRemark submits the batch and polls the sidecar,
// forwarding each phase change until a terminal report is sent.
func (s *SidecarSubmitter) SubmitTransferWithRemark(ctx context.Context, amount decimal.Decimal, remark string, reports chan<- Report) error {
	id, err := s.submit(ctx, amount, remark)
	if err != nil {
		reports <- Report{Err: err}
		return err
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var lastPhase Phase
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, err := s.status(ctx, id)
		if err != nil {
			reports <- Report{Err: err}
			return err
		}

		if status.Error != "" {
			err := fmt.Errorf("sidecar: %s", status.Error)
			reports <- Report{Err: err}
			return err
		}

		phase := Phase(status.Phase)
		if phase == lastPhase {
			continue
		}
		lastPhase = phase

		reports <- Report{Phase: phase, TxHash: status.TxHash}
		if phase == PhaseFinalized {
			return nil
		}
	}
}

func (s *SidecarSubmitter) submit(ctx context.Context, amount decimal.Decimal, remark string) (string, error) {
	body, err := json.Marshal(submitRequest{Amount: amount.String(), Remark: remark})
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v1/extrinsics/transfer", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit extrinsic: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		// The sidecar relays wallet errors verbatim, including the
		// user-rejection message the failure classifier matches on.
		return "", fmt.Errorf("sidecar http %d: %s", resp.StatusCode, string(raw))
	}

	var parsed submitResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse submit response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("sidecar returned no extrinsic id")
	}
	return parsed.ID, nil
}

func (s *SidecarSubmitter) status(ctx context.Context, id string) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/v1/extrinsics/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch extrinsic status: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sidecar http %d: %s", resp.StatusCode, string(raw))
	}

	var parsed statusResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse status response: %w", err)
	}
	return &parsed, nil
}
