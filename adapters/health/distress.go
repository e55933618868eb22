package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/layer-3/fluxauth/ports"
)

// distressResponse is the envelope returned by the node's DOS state endpoint.
type distressResponse struct {
	Status string `json:"status"`
	Data   struct {
		DOSState              int     `json:"dosState"`
		DOSMessage            *string `json:"dosMessage"`
		NodeHardwareSpecsGood *bool   `json:"nodeHardwareSpecsGood"`
	} `json:"data"`
}

// HTTPDistressReporter fetches the distress state from a JSON endpoint.
type HTTPDistressReporter struct {
	client *http.Client
	url    string
}

var _ ports.DistressReporter = (*HTTPDistressReporter)(nil)

func NewHTTPDistressReporter(url string, timeout time.Duration) *HTTPDistressReporter {
	return &HTTPDistressReporter{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

// DistressState returns OK=false when the endpoint answers with an error
// status. Transport and decoding failures are returned as errors.
func (r *HTTPDistressReporter) DistressState(ctx context.Context) (ports.DistressState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return ports.DistressState{}, fmt.Errorf("failed to build distress request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return ports.DistressState{}, fmt.Errorf("failed to fetch distress state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.DistressState{}, fmt.Errorf("distress endpoint returned %s", resp.Status)
	}

	var body distressResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ports.DistressState{}, fmt.Errorf("failed to decode distress state: %w", err)
	}
	if body.Status != "success" {
		return ports.DistressState{OK: false, HardwareAdequate: true}, nil
	}

	state := ports.DistressState{
		OK:               true,
		Severity:         body.Data.DOSState,
		Message:          body.Data.DOSMessage,
		HardwareAdequate: true,
	}
	if body.Data.NodeHardwareSpecsGood != nil {
		state.HardwareAdequate = *body.Data.NodeHardwareSpecsGood
	}
	return state, nil
}

// CalmReporter always reports a healthy node. Used when no distress endpoint
// is configured.
type CalmReporter struct{}

var _ ports.DistressReporter = CalmReporter{}

func (CalmReporter) DistressState(context.Context) (ports.DistressState, error) {
	return ports.DistressState{OK: true, HardwareAdequate: true}, nil
}
