package rails

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bullionworks/checkout/models"
	"go.uber.org/zap"
)

// WireDeskClient fetches the customer's wire instructions, used both for
// deposit remainders and for standalone account funding.
type WireDeskClient struct {
	railClient
	Logger *zap.SugaredLogger
}

func NewWireDeskClient(address string, timeout time.Duration, logger *zap.SugaredLogger) *WireDeskClient {
	return &WireDeskClient{
		railClient: railClient{address: address, timeout: timeout},
		Logger:     logger,
	}
}

func (c *WireDeskClient) Instructions(ctx context.Context, customerID string) (models.WireInstructions, error) {
	var instructions models.WireInstructions

	status, raw, err := c.do(ctx, http.MethodGet, "/api/customers/"+customerID+"/wire-instructions", nil)
	if err != nil {
		return instructions, fmt.Errorf("failed to fetch wire instructions: %w", err)
	}
	if status != http.StatusOK {
		return instructions, fmt.Errorf("failed to fetch wire instructions: %s", failureReason(raw, status))
	}

	if err := json.Unmarshal(raw, &instructions); err != nil {
		return instructions, fmt.Errorf("failed to decode wire instructions: %w", err)
	}

	return instructions, nil
}
