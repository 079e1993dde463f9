package rails

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// CardClient drives the two-phase card flow against the processor: an
// intent scoped to the order, then confirm with the authorization produced
// by the processor's client-side capture. Confirm is idempotent on the
// processor side; re-confirming a settled intent returns the original
// settlement facts with already_processed set.
type CardClient struct {
	railClient
	Logger *zap.SugaredLogger
}

func NewCardClient(address string, timeout time.Duration, logger *zap.SugaredLogger) *CardClient {
	return &CardClient{
		railClient: railClient{address: address, timeout: timeout},
		Logger:     logger,
	}
}

type cardIntentRequest struct {
	CustomerID string `json:"customer_id"`
	OrderID    string `json:"order_id"`
	IsDeposit  bool   `json:"is_deposit"`
}

func (c *CardClient) CreateIntent(ctx context.Context, customerID, orderID string, isDeposit bool) (CardIntent, error) {
	var intent CardIntent

	if c.address == "" {
		return intent, ErrNotConfigured
	}

	payload := cardIntentRequest{CustomerID: customerID, OrderID: orderID, IsDeposit: isDeposit}

	status, raw, err := c.do(ctx, http.MethodPost, "/api/intents", payload)
	if err != nil {
		return intent, fmt.Errorf("failed to create card intent: %w", err)
	}
	if status != http.StatusOK {
		return intent, fmt.Errorf("failed to create card intent: %s", failureReason(raw, status))
	}

	if err := json.Unmarshal(raw, &intent); err != nil {
		return intent, fmt.Errorf("failed to decode card intent: %w", err)
	}

	return intent, nil
}

type cardConfirmRequest struct {
	AuthorizationRef string `json:"authorization_ref"`
}

func (c *CardClient) Confirm(ctx context.Context, orderID, authorizationRef string) (CardConfirmation, error) {
	var confirmation CardConfirmation

	if c.address == "" {
		return confirmation, ErrNotConfigured
	}

	payload := cardConfirmRequest{AuthorizationRef: authorizationRef}

	status, raw, err := c.do(ctx, http.MethodPost, "/api/intents/"+orderID+"/confirm", payload)
	if err != nil {
		return confirmation, fmt.Errorf("card confirm failed: %w", err)
	}

	switch status {
	case http.StatusOK:
	case http.StatusPaymentRequired:
		c.Logger.Infow("card declined", "order", orderID, "reason", failureReason(raw, status))
		return confirmation, &CardDeclinedError{Reason: failureReason(raw, status)}
	default:
		return confirmation, fmt.Errorf("card confirm failed: %s", failureReason(raw, status))
	}

	if err := json.Unmarshal(raw, &confirmation); err != nil {
		return confirmation, fmt.Errorf("failed to decode card confirmation: %w", err)
	}

	return confirmation, nil
}
