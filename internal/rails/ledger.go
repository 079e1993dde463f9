package rails

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bullionworks/checkout/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerClient talks to the internal balance service over HTTP.
type LedgerClient struct {
	railClient
	Logger *zap.SugaredLogger
}

func NewLedgerClient(address string, timeout time.Duration, logger *zap.SugaredLogger) *LedgerClient {
	return &LedgerClient{
		railClient: railClient{address: address, timeout: timeout},
		Logger:     logger,
	}
}

func (c *LedgerClient) Funding(ctx context.Context, customerID string) (models.FundingSnapshot, error) {
	var snapshot models.FundingSnapshot

	status, raw, err := c.do(ctx, http.MethodGet, "/api/customers/"+customerID+"/funding", nil)
	if err != nil {
		return snapshot, fmt.Errorf("failed to fetch funding snapshot: %w", err)
	}
	if status != http.StatusOK {
		return snapshot, fmt.Errorf("failed to fetch funding snapshot: %s", failureReason(raw, status))
	}

	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return snapshot, fmt.Errorf("failed to decode funding snapshot: %w", err)
	}

	return snapshot, nil
}

type balancePaymentRequest struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
}

type balancePaymentResponse struct {
	NewBalance decimal.Decimal `json:"new_balance"`
}

// PayWithBalance debits the full order total in one atomic ledger call.
func (c *LedgerClient) PayWithBalance(ctx context.Context, orderID, customerID string) (decimal.Decimal, error) {
	payload := balancePaymentRequest{OrderID: orderID, CustomerID: customerID}

	status, raw, err := c.do(ctx, http.MethodPost, "/api/payments/balance", payload)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance payment failed: %w", err)
	}

	switch status {
	case http.StatusOK:
	case http.StatusPaymentRequired:
		c.Logger.Infow("ledger refused debit", "order", orderID, "reason", failureReason(raw, status))
		return decimal.Zero, ErrInsufficientFunds
	default:
		return decimal.Zero, fmt.Errorf("balance payment failed: %s", failureReason(raw, status))
	}

	var response balancePaymentResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode balance payment response: %w", err)
	}

	return response.NewBalance, nil
}
