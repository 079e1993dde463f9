package rails

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AchClient talks to the bank-pull provider. A 200 means the pull was
// accepted, not that funds settled; settlement takes 2-3 business days
// and is reconciled outside this service.
type AchClient struct {
	railClient
	Logger *zap.SugaredLogger
}

func NewAchClient(address string, timeout time.Duration, logger *zap.SugaredLogger) *AchClient {
	return &AchClient{
		railClient: railClient{address: address, timeout: timeout},
		Logger:     logger,
	}
}

type achPullRequest struct {
	CustomerID    string          `json:"customer_id"`
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	BankAccountID string          `json:"bank_account_id"`
}

type achPullResponse struct {
	TransferID string `json:"transfer_id"`
}

func (c *AchClient) InitiatePull(ctx context.Context, customerID, orderID string, amount decimal.Decimal, bankAccountID string) (string, error) {
	payload := achPullRequest{
		CustomerID:    customerID,
		OrderID:       orderID,
		Amount:        amount,
		BankAccountID: bankAccountID,
	}

	status, raw, err := c.do(ctx, http.MethodPost, "/api/pulls", payload)
	if err != nil {
		return "", fmt.Errorf("ach pull failed: %w", err)
	}

	switch status {
	case http.StatusOK:
	case http.StatusUnprocessableEntity, http.StatusPaymentRequired:
		c.Logger.Infow("ach provider rejected pull", "order", orderID, "reason", failureReason(raw, status))
		return "", &AchError{Reason: failureReason(raw, status)}
	default:
		return "", fmt.Errorf("ach pull failed: %s", failureReason(raw, status))
	}

	var response achPullResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return "", fmt.Errorf("failed to decode ach pull response: %w", err)
	}

	return response.TransferID, nil
}
