package checkout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bullionworks/checkout/internal/db"
	"github.com/bullionworks/checkout/internal/deposit"
	"github.com/bullionworks/checkout/internal/policy"
	"github.com/bullionworks/checkout/internal/rails"
	"github.com/bullionworks/checkout/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type State string

const (
	StateReview       State = "REVIEW"
	StateSelectMethod State = "SELECT_METHOD"
	StateOrderCreated State = "ORDER_CREATED"
	StateCardCapture  State = "CARD_CAPTURE"
	StateWirePending  State = "WIRE_PENDING"
	StateSettled      State = "SETTLED_SUCCESS"
	StateDone         State = "DONE"
)

// Result is the outcome of one orchestrator operation, shaped for
// whatever transport drives the flow.
type Result struct {
	State            State                    `json:"state"`
	OrderID          string                   `json:"order_id,omitempty"`
	OrderNumber      string                   `json:"order_number,omitempty"`
	NewBalance       *decimal.Decimal         `json:"new_balance,omitempty"`
	TransferID       string                   `json:"transfer_id,omitempty"`
	ClientToken      string                   `json:"client_token,omitempty"`
	Charge           *rails.ChargeBreakdown   `json:"charge,omitempty"`
	Deposit          *models.DepositBreakdown `json:"deposit,omitempty"`
	Wire             *models.WireInstructions `json:"wire,omitempty"`
	Trade            *rails.TradeConfirmation `json:"trade_confirmation,omitempty"`
	AlreadyProcessed bool                     `json:"already_processed,omitempty"`
}

// FundingAdvice is the escape hatch offered when the balance tier cannot
// cover the cart.
type FundingAdvice struct {
	Shortfall decimal.Decimal         `json:"shortfall"`
	Wire      models.WireInstructions `json:"wire"`
}

// Orchestrator sequences one checkout session across the rails. Each
// operation drives exactly one state transition; every rail error rolls
// the session back to the nearest user-actionable state.
type Orchestrator struct {
	Database db.Database
	Ledger   rails.Ledger
	Ach      rails.AchProvider
	Cards    rails.CardProcessor
	WireDesk rails.WireDesk
	Logger   *zap.SugaredLogger
	Now      func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// MethodsResult carries everything the caller needs after method
// resolution, so callers never read session fields that a concurrent
// operation may be writing.
type MethodsResult struct {
	State            State                        `json:"state"`
	Methods          []models.PaymentMethodOption `json:"methods"`
	FundingShortfall decimal.Decimal              `json:"funding_shortfall"`
	AccountNumber    string                       `json:"account_number"`
}

// ConfirmCart resolves the payment methods for the session's cart. A
// snapshot fetch failure is retryable and leaves the state unchanged.
func (o *Orchestrator) ConfirmCart(ctx context.Context, s *Session) (MethodsResult, error) {
	if err := s.begin(); err != nil {
		return MethodsResult{}, err
	}
	defer s.end()

	if s.State != StateReview && s.State != StateSelectMethod {
		return MethodsResult{}, ErrWrongState
	}

	snapshot, err := o.Ledger.Funding(ctx, s.CustomerID)
	if err != nil {
		o.Logger.Errorw("failed to fetch funding snapshot", "customer", s.CustomerID, "error", err)
		return MethodsResult{}, fmt.Errorf("%w: %v", ErrPolicyUnavailable, err)
	}

	resolution := policy.Resolve(snapshot, s.Total)
	s.mu.Lock()
	s.Methods = resolution.Methods
	s.Shortfall = resolution.FundingShortfall
	s.AccountNumber = resolution.AccountNumber
	s.mu.Unlock()
	s.State = StateSelectMethod

	return MethodsResult{
		State:            s.State,
		Methods:          resolution.Methods,
		FundingShortfall: resolution.FundingShortfall,
		AccountNumber:    resolution.AccountNumber,
	}, nil
}

// SubmitPayment provisions the order (once per session) and drives the
// chosen rail. On a rail error the session returns to SELECT_METHOD with
// the same order retained, so a retry never creates a duplicate.
func (o *Orchestrator) SubmitPayment(ctx context.Context, s *Session, tier models.PaymentTier, bankAccountID string) (Result, error) {
	if err := s.begin(); err != nil {
		return Result{}, err
	}
	defer s.end()

	if s.State != StateSelectMethod {
		return Result{}, ErrWrongState
	}

	if tier == "" {
		return Result{}, &ValidationError{Msg: "no payment method selected"}
	}
	if _, ok := o.methodFor(s, tier); !ok {
		return Result{}, &ValidationError{Msg: "unknown payment method: " + tier.String()}
	}
	if tier == models.TierACH && bankAccountID == "" {
		return Result{}, &ValidationError{Msg: "no bank account selected"}
	}

	if err := o.ensureOrder(s); err != nil {
		return Result{}, err
	}
	s.State = StateOrderCreated
	s.Attempt = &models.PaymentAttempt{
		UUID:          uuid.New().String(),
		Tier:          tier,
		BankAccountID: bankAccountID,
	}

	switch tier {
	case models.TierBalance:
		return o.payWithBalance(ctx, s)
	case models.TierACH:
		return o.payWithAch(ctx, s)
	default:
		return o.payWithCard(ctx, s)
	}
}

func (o *Orchestrator) ensureOrder(s *Session) error {
	if s.Order != nil {
		return nil
	}

	now := o.now()
	order := models.Order{
		UUID:        uuid.New().String(),
		OrderNumber: strconv.FormatInt(now.UnixNano(), 10),
		CustomerID:  s.CustomerID,
		Lines:       s.Lines,
		Total:       s.Total,
		Fulfillment: s.Fulfillment,
		Status:      models.OrderPending,
		CreatedAt:   now,
	}

	if err := o.Database.PutOrder(order); err != nil {
		o.Logger.Errorw("failed to provision order", "customer", s.CustomerID, "error", err)
		return fmt.Errorf("%w: %v", ErrOrderProvisioning, err)
	}

	s.Order = &order
	return nil
}

func (o *Orchestrator) payWithBalance(ctx context.Context, s *Session) (Result, error) {
	newBalance, err := o.Ledger.PayWithBalance(ctx, s.Order.UUID, s.CustomerID)
	if err != nil {
		s.State = StateSelectMethod
		return Result{}, err
	}

	o.markOrder(s, models.OrderPaid)
	s.State = StateSettled

	return Result{
		State:       s.State,
		OrderID:     s.Order.UUID,
		OrderNumber: s.Order.OrderNumber,
		NewBalance:  &newBalance,
	}, nil
}

func (o *Orchestrator) payWithAch(ctx context.Context, s *Session) (Result, error) {
	depositMode := o.depositMode(s)

	amount := s.Total
	var breakdown models.DepositBreakdown
	if depositMode {
		breakdown = deposit.Compute(s.Total, decimal.Zero)
		amount = breakdown.DepositTotal
	}

	transferID, err := o.Ach.InitiatePull(ctx, s.CustomerID, s.Order.UUID, amount, s.Attempt.BankAccountID)
	if err != nil {
		s.State = StateSelectMethod
		return Result{}, err
	}
	s.Attempt.TransferID = transferID
	s.Attempt.Confirmed = true

	if !depositMode {
		o.markOrder(s, models.OrderPaid)
		s.State = StateSettled
		return Result{
			State:       s.State,
			OrderID:     s.Order.UUID,
			OrderNumber: s.Order.OrderNumber,
			TransferID:  transferID,
		}, nil
	}

	stamped := deposit.Stamp(breakdown, o.now())
	s.Deposit = &stamped
	s.Wire = o.fetchWire(ctx, s)

	o.markOrder(s, models.OrderDepositPaid)
	s.State = StateWirePending

	return Result{
		State:       s.State,
		OrderID:     s.Order.UUID,
		OrderNumber: s.Order.OrderNumber,
		TransferID:  transferID,
		Deposit:     s.Deposit,
		Wire:        s.Wire,
	}, nil
}

func (o *Orchestrator) payWithCard(ctx context.Context, s *Session) (Result, error) {
	intent, err := o.Cards.CreateIntent(ctx, s.CustomerID, s.Order.UUID, o.depositMode(s))
	if err != nil {
		s.State = StateSelectMethod
		return Result{}, err
	}

	s.Attempt.IntentToken = intent.ClientToken
	s.State = StateCardCapture

	return Result{
		State:       s.State,
		OrderID:     s.Order.UUID,
		OrderNumber: s.Order.OrderNumber,
		ClientToken: intent.ClientToken,
		Charge:      &intent.Charge,
	}, nil
}

// ConfirmCard completes the card flow with the authorization obtained by
// the processor's client-side capture. Confirm is idempotent: a repeat of
// an already-settled confirm returns the original settlement facts and
// changes nothing downstream. A declined card keeps the session in
// CARD_CAPTURE for another attempt.
func (o *Orchestrator) ConfirmCard(ctx context.Context, s *Session, authorizationRef string) (Result, error) {
	if err := s.begin(); err != nil {
		return Result{}, err
	}
	defer s.end()

	if s.State != StateCardCapture && s.State != StateWirePending && s.State != StateSettled {
		return Result{}, ErrWrongState
	}
	if s.Attempt == nil || s.Attempt.Tier != models.TierCard {
		return Result{}, ErrWrongState
	}
	if authorizationRef == "" {
		return Result{}, &ValidationError{Msg: "missing authorization reference"}
	}

	if s.Attempt.Confirmed {
		// Settlement facts are already in hand; do not re-run anything.
		return o.settledCardResult(s, o.depositMode(s), &rails.CardConfirmation{}, true), nil
	}

	confirmation, err := o.Cards.Confirm(ctx, s.Order.UUID, authorizationRef)
	if err != nil {
		return Result{}, err
	}

	depositMode := o.depositMode(s)

	if confirmation.AlreadyProcessed {
		return o.settledCardResult(s, depositMode, &confirmation, true), nil
	}

	if !confirmation.Settled {
		// An OK response without settlement is a processor anomaly; treat
		// it like a decline so the capture can be retried.
		return Result{}, &rails.CardDeclinedError{Reason: "intent was not settled"}
	}

	s.Attempt.Confirmed = true
	s.Trade = confirmation.TradeConfirmation
	if s.Trade != nil && s.Trade.Failed {
		// Payment stays captured; the busted trade is remediated out of band.
		o.Logger.Warnw("trade execution failed after card settlement",
			"order", s.Order.UUID, "detail", s.Trade.Detail)
	}

	if depositMode {
		stamped := deposit.Stamp(deposit.Compute(s.Total, policy.CardFeePercent), o.now())
		s.Deposit = &stamped
		if confirmation.Wire != nil {
			s.Wire = confirmation.Wire
		} else {
			s.Wire = o.fetchWire(ctx, s)
		}
		o.markOrder(s, models.OrderDepositPaid)
		s.State = StateWirePending
	} else {
		o.markOrder(s, models.OrderPaid)
		s.State = StateSettled
	}

	return o.settledCardResult(s, depositMode, &confirmation, false), nil
}

// settledCardResult reports settlement facts from the session where they
// exist, falling back to the processor's record for a confirm repeated
// after the session lost the first response.
func (o *Orchestrator) settledCardResult(s *Session, depositMode bool, confirmation *rails.CardConfirmation, repeated bool) Result {
	if repeated {
		if s.Deposit == nil {
			s.Deposit = confirmation.Deposit
		}
		if s.Wire == nil {
			s.Wire = confirmation.Wire
		}
		if s.Trade == nil {
			s.Trade = confirmation.TradeConfirmation
		}
		s.Attempt.Confirmed = true
		if depositMode {
			s.State = StateWirePending
		} else {
			s.State = StateSettled
		}
		// The rail settled before we recorded it; catch the order up.
		if s.Order.Status == models.OrderPending {
			if depositMode {
				o.markOrder(s, models.OrderDepositPaid)
			} else {
				o.markOrder(s, models.OrderPaid)
			}
		}
	}

	return Result{
		State:            s.State,
		OrderID:          s.Order.UUID,
		OrderNumber:      s.Order.OrderNumber,
		Deposit:          s.Deposit,
		Wire:             s.Wire,
		Trade:            s.Trade,
		AlreadyProcessed: repeated,
	}
}

// Acknowledge closes out a settled session.
func (o *Orchestrator) Acknowledge(s *Session) (Result, error) {
	if err := s.begin(); err != nil {
		return Result{}, err
	}
	defer s.end()

	if s.State != StateWirePending && s.State != StateSettled {
		return Result{}, ErrWrongState
	}

	s.State = StateDone

	return Result{
		State:       s.State,
		OrderID:     s.Order.UUID,
		OrderNumber: s.Order.OrderNumber,
	}, nil
}

// FundAccount returns wire instructions for topping up the balance tier.
func (o *Orchestrator) FundAccount(ctx context.Context, customerID string, shortfall decimal.Decimal) (FundingAdvice, error) {
	wire, err := o.WireDesk.Instructions(ctx, customerID)
	if err != nil {
		return FundingAdvice{}, err
	}

	return FundingAdvice{
		Shortfall: shortfall,
		Wire:      wire,
	}, nil
}

func (o *Orchestrator) depositMode(s *Session) bool {
	return s.Total.GreaterThan(policy.LargeOrderThreshold)
}

func (o *Orchestrator) methodFor(s *Session, tier models.PaymentTier) (models.PaymentMethodOption, bool) {
	for _, m := range s.Methods {
		if m.Tier == tier {
			return m, true
		}
	}
	return models.PaymentMethodOption{}, false
}

// markOrder records the settled status. The charge already happened, so a
// failed write gets one immediate retry; a second failure is logged and
// reconciled against the rail records later.
func (o *Orchestrator) markOrder(s *Session, status models.OrderStatus) {
	err := o.Database.UpdateOrderStatus(s.Order.UUID, status)
	if err != nil {
		o.Logger.Warnw("failed to update order status, retrying", "order", s.Order.UUID, "status", status, "error", err)
		err = o.Database.UpdateOrderStatus(s.Order.UUID, status)
	}
	if err != nil {
		o.Logger.Errorw("order status diverges from settled charge", "order", s.Order.UUID, "status", status, "error", err)
	}
	s.Order.Status = status
}

// fetchWire is best effort during settlement; instructions are also
// available from the funding endpoint.
func (o *Orchestrator) fetchWire(ctx context.Context, s *Session) *models.WireInstructions {
	wire, err := o.WireDesk.Instructions(ctx, s.CustomerID)
	if err != nil {
		o.Logger.Warnw("failed to fetch wire instructions", "customer", s.CustomerID, "error", err)
		return nil
	}
	return &wire
}
