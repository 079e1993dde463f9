package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bullionworks/checkout/internal/rails"
	"github.com/bullionworks/checkout/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDB struct {
	orders      map[string]*models.Order
	putCalls    int
	failPut     bool
	updateCalls int
	updateErrs  int
}

func newFakeDB() *fakeDB {
	return &fakeDB{orders: make(map[string]*models.Order)}
}

func (f *fakeDB) PutOrder(order models.Order) error {
	f.putCalls++
	if f.failPut {
		return fmt.Errorf("connection refused")
	}
	f.orders[order.UUID] = &order
	return nil
}

func (f *fakeDB) UpdateOrderStatus(orderUUID string, status models.OrderStatus) error {
	f.updateCalls++
	if f.updateErrs > 0 {
		f.updateErrs--
		return fmt.Errorf("connection refused")
	}
	if order, ok := f.orders[orderUUID]; ok && order.Status == models.OrderPending {
		order.Status = status
	}
	return nil
}

func (f *fakeDB) GetOrderByID(orderUUID string) (*models.Order, error) {
	return f.orders[orderUUID], nil
}

func (f *fakeDB) GetOrdersList(customerID string) ([]*models.Order, error) {
	return nil, nil
}

func (f *fakeDB) Close() error { return nil }

type fakeLedger struct {
	snapshot    models.FundingSnapshot
	snapshotErr error
	newBalance  decimal.Decimal
	payErr      error
	payCalls    int
	entered     chan struct{}
	release     chan struct{}
}

func (f *fakeLedger) Funding(ctx context.Context, customerID string) (models.FundingSnapshot, error) {
	if f.snapshotErr != nil {
		return models.FundingSnapshot{}, f.snapshotErr
	}
	return f.snapshot, nil
}

func (f *fakeLedger) PayWithBalance(ctx context.Context, orderID, customerID string) (decimal.Decimal, error) {
	f.payCalls++
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.payErr != nil {
		return decimal.Zero, f.payErr
	}
	return f.newBalance, nil
}

type fakeAch struct {
	transferID string
	err        error
	amounts    []decimal.Decimal
}

func (f *fakeAch) InitiatePull(ctx context.Context, customerID, orderID string, amount decimal.Decimal, bankAccountID string) (string, error) {
	f.amounts = append(f.amounts, amount)
	if f.err != nil {
		return "", f.err
	}
	return f.transferID, nil
}

type fakeCards struct {
	intent       rails.CardIntent
	intentErr    error
	confirmation rails.CardConfirmation
	confirmErr   error
	confirmCalls int
}

func (f *fakeCards) CreateIntent(ctx context.Context, customerID, orderID string, isDeposit bool) (rails.CardIntent, error) {
	if f.intentErr != nil {
		return rails.CardIntent{}, f.intentErr
	}
	return f.intent, nil
}

func (f *fakeCards) Confirm(ctx context.Context, orderID, authorizationRef string) (rails.CardConfirmation, error) {
	f.confirmCalls++
	if f.confirmErr != nil {
		return rails.CardConfirmation{}, f.confirmErr
	}
	return f.confirmation, nil
}

type fakeWireDesk struct {
	wire models.WireInstructions
	err  error
}

func (f *fakeWireDesk) Instructions(ctx context.Context, customerID string) (models.WireInstructions, error) {
	if f.err != nil {
		return models.WireInstructions{}, f.err
	}
	return f.wire, nil
}

func cartOf(total string) []models.CartLine {
	return []models.CartLine{
		{
			SKU:           "AU-1OZ-BAR",
			Description:   "1 oz gold bar",
			Metal:         models.MetalGold,
			WeightOunces:  decimal.NewFromInt(1),
			Quantity:      1,
			UnitPrice:     decimal.RequireFromString(total),
			ExtendedPrice: decimal.RequireFromString(total),
		},
	}
}

type fixture struct {
	orchestrator *Orchestrator
	store        *Store
	db           *fakeDB
	ledger       *fakeLedger
	ach          *fakeAch
	cards        *fakeCards
	wire         *fakeWireDesk
}

func newFixture(balance string) *fixture {
	f := &fixture{
		db: newFakeDB(),
		ledger: &fakeLedger{
			snapshot: models.FundingSnapshot{
				AvailableBalance: decimal.RequireFromString(balance),
				LinkedBanks:      []models.LinkedBank{{ID: "bank-1", Name: "First Metro", Last4: "4321"}},
				KYCVerified:      true,
				AccountNumber:    "AL-100200",
			},
			newBalance: decimal.Zero,
		},
		ach:   &fakeAch{transferID: "tr-77"},
		cards: &fakeCards{intent: rails.CardIntent{ClientToken: "tok-1"}},
		wire: &fakeWireDesk{wire: models.WireInstructions{
			BankName: "Metro Clearing", RoutingNumber: "021000021",
			AccountNumber: "990011", BeneficiaryName: "Bullionworks", Memo: "AL-100200",
		}},
		store: NewStore(),
	}
	f.orchestrator = &Orchestrator{
		Database: f.db,
		Ledger:   f.ledger,
		Ach:      f.ach,
		Cards:    f.cards,
		WireDesk: f.wire,
		Logger:   zap.NewNop().Sugar(),
	}
	return f
}

func (f *fixture) selectMethodSession(t *testing.T, total string) *Session {
	t.Helper()
	session := f.store.Create("cust-1", cartOf(total), models.FulfillmentVault)
	_, err := f.orchestrator.ConfirmCart(context.Background(), session)
	require.NoError(t, err)
	require.Equal(t, StateSelectMethod, session.State)
	return session
}

func TestConfirmCartPolicyUnavailable(t *testing.T) {
	f := newFixture("1000")
	f.ledger.snapshotErr = fmt.Errorf("ledger timeout")
	session := f.store.Create("cust-1", cartOf("5000"), models.FulfillmentVault)

	_, err := f.orchestrator.ConfirmCart(context.Background(), session)

	assert.ErrorIs(t, err, ErrPolicyUnavailable)
	assert.Equal(t, StateReview, session.State, "retryable load error leaves the state alone")
}

func TestConfirmCartConcurrentShortfallRead(t *testing.T) {
	f := newFixture("100")
	session := f.store.Create("cust-1", cartOf("5000"), models.FulfillmentVault)

	stop := make(chan struct{})
	reads := make(chan struct{})
	go func() {
		defer close(reads)
		for {
			select {
			case <-stop:
				return
			default:
				_ = session.ShortfallAmount()
			}
		}
	}()

	result, err := f.orchestrator.ConfirmCart(context.Background(), session)
	close(stop)
	<-reads

	require.NoError(t, err)
	assert.Equal(t, StateSelectMethod, result.State)
	assert.True(t, result.FundingShortfall.Equal(decimal.RequireFromString("4900")), "resolution travels on the return value")
	assert.Equal(t, "AL-100200", result.AccountNumber)
	assert.Len(t, result.Methods, 3)
	assert.True(t, session.ShortfallAmount().Equal(result.FundingShortfall))
}

func TestBalancePaymentSettles(t *testing.T) {
	f := newFixture("10000")
	f.ledger.newBalance = decimal.RequireFromString("5000")
	session := f.selectMethodSession(t, "5000")

	result, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierBalance, "")

	require.NoError(t, err)
	assert.Equal(t, StateSettled, session.State)
	assert.Equal(t, models.OrderPaid, session.Order.Status)
	require.NotNil(t, result.NewBalance)
	assert.True(t, result.NewBalance.Equal(decimal.RequireFromString("5000")))
}

func TestInsufficientFundsReturnsToSelect(t *testing.T) {
	f := newFixture("100")
	f.ledger.payErr = rails.ErrInsufficientFunds
	session := f.selectMethodSession(t, "5000")

	_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierBalance, "")

	assert.ErrorIs(t, err, rails.ErrInsufficientFunds)
	assert.Equal(t, StateSelectMethod, session.State)
	assert.Equal(t, models.OrderPending, session.Order.Status, "failed rail call leaves nothing charged")
}

func TestRetryReusesProvisionedOrder(t *testing.T) {
	f := newFixture("100")
	f.ledger.payErr = rails.ErrInsufficientFunds
	session := f.selectMethodSession(t, "5000")

	_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierBalance, "")
	require.Error(t, err)
	firstOrder := session.Order.UUID

	_, err = f.orchestrator.SubmitPayment(context.Background(), session, models.TierACH, "bank-1")
	require.NoError(t, err)

	assert.Equal(t, firstOrder, session.Order.UUID)
	assert.Equal(t, 1, f.db.putCalls, "retry must not create a duplicate order")
}

func TestAchFullPullBelowThreshold(t *testing.T) {
	f := newFixture("0")
	session := f.selectMethodSession(t, "5000")

	result, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierACH, "bank-1")

	require.NoError(t, err)
	assert.Equal(t, StateSettled, session.State)
	assert.Equal(t, models.OrderPaid, session.Order.Status)
	assert.Equal(t, "tr-77", result.TransferID)
	require.Len(t, f.ach.amounts, 1)
	assert.True(t, f.ach.amounts[0].Equal(decimal.RequireFromString("5000")))
}

func TestAchDepositAboveThreshold(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture("0")
	f.orchestrator.Now = func() time.Time { return now }
	session := f.selectMethodSession(t, "9500")

	result, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierACH, "bank-1")

	require.NoError(t, err)
	assert.Equal(t, StateWirePending, session.State)
	assert.Equal(t, models.OrderDepositPaid, session.Order.Status)

	require.Len(t, f.ach.amounts, 1)
	assert.True(t, f.ach.amounts[0].Equal(decimal.RequireFromString("950.00")), "full-pull ach is not offered above the threshold")

	require.NotNil(t, result.Deposit)
	assert.True(t, result.Deposit.WireAmountDue.Equal(decimal.RequireFromString("8550.00")))
	require.NotNil(t, result.Deposit.WireDueBy)
	assert.Equal(t, now.Add(48*time.Hour), *result.Deposit.WireDueBy)
	require.NotNil(t, result.Wire)
	assert.Equal(t, "AL-100200", result.Wire.Memo)
}

func TestAchErrorReturnsToSelect(t *testing.T) {
	f := newFixture("0")
	f.ach.err = &rails.AchError{Reason: "signal score below minimum"}
	session := f.selectMethodSession(t, "5000")

	_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierACH, "bank-1")

	var achErr *rails.AchError
	assert.ErrorAs(t, err, &achErr)
	assert.Equal(t, StateSelectMethod, session.State)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture("0")

	t.Run("NoTierSelected", func(t *testing.T) {
		session := f.selectMethodSession(t, "5000")
		_, err := f.orchestrator.SubmitPayment(context.Background(), session, "", "")
		var validation *ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("AchWithoutBank", func(t *testing.T) {
		session := f.selectMethodSession(t, "5000")
		_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierACH, "")
		var validation *ValidationError
		assert.ErrorAs(t, err, &validation)
		assert.Equal(t, 0, f.db.putCalls, "validation failures never provision an order")
	})
}

func TestOrderProvisioningIsFatal(t *testing.T) {
	f := newFixture("10000")
	f.db.failPut = true
	session := f.selectMethodSession(t, "5000")

	_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierBalance, "")

	assert.ErrorIs(t, err, ErrOrderProvisioning)
	assert.Equal(t, 0, f.ledger.payCalls, "no rail is invoked without a durable order")
}

func TestCardFullPaymentFlow(t *testing.T) {
	f := newFixture("0")
	f.cards.confirmation = rails.CardConfirmation{
		Settled:           true,
		TradeConfirmation: &rails.TradeConfirmation{Code: "TC-150"},
	}
	session := f.selectMethodSession(t, "5000")

	result, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierCard, "")
	require.NoError(t, err)
	assert.Equal(t, StateCardCapture, session.State)
	assert.Equal(t, "tok-1", result.ClientToken)
	assert.Equal(t, models.OrderPending, session.Order.Status, "intent creation charges nothing")

	result, err = f.orchestrator.ConfirmCard(context.Background(), session, "auth-1")
	require.NoError(t, err)
	assert.Equal(t, StateSettled, session.State)
	assert.Equal(t, models.OrderPaid, session.Order.Status)
	require.NotNil(t, result.Trade)
	assert.Equal(t, "TC-150", result.Trade.Code)
}

func TestCardDeclinedStaysInCapture(t *testing.T) {
	f := newFixture("0")
	f.cards.confirmErr = &rails.CardDeclinedError{Reason: "do not honor"}
	session := f.selectMethodSession(t, "5000")

	_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierCard, "")
	require.NoError(t, err)

	_, err = f.orchestrator.ConfirmCard(context.Background(), session, "auth-1")

	var declined *rails.CardDeclinedError
	assert.ErrorAs(t, err, &declined)
	assert.Equal(t, StateCardCapture, session.State, "declines allow another capture attempt")
	assert.Equal(t, models.OrderPending, session.Order.Status)
}

func TestCardConfirmUnsettledIsDeclined(t *testing.T) {
	f := newFixture("0")
	f.cards.confirmation = rails.CardConfirmation{Settled: false}
	session := f.selectMethodSession(t, "5000")

	_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierCard, "")
	require.NoError(t, err)

	_, err = f.orchestrator.ConfirmCard(context.Background(), session, "auth-1")

	var declined *rails.CardDeclinedError
	assert.ErrorAs(t, err, &declined)
	assert.Equal(t, StateCardCapture, session.State, "an unsettled confirm allows another capture attempt")
	assert.Equal(t, models.OrderPending, session.Order.Status)
	assert.False(t, session.Attempt.Confirmed)
}

func TestCardDepositConfirmIsIdempotent(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture("0")
	f.orchestrator.Now = func() time.Time { return now }
	f.cards.confirmation = rails.CardConfirmation{
		Settled:           true,
		TradeConfirmation: &rails.TradeConfirmation{Code: "TC-200"},
	}
	session := f.selectMethodSession(t, "10000")

	_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierCard, "")
	require.NoError(t, err)

	first, err := f.orchestrator.ConfirmCard(context.Background(), session, "auth-1")
	require.NoError(t, err)
	assert.Equal(t, StateWirePending, session.State)
	assert.Equal(t, models.OrderDepositPaid, session.Order.Status)
	require.NotNil(t, first.Deposit)
	assert.True(t, first.Deposit.DepositBase.Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, first.Deposit.FeeAmount.Equal(decimal.RequireFromString("35.00")))
	assert.True(t, first.Deposit.DepositTotal.Equal(decimal.RequireFromString("1035.00")))
	assert.True(t, first.Deposit.WireAmountDue.Equal(decimal.RequireFromString("9000.00")))

	second, err := f.orchestrator.ConfirmCard(context.Background(), session, "auth-1")
	require.NoError(t, err)

	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, 1, f.cards.confirmCalls, "repeat confirm must not hit the processor again")
	assert.Equal(t, models.OrderDepositPaid, session.Order.Status)
	assert.Equal(t, first.Deposit, second.Deposit, "settlement facts are identical")
	assert.Equal(t, first.Trade, second.Trade)
}

func TestCardConfirmAlreadyProcessedByRail(t *testing.T) {
	// The first confirm response was lost: the session is still in capture
	// but the processor already settled the intent.
	f := newFixture("0")
	f.cards.confirmation = rails.CardConfirmation{
		Settled:          true,
		AlreadyProcessed: true,
		TradeConfirmation: &rails.TradeConfirmation{
			Code: "TC-300",
		},
	}
	session := f.selectMethodSession(t, "5000")

	_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierCard, "")
	require.NoError(t, err)

	result, err := f.orchestrator.ConfirmCard(context.Background(), session, "auth-1")

	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, StateSettled, session.State)
	require.NotNil(t, result.Trade)
	assert.Equal(t, "TC-300", result.Trade.Code)
}

func TestTradeFailureDoesNotRevertPayment(t *testing.T) {
	f := newFixture("0")
	f.cards.confirmation = rails.CardConfirmation{
		Settled:           true,
		TradeConfirmation: &rails.TradeConfirmation{Failed: true, Detail: "market halted"},
	}
	session := f.selectMethodSession(t, "5000")

	_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierCard, "")
	require.NoError(t, err)

	result, err := f.orchestrator.ConfirmCard(context.Background(), session, "auth-1")

	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, session.Order.Status, "payment stays captured when the trade busts")
	require.NotNil(t, result.Trade)
	assert.True(t, result.Trade.Failed)
}

func TestOrderStatusUpdateRetriesOnce(t *testing.T) {
	f := newFixture("10000")
	f.ledger.newBalance = decimal.RequireFromString("5000")
	session := f.selectMethodSession(t, "5000")
	f.db.updateErrs = 1

	_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierBalance, "")

	require.NoError(t, err)
	assert.Equal(t, 2, f.db.updateCalls, "a transient status update failure gets one retry")
	assert.Equal(t, models.OrderPaid, f.db.orders[session.Order.UUID].Status)
	assert.Equal(t, models.OrderPaid, session.Order.Status)
}

func TestDoubleSubmitIsNoOp(t *testing.T) {
	f := newFixture("10000")
	f.ledger.entered = make(chan struct{})
	f.ledger.release = make(chan struct{})
	session := f.selectMethodSession(t, "5000")

	done := make(chan error)
	go func() {
		_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierBalance, "")
		done <- err
	}()

	<-f.ledger.entered

	_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierBalance, "")
	assert.ErrorIs(t, err, ErrProcessing)

	close(f.ledger.release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, f.db.putCalls, "resubmit while processing must not duplicate the order")
	assert.Equal(t, 1, f.ledger.payCalls, "resubmit while processing must not double-charge")
}

func TestAcknowledge(t *testing.T) {
	f := newFixture("10000")
	session := f.selectMethodSession(t, "5000")

	_, err := f.orchestrator.SubmitPayment(context.Background(), session, models.TierBalance, "")
	require.NoError(t, err)

	result, err := f.orchestrator.Acknowledge(session)

	require.NoError(t, err)
	assert.Equal(t, StateDone, session.State)
	assert.Equal(t, session.Order.OrderNumber, result.OrderNumber)
}

func TestAcknowledgeWrongState(t *testing.T) {
	f := newFixture("10000")
	session := f.selectMethodSession(t, "5000")

	_, err := f.orchestrator.Acknowledge(session)

	assert.ErrorIs(t, err, ErrWrongState)
}

func TestFundAccount(t *testing.T) {
	f := newFixture("100")

	advice, err := f.orchestrator.FundAccount(context.Background(), "cust-1", decimal.RequireFromString("4900"))

	require.NoError(t, err)
	assert.True(t, advice.Shortfall.Equal(decimal.RequireFromString("4900")))
	assert.Equal(t, "AL-100200", advice.Wire.Memo)
}

func TestFundAccountError(t *testing.T) {
	f := newFixture("100")
	f.wire.err = errors.New("wire desk unavailable")

	_, err := f.orchestrator.FundAccount(context.Background(), "cust-1", decimal.Zero)

	assert.Error(t, err)
}
