package checkout

import (
	"sync"
	"time"

	"github.com/bullionworks/checkout/internal/rails"
	"github.com/bullionworks/checkout/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session holds one checkout pass. Cart lines are frozen at creation;
// everything else is owned by the orchestrator until a terminal state.
type Session struct {
	UUID          string
	CustomerID    string
	Lines         []models.CartLine
	Fulfillment   models.FulfillmentType
	Total         decimal.Decimal
	State         State
	Methods       []models.PaymentMethodOption
	Shortfall     decimal.Decimal
	AccountNumber string
	Order         *models.Order
	Attempt       *models.PaymentAttempt
	Deposit       *models.DepositBreakdown
	Wire          *models.WireInstructions
	Trade         *rails.TradeConfirmation
	CreatedAt     time.Time

	mu         sync.Mutex
	processing bool
}

// begin claims the session for one outstanding call. A second submit while
// a call is in flight gets ErrProcessing and must not reach any rail.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return ErrProcessing
	}
	s.processing = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()
}

// ShortfallAmount is safe to read while another operation on the session
// is in flight.
func (s *Session) ShortfallAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Shortfall
}

type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

func (st *Store) Create(customerID string, lines []models.CartLine, fulfillment models.FulfillmentType) *Session {
	session := &Session{
		UUID:        uuid.New().String(),
		CustomerID:  customerID,
		Lines:       lines,
		Fulfillment: fulfillment,
		Total:       models.CartTotal(lines),
		State:       StateReview,
		CreatedAt:   time.Now(),
	}

	st.mu.Lock()
	st.sessions[session.UUID] = session
	st.mu.Unlock()

	return session
}

func (st *Store) Get(sessionID string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	session, ok := st.sessions[sessionID]
	return session, ok
}

// Drop abandons a session. Before an order exists this has no side
// effects; afterwards the pending order remains for external
// reconciliation to expire.
func (st *Store) Drop(sessionID string) {
	st.mu.Lock()
	delete(st.sessions, sessionID)
	st.mu.Unlock()
}
