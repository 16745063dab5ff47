package transactions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	"github.com/dirtsid3r/cellflip/internal/domain/bids"
	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/internal/domain/otp"
	"github.com/dirtsid3r/cellflip/internal/domain/settlement"
	"github.com/dirtsid3r/cellflip/pkg/auth"
	"github.com/dirtsid3r/cellflip/pkg/events"
	"github.com/dirtsid3r/cellflip/pkg/testhelpers"
)

const goodCode = "246810"

// world is an in-memory backing for every port the service writes through.
type world struct {
	mu          sync.Mutex
	txs         map[uuid.UUID]*Transaction
	listings    map[uuid.UUID]*listings.Listing
	agents      map[uuid.UUID]*agents.Agent
	settlements map[uuid.UUID]*settlement.Settlement
	phones      map[uuid.UUID]string
	gates       map[uuid.UUID]*otp.Gate
	released    []uuid.UUID
	events      []string
	updateErr   error
}

func newWorld() *world {
	return &world{
		txs:         map[uuid.UUID]*Transaction{},
		listings:    map[uuid.UUID]*listings.Listing{},
		agents:      map[uuid.UUID]*agents.Agent{},
		settlements: map[uuid.UUID]*settlement.Settlement{},
		phones:      map[uuid.UUID]string{},
		gates:       map[uuid.UUID]*otp.Gate{},
	}
}

func (w *world) CreateTransaction(_ context.Context, _ pgx.Tx, t *Transaction) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := *t
	w.txs[t.ID] = &cp
	return nil
}

func (w *world) GetTransaction(_ context.Context, id uuid.UUID) (*Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.txs[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (w *world) GetTransactionForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*Transaction, error) {
	return w.GetTransaction(ctx, id)
}

func (w *world) UpdateTransaction(_ context.Context, _ pgx.Tx, t *Transaction) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.updateErr != nil {
		return w.updateErr
	}
	cp := *t
	w.txs[t.ID] = &cp
	return nil
}

func (w *world) ListForUser(_ context.Context, userID uuid.UUID) ([]*Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*Transaction
	for _, t := range w.txs {
		if t.IsParty(userID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (w *world) SaveSettlement(_ context.Context, _ pgx.Tx, s *settlement.Settlement) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settlements[s.TransactionID] = s
	return nil
}

func (w *world) GetSettlement(_ context.Context, _ pgx.Tx, id uuid.UUID) (*settlement.Settlement, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.settlements[id]
	if !ok {
		return nil, ErrSettlementNotFound
	}
	return s, nil
}

func (w *world) GetListing(_ context.Context, id uuid.UUID) (*listings.Listing, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.listings[id]
	if !ok {
		return nil, listings.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (w *world) GetListingForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*listings.Listing, error) {
	return w.GetListing(ctx, id)
}

func (w *world) UpdateListing(_ context.Context, _ pgx.Tx, l *listings.Listing) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := *l
	w.listings[l.ID] = &cp
	return nil
}

func (w *world) GetAgentForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*agents.Agent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.agents[id]
	if !ok {
		return nil, agents.ErrAgentNotFound
	}
	cp := *a
	return &cp, nil
}

func (w *world) ListAgents(_ context.Context) ([]*agents.Agent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*agents.Agent, 0, len(w.agents))
	for _, a := range w.agents {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (w *world) AdjustPickups(_ context.Context, _ pgx.Tx, id uuid.UUID, active, total int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a := w.agents[id]
	a.ActivePickups += active
	a.TotalPickups += total
	return nil
}

func (w *world) PhoneOf(_ context.Context, id uuid.UUID) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phones[id], nil
}

// Issue and Consume stand in for the confirmation gate; every code is goodCode.
func (w *world) Issue(_ context.Context, _ pgx.Tx, cmd otp.IssueCommand) (*otp.Gate, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	g := &otp.Gate{
		ID:            uuid.New(),
		Phone:         cmd.Phone,
		Purpose:       cmd.Purpose,
		TransactionID: cmd.TransactionID,
		Amount:        cmd.Amount,
		Status:        otp.StatusIssued,
	}
	w.gates[g.ID] = g
	return g, nil
}

func (w *world) Consume(_ context.Context, _ pgx.Tx, cmd otp.ConsumeCommand) (*otp.Gate, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	g, ok := w.gates[cmd.GateID]
	if !ok {
		return nil, otp.ErrGateNotFound
	}
	if !g.Matches(cmd.Binding) {
		return nil, otp.ErrGateBindingMismatch
	}
	if g.Status == otp.StatusVerified {
		return nil, otp.ErrGateAlreadyUsed
	}
	if cmd.Code != goodCode {
		g.Attempts++
		return nil, otp.ErrInvalidCode
	}
	g.Status = otp.StatusVerified
	return g, nil
}

func (w *world) Release(_ context.Context, g *otp.Gate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.released = append(w.released, g.ID)
	return nil
}

func (w *world) SaveEvent(_ context.Context, _ pgx.Tx, e *events.OutboxEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e.EventType)
	return nil
}

type MockEvidence struct {
	mock.Mock
}

func (m *MockEvidence) PresignUpload(ctx context.Context, key, contentType string) (*listings.PresignedUpload, error) {
	args := m.Called(ctx, key, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listings.PresignedUpload), args.Error(1)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordStage(stage string) {
	m.Called(stage)
}

func (m *MockMetrics) RecordSettlement(payout, commission, fee int64) {
	m.Called(payout, commission, fee)
}

type fixture struct {
	svc      *Service
	world    *world
	evidence *MockEvidence
	metrics  *MockMetrics
	txm      *testhelpers.FakeTxManager
	now      time.Time

	txID    uuid.UUID
	listing *listings.Listing
	client  Actor
	vendor  Actor
	agent   Actor
	admin   Actor
}

func newFixture(t *testing.T, bid int64) *fixture {
	t.Helper()
	f := &fixture{
		world:    newWorld(),
		evidence: new(MockEvidence),
		metrics:  new(MockMetrics),
		txm:      &testhelpers.FakeTxManager{},
		now:      time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC),
		client:   Actor{UserID: uuid.New(), Role: auth.RoleClient},
		vendor:   Actor{UserID: uuid.New(), Role: auth.RoleVendor},
		agent:    Actor{UserID: uuid.New(), Role: auth.RoleAgent},
		admin:    Actor{UserID: uuid.New(), Role: auth.RoleAdmin},
	}
	f.metrics.On("RecordStage", mock.Anything).Return()
	f.metrics.On("RecordSettlement", mock.Anything, mock.Anything, mock.Anything).Return()

	svc, err := NewService(Deps{
		TxManager:   f.txm,
		Repo:        f.world,
		Settlements: f.world,
		Listings:    f.world,
		Agents:      f.world,
		Directory:   f.world,
		Gates:       f.world,
		Outbox:      f.world,
		Evidence:    f.evidence,
		Metrics:     f.metrics,
	}, settlement.DefaultRates())
	require.NoError(t, err)
	svc.now = func() time.Time { return f.now }
	f.svc = svc

	f.listing = &listings.Listing{
		ID:          uuid.New(),
		ClientID:    f.client.UserID,
		Brand:       "Apple",
		Model:       "iPhone 13",
		Condition:   listings.ConditionGood,
		AskingPrice: 6_500_000,
		Status:      listings.StatusBiddingEnded,
		Pickup:      listings.Address{City: "Pune", Latitude: 18.52, Longitude: 73.85},
	}
	f.world.listings[f.listing.ID] = f.listing
	f.world.agents[f.agent.UserID] = &agents.Agent{
		UserID: f.agent.UserID, FullName: "Ravi", Phone: "+919800000003", City: "Pune",
		Availability: agents.AvailabilityAvailable,
	}
	f.world.phones[f.client.UserID] = "+919800000001"
	f.world.phones[f.vendor.UserID] = "+919800000002"

	f.txID, err = svc.OpenTransaction(context.Background(), nil, bids.Deal{
		ListingID: f.listing.ID,
		BidID:     uuid.New(),
		ClientID:  f.client.UserID,
		VendorID:  f.vendor.UserID,
		Amount:    bid,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) ctx() context.Context {
	return context.Background()
}

// runToInspected drives the transaction to DEVICE_INSPECTED.
func (f *fixture) runToInspected(t *testing.T, in Inspection) {
	t.Helper()
	_, err := f.svc.AssignAgent(f.ctx(), f.txID, f.agent.UserID)
	require.NoError(t, err)
	_, err = f.svc.SchedulePickup(f.ctx(), f.agent, f.txID, f.now.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = f.svc.VerifyIdentity(f.ctx(), f.agent, f.txID, IdentityCheck{
		IDDocumentVerified: true, NameMatches: true, PhoneMatches: true, AddressMatches: true, IDPhotoKey: "id.jpg",
	})
	require.NoError(t, err)
	_, err = f.svc.InspectDevice(f.ctx(), f.agent, f.txID, in)
	require.NoError(t, err)
}

func batteryAndChargerInspection() Inspection {
	return Inspection{
		ActualCondition: listings.ConditionGood,
		Accessories:     listings.Accessories{Box: true},
		BatteryHealth:   75,
		PhotoKeys:       []string{"front.jpg"},
	}
}

func TestVerificationFlow_EndToEnd(t *testing.T) {
	// Arrange: ₹58,000 accepted bid
	f := newFixture(t, 5_800_000)
	f.runToInspected(t, batteryAndChargerInspection())

	// Act + Assert step by step
	priced, err := f.svc.CalculateDeductions(f.ctx(), f.agent, f.txID)
	require.NoError(t, err)
	assert.Equal(t, int64(5_046_000), priced.FinalOffer)
	assert.Equal(t, int64(754_000), priced.TotalDeductions)

	offered, err := f.svc.SendFinalOffer(f.ctx(), f.agent, f.txID)
	require.NoError(t, err)
	require.NotNil(t, offered.OfferGateID)
	offerGate := f.world.gates[*offered.OfferGateID]
	assert.Equal(t, otp.PurposeTransactionAccept, offerGate.Purpose)
	assert.Equal(t, "+919800000001", offerGate.Phone)
	require.NotNil(t, offerGate.Amount)
	assert.Equal(t, int64(5_046_000), *offerGate.Amount)

	accepted, err := f.svc.AcceptFinalOffer(f.ctx(), f.client, f.txID, *offered.OfferGateID, goodCode)
	require.NoError(t, err)
	assert.Equal(t, StageCustomerAccepted, accepted.Stage)
	assert.Equal(t, PhaseCompletion, accepted.Phase)

	handed, err := f.svc.HandOverToVendor(f.ctx(), f.agent, f.txID, "handover.jpg")
	require.NoError(t, err)
	require.NotNil(t, handed.VendorGateID)
	assert.Equal(t, "+919800000002", f.world.gates[*handed.VendorGateID].Phone)

	confirmed, err := f.svc.ConfirmVendorReceipt(f.ctx(), f.vendor, f.txID, *handed.VendorGateID, goodCode)
	require.NoError(t, err)
	require.NotNil(t, confirmed.CompletionGateID)
	assert.Equal(t, otp.PurposeTransactionCompletion, f.world.gates[*confirmed.CompletionGateID].Purpose)

	settled, err := f.svc.ConfirmCompletion(f.ctx(), f.client, f.txID, *confirmed.CompletionGateID, goodCode, settlement.PaymentBankTransfer)
	require.NoError(t, err)
	assert.Equal(t, int64(5_046_000), settled.ClientPayout)
	assert.Equal(t, int64(252_300), settled.AgentCommission)
	assert.Equal(t, int64(100_920), settled.PlatformFee)
	assert.Equal(t, settlement.PaymentBankTransfer, settled.PaymentMethod)

	final := f.world.txs[f.txID]
	assert.Equal(t, StagePaid, final.Stage)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, listings.StatusCompleted, f.world.listings[f.listing.ID].Status)
	assert.Equal(t, 0, f.world.agents[f.agent.UserID].ActivePickups)
	assert.Equal(t, 1, f.world.agents[f.agent.UserID].TotalPickups)
	assert.Contains(t, f.world.events, events.TypePaymentSettled)

	// Retried completion returns the stored settlement without paying twice.
	again, err := f.svc.ConfirmCompletion(f.ctx(), f.client, f.txID, *confirmed.CompletionGateID, goodCode, settlement.PaymentBankTransfer)
	require.NoError(t, err)
	assert.Same(t, settled, again)
	f.metrics.AssertNumberOfCalls(t, "RecordSettlement", 1)
}

func TestSendFinalOffer_RollbackReleasesCodeCooldown(t *testing.T) {
	// Arrange
	f := newFixture(t, 5_800_000)
	f.runToInspected(t, batteryAndChargerInspection())
	_, err := f.svc.CalculateDeductions(f.ctx(), f.agent, f.txID)
	require.NoError(t, err)
	f.world.updateErr = errors.New("connection reset")

	// Act
	_, err = f.svc.SendFinalOffer(f.ctx(), f.agent, f.txID)

	// Assert
	require.Error(t, err)
	assert.True(t, f.txm.Last().RolledBack)
	require.Len(t, f.world.released, 1)
	assert.Equal(t, otp.PurposeTransactionAccept, f.world.gates[f.world.released[0]].Purpose)
	assert.Nil(t, f.world.txs[f.txID].OfferGateID)

	// The retry issues a fresh code and keeps its cooldown.
	f.world.updateErr = nil
	offered, err := f.svc.SendFinalOffer(f.ctx(), f.agent, f.txID)
	require.NoError(t, err)
	require.NotNil(t, offered.OfferGateID)
	assert.Len(t, f.world.released, 1)
}

func TestAdvance_CannotSkipSteps(t *testing.T) {
	f := newFixture(t, 5_800_000)
	_, err := f.svc.AssignAgent(f.ctx(), f.txID, f.agent.UserID)
	require.NoError(t, err)

	_, err = f.svc.InspectDevice(f.ctx(), f.agent, f.txID, batteryAndChargerInspection())
	assert.ErrorIs(t, err, ErrStageOrder)

	_, err = f.svc.SendFinalOffer(f.ctx(), f.agent, f.txID)
	assert.ErrorIs(t, err, ErrStageOrder)
	assert.Equal(t, StageAgentAssigned, f.world.txs[f.txID].Stage)
}

func TestAssignAgent(t *testing.T) {
	t.Run("offline agent", func(t *testing.T) {
		f := newFixture(t, 1_000_000)
		f.world.agents[f.agent.UserID].Availability = agents.AvailabilityOffline

		_, err := f.svc.AssignAgent(f.ctx(), f.txID, f.agent.UserID)
		assert.ErrorIs(t, err, ErrAgentUnavailable)
	})

	t.Run("unknown agent", func(t *testing.T) {
		f := newFixture(t, 1_000_000)
		_, err := f.svc.AssignAgent(f.ctx(), f.txID, uuid.New())
		assert.ErrorIs(t, err, agents.ErrAgentNotFound)
	})

	t.Run("assigns and counts pickup", func(t *testing.T) {
		f := newFixture(t, 1_000_000)
		tx, err := f.svc.AssignAgent(f.ctx(), f.txID, f.agent.UserID)
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, tx.Status)
		assert.Equal(t, PhaseVerification, tx.Phase)
		assert.Equal(t, 1, f.world.agents[f.agent.UserID].ActivePickups)
		assert.Equal(t, []string{events.TypeAgentAssigned}, f.world.events)
		f.metrics.AssertCalled(t, "RecordStage", string(StageAgentAssigned))
	})
}

func TestAgentSteps_RequireAssignedAgent(t *testing.T) {
	f := newFixture(t, 1_000_000)
	_, err := f.svc.AssignAgent(f.ctx(), f.txID, f.agent.UserID)
	require.NoError(t, err)

	other := Actor{UserID: uuid.New(), Role: auth.RoleAgent}
	_, err = f.svc.SchedulePickup(f.ctx(), other, f.txID, f.now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.SchedulePickup(f.ctx(), f.client, f.txID, f.now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.SchedulePickup(f.ctx(), f.agent, f.txID, f.now.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrPickupInPast)

	tx, err := f.svc.SchedulePickup(f.ctx(), f.admin, f.txID, f.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StagePickupScheduled, tx.Stage)
	assert.Equal(t, listings.StatusPickupScheduled, f.world.listings[f.listing.ID].Status)
}

func TestVerifyIdentity_AllChecksRequired(t *testing.T) {
	f := newFixture(t, 1_000_000)

	_, err := f.svc.VerifyIdentity(f.ctx(), f.agent, f.txID, IdentityCheck{
		IDDocumentVerified: true, NameMatches: true, PhoneMatches: false, AddressMatches: true, IDPhotoKey: "id.jpg",
	})

	assert.ErrorIs(t, err, ErrIdentityNotConfirmed)
}

func TestAcceptFinalOffer_WrongCodeKeepsStage(t *testing.T) {
	// Arrange
	f := newFixture(t, 5_800_000)
	f.runToInspected(t, batteryAndChargerInspection())
	_, err := f.svc.CalculateDeductions(f.ctx(), f.agent, f.txID)
	require.NoError(t, err)
	offered, err := f.svc.SendFinalOffer(f.ctx(), f.agent, f.txID)
	require.NoError(t, err)

	// Act
	_, err = f.svc.AcceptFinalOffer(f.ctx(), f.client, f.txID, *offered.OfferGateID, "000000")

	// Assert
	assert.ErrorIs(t, err, otp.ErrInvalidCode)
	assert.True(t, f.txm.Last().Committed, "attempt counter must be persisted")
	assert.Equal(t, StageFinalOfferSent, f.world.txs[f.txID].Stage)
	assert.Equal(t, 1, f.world.gates[*offered.OfferGateID].Attempts)

	_, err = f.svc.AcceptFinalOffer(f.ctx(), f.vendor, f.txID, *offered.OfferGateID, goodCode)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.AcceptFinalOffer(f.ctx(), f.client, f.txID, uuid.New(), goodCode)
	assert.ErrorIs(t, err, ErrWrongGate)
	assert.False(t, f.txm.Last().Committed)
}

func TestResendCode_ReplacesGate(t *testing.T) {
	f := newFixture(t, 5_800_000)
	f.runToInspected(t, batteryAndChargerInspection())
	_, err := f.svc.CalculateDeductions(f.ctx(), f.agent, f.txID)
	require.NoError(t, err)

	_, err = f.svc.ResendCode(f.ctx(), f.client, f.txID)
	assert.ErrorIs(t, err, ErrNothingToResend)

	offered, err := f.svc.SendFinalOffer(f.ctx(), f.agent, f.txID)
	require.NoError(t, err)
	first := *offered.OfferGateID

	resent, err := f.svc.ResendCode(f.ctx(), f.client, f.txID)
	require.NoError(t, err)
	assert.NotEqual(t, first, *resent.OfferGateID)

	_, err = f.svc.AcceptFinalOffer(f.ctx(), f.client, f.txID, first, goodCode)
	assert.ErrorIs(t, err, ErrWrongGate)
}

func TestDeclineFinalOffer(t *testing.T) {
	f := newFixture(t, 5_800_000)
	f.runToInspected(t, batteryAndChargerInspection())
	_, err := f.svc.CalculateDeductions(f.ctx(), f.agent, f.txID)
	require.NoError(t, err)
	_, err = f.svc.SendFinalOffer(f.ctx(), f.agent, f.txID)
	require.NoError(t, err)

	tx, err := f.svc.DeclineFinalOffer(f.ctx(), f.client, f.txID, "too low")

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, tx.Status)
	assert.Equal(t, listings.StatusCancelled, f.world.listings[f.listing.ID].Status)
	assert.Equal(t, 0, f.world.agents[f.agent.UserID].ActivePickups)
}

func TestRaiseDispute(t *testing.T) {
	f := newFixture(t, 1_000_000)
	_, err := f.svc.AssignAgent(f.ctx(), f.txID, f.agent.UserID)
	require.NoError(t, err)

	_, err = f.svc.RaiseDispute(f.ctx(), Actor{UserID: uuid.New(), Role: auth.RoleVendor}, f.txID, "fraud")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.RaiseDispute(f.ctx(), f.vendor, f.txID, " ")
	assert.ErrorIs(t, err, listings.ErrReasonRequired)

	tx, err := f.svc.RaiseDispute(f.ctx(), f.vendor, f.txID, "device swapped")
	require.NoError(t, err)
	assert.Equal(t, StatusDisputed, tx.Status)
	assert.Equal(t, 0, f.world.agents[f.agent.UserID].ActivePickups)

	_, err = f.svc.SchedulePickup(f.ctx(), f.agent, f.txID, f.now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrTransactionClosed)
}

func TestRankAgents_UsesPickupAddress(t *testing.T) {
	f := newFixture(t, 1_000_000)
	far := &agents.Agent{UserID: uuid.New(), City: "Mumbai", Availability: agents.AvailabilityAvailable}
	f.world.agents[far.UserID] = far

	ranked, err := f.svc.RankAgents(f.ctx(), f.txID)

	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, f.agent.UserID, ranked[0].Agent.UserID)
	assert.True(t, ranked[0].SameCity)
}

func TestRequestEvidenceUpload(t *testing.T) {
	f := newFixture(t, 1_000_000)
	_, err := f.svc.AssignAgent(f.ctx(), f.txID, f.agent.UserID)
	require.NoError(t, err)
	f.evidence.On("PresignUpload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return len(key) > len("transactions/") && key[:len("transactions/")] == "transactions/"
	}), "image/jpeg").Return(&listings.PresignedUpload{URL: "https://s3/put"}, nil)

	upload, err := f.svc.RequestEvidenceUpload(f.ctx(), f.agent, f.txID, EvidenceInspection, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://s3/put", upload.URL)

	_, err = f.svc.RequestEvidenceUpload(f.ctx(), f.vendor, f.txID, EvidenceInspection, "image/jpeg")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.RequestEvidenceUpload(f.ctx(), f.agent, f.txID, EvidenceInspection, "text/plain")
	assert.ErrorIs(t, err, listings.ErrUnsupportedPhotoType)
}

func TestGet_VisibleToPartiesOnly(t *testing.T) {
	f := newFixture(t, 1_000_000)

	_, err := f.svc.Get(f.ctx(), f.client, f.txID)
	require.NoError(t, err)
	_, err = f.svc.Get(f.ctx(), f.admin, f.txID)
	require.NoError(t, err)
	_, err = f.svc.Get(f.ctx(), Actor{UserID: uuid.New(), Role: auth.RoleClient}, f.txID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(f.ctx(), f.client, uuid.New())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}
