package bids

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/pkg/events"
	"github.com/dirtsid3r/cellflip/pkg/testhelpers"
)

// memoryStore backs both Repository and ListingStore for engine tests.
type memoryStore struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*listings.Listing
	bids     []*Bid
}

func newMemoryStore() *memoryStore {
	return &memoryStore{listings: map[uuid.UUID]*listings.Listing{}}
}

func (m *memoryStore) GetListingForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*listings.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, listings.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memoryStore) UpdateListing(_ context.Context, _ pgx.Tx, listing *listings.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *listing
	m.listings[listing.ID] = &cp
	return nil
}

func (m *memoryStore) ClaimDueListing(_ context.Context, _ pgx.Tx, now time.Time) (*listings.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.listings {
		if l.Status == listings.StatusBiddingActive && l.DeadlinePassed(now) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, listings.ErrListingNotFound
}

func (m *memoryStore) SaveBid(_ context.Context, _ pgx.Tx, bid *Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *bid
	m.bids = append(m.bids, &cp)
	return nil
}

func (m *memoryStore) UpdateBidStatus(_ context.Context, _ pgx.Tx, bidID uuid.UUID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bids {
		if b.ID == bidID {
			b.Status = status
			return nil
		}
	}
	return errors.New("bid not found")
}

func (m *memoryStore) MarkOutbid(_ context.Context, _ pgx.Tx, listingID, keep uuid.UUID) (int64, error) {
	return m.move(listingID, keep, StatusOutbid, StatusActive), nil
}

func (m *memoryStore) SettleOthers(_ context.Context, _ pgx.Tx, listingID, winner uuid.UUID, status Status) (int64, error) {
	return m.move(listingID, winner, status, StatusActive, StatusOutbid), nil
}

func (m *memoryStore) move(listingID, keep uuid.UUID, to Status, from ...Status) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, b := range m.bids {
		if b.ListingID != listingID || b.ID == keep {
			continue
		}
		for _, f := range from {
			if b.Status == f {
				b.Status = to
				n++
				break
			}
		}
	}
	return n
}

func (m *memoryStore) HighestBid(_ context.Context, _ pgx.Tx, listingID uuid.UUID) (*Bid, error) {
	found, _ := m.GetBidsByListingID(context.Background(), listingID)
	if len(found) == 0 {
		return nil, ErrNoBids
	}
	return found[0], nil
}

func (m *memoryStore) GetBidsByListingID(_ context.Context, listingID uuid.UUID) ([]*Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Bid
	for _, b := range m.bids {
		if b.ListingID == listingID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryStore) GetBidsByVendorID(_ context.Context, vendorID uuid.UUID) ([]*Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Bid
	for _, b := range m.bids {
		if b.VendorID == vendorID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryStore) bidStatus(id uuid.UUID) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bids {
		if b.ID == id {
			return b.Status
		}
	}
	return ""
}

func (m *memoryStore) countStatus(listingID uuid.UUID, status Status) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bids {
		if b.ListingID == listingID && b.Status == status {
			n++
		}
	}
	return n
}

type MockOpener struct {
	mock.Mock
}

func (m *MockOpener) OpenTransaction(ctx context.Context, tx pgx.Tx, deal Deal) (uuid.UUID, error) {
	args := m.Called(ctx, tx, deal)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type recordingOutbox struct {
	mu     sync.Mutex
	events []*events.OutboxEvent
}

func (r *recordingOutbox) SaveEvent(_ context.Context, _ pgx.Tx, event *events.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingOutbox) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type countingMetrics struct {
	mu     sync.Mutex
	bids   map[string]int
	closes map[string]int
}

func (c *countingMetrics) RecordBid(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bids[outcome]++
}

func (c *countingMetrics) RecordBiddingClosed(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes[reason]++
}

type fixture struct {
	svc     *Service
	store   *memoryStore
	opener  *MockOpener
	outbox  *recordingOutbox
	metrics *countingMetrics
	txm     *testhelpers.FakeTxManager
	now     time.Time
}

func newFixture() *fixture {
	f := &fixture{
		store:   newMemoryStore(),
		opener:  new(MockOpener),
		outbox:  &recordingOutbox{},
		metrics: &countingMetrics{bids: map[string]int{}, closes: map[string]int{}},
		txm:     &testhelpers.FakeTxManager{},
		now:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.txm, f.store, f.store, f.opener, f.outbox, f.metrics)
	f.svc.now = func() time.Time { return f.now }
	return f
}

// openListing stores a bidding_active listing approved an hour before now.
func (f *fixture) openListing(askingPrice int64) *listings.Listing {
	approved := f.now.Add(-time.Hour)
	endsAt := approved.Add(24 * time.Hour)
	l := &listings.Listing{
		ID:            uuid.New(),
		ClientID:      uuid.New(),
		Brand:         "Samsung",
		Model:         "Galaxy S23",
		AskingPrice:   askingPrice,
		Status:        listings.StatusBiddingActive,
		ApprovedAt:    &approved,
		BiddingEndsAt: &endsAt,
	}
	f.store.listings[l.ID] = l
	return l
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func TestPlaceBid_EarlyCloseScenario(t *testing.T) {
	// Arrange: ₹65,000 asking price
	f := newFixture()
	listing := f.openListing(6_500_000)
	vendorA, vendorB := uuid.New(), uuid.New()
	txID := uuid.New()
	f.opener.On("OpenTransaction", mock.Anything, mock.Anything, mock.MatchedBy(func(d Deal) bool {
		return d.ListingID == listing.ID && d.VendorID == vendorB && d.Amount == 7_000_000 && d.ClientID == listing.ClientID
	})).Return(txID, nil).Once()

	// Act: ₹58,000 then ₹70,000
	first, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{ListingID: listing.ID, VendorID: vendorA, Amount: 5_800_000})
	require.NoError(t, err)
	f.advance(time.Minute)
	second, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{ListingID: listing.ID, VendorID: vendorB, Amount: 7_000_000})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, StatusActive, first.Status)
	assert.Equal(t, StatusAccepted, second.Status)
	assert.Equal(t, StatusRejected, f.store.bidStatus(first.ID))
	assert.Equal(t, 1, f.store.countStatus(listing.ID, StatusAccepted))

	stored := f.store.listings[listing.ID]
	assert.Equal(t, listings.StatusBiddingEnded, stored.Status)
	assert.Equal(t, int64(7_000_000), stored.CurrentHighestBid)
	require.NotNil(t, stored.AcceptedBidID)
	assert.Equal(t, second.ID, *stored.AcceptedBidID)

	// No further bids once closed.
	_, err = f.svc.PlaceBid(context.Background(), PlaceBidCommand{ListingID: listing.ID, VendorID: vendorA, Amount: 9_000_000})
	assert.ErrorIs(t, err, ErrListingNotOpen)

	assert.Equal(t, []string{
		events.TypeBidPlaced,
		events.TypeBidPlaced, events.TypeBidAccepted, events.TypeBiddingEnded,
	}, f.outbox.types())
	assert.Equal(t, 1, f.metrics.bids["accepted"])
	assert.Equal(t, 1, f.metrics.closes["asking_price"])
	f.opener.AssertExpectations(t)
}

func TestPlaceBid_NewHighestMarksPreviousOutbid(t *testing.T) {
	f := newFixture()
	listing := f.openListing(10_000_000)

	low, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{ListingID: listing.ID, VendorID: uuid.New(), Amount: 5_000_000})
	require.NoError(t, err)
	high, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{ListingID: listing.ID, VendorID: uuid.New(), Amount: 5_500_000})
	require.NoError(t, err)

	assert.Equal(t, StatusOutbid, f.store.bidStatus(low.ID))
	assert.Equal(t, StatusActive, f.store.bidStatus(high.ID))
	assert.Equal(t, int64(5_500_000), f.store.listings[listing.ID].CurrentHighestBid)
	f.opener.AssertNotCalled(t, "OpenTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestPlaceBid_Validation(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture, l *listings.Listing)
		vendor  func(l *listings.Listing) uuid.UUID
		amount  int64
		wantErr error
	}{
		{
			name:    "zero amount",
			amount:  0,
			wantErr: ErrInvalidBidAmount,
		},
		{
			name:    "owner bids on own listing",
			vendor:  func(l *listings.Listing) uuid.UUID { return l.ClientID },
			amount:  1_000_000,
			wantErr: ErrOwnerCannotBid,
		},
		{
			name:    "equal to current highest",
			setup:   func(_ *fixture, l *listings.Listing) { l.CurrentHighestBid = 1_000_000 },
			amount:  1_000_000,
			wantErr: ErrBidTooLow,
		},
		{
			name:    "listing not approved",
			setup:   func(_ *fixture, l *listings.Listing) { l.Status = listings.StatusUnderReview },
			amount:  1_000_000,
			wantErr: ErrListingNotOpen,
		},
		{
			name:    "after deadline",
			setup:   func(f *fixture, _ *listings.Listing) { f.advance(24 * time.Hour) },
			amount:  1_000_000,
			wantErr: ErrBiddingClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newFixture()
			listing := f.openListing(6_500_000)
			if tt.setup != nil {
				tt.setup(f, listing)
			}
			vendor := uuid.New()
			if tt.vendor != nil {
				vendor = tt.vendor(listing)
			}

			// Act
			_, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{ListingID: listing.ID, VendorID: vendor, Amount: tt.amount})

			// Assert
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.store.bids)
			assert.Empty(t, f.outbox.types())
		})
	}
}

func TestPlaceBid_UnknownListing(t *testing.T) {
	f := newFixture()
	_, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{ListingID: uuid.New(), VendorID: uuid.New(), Amount: 100})
	assert.ErrorIs(t, err, listings.ErrListingNotFound)
}

func TestCloseBidding_AwardsHighestEarliest(t *testing.T) {
	// Arrange
	f := newFixture()
	listing := f.openListing(10_000_000)
	early, late := uuid.New(), uuid.New()

	_, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{ListingID: listing.ID, VendorID: uuid.New(), Amount: 4_000_000})
	require.NoError(t, err)
	f.advance(time.Minute)
	winner, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{ListingID: listing.ID, VendorID: early, Amount: 6_000_000})
	require.NoError(t, err)

	// Equal amount placed later cannot be stored through PlaceBid, so seed it directly.
	f.store.bids = append(f.store.bids, &Bid{
		ID: uuid.New(), ListingID: listing.ID, VendorID: late, Amount: 6_000_000,
		Status: StatusActive, CreatedAt: f.now.Add(time.Minute),
	})

	txID := uuid.New()
	f.opener.On("OpenTransaction", mock.Anything, mock.Anything, mock.MatchedBy(func(d Deal) bool {
		return d.BidID == winner.ID && d.VendorID == early
	})).Return(txID, nil).Once()

	// Before the deadline the window stays open.
	_, err = f.svc.CloseBidding(context.Background(), listing.ID)
	require.ErrorIs(t, err, ErrBiddingStillOpen)

	// Act
	f.advance(24 * time.Hour)
	result, err := f.svc.CloseBidding(context.Background(), listing.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwarded, result.Outcome)
	assert.Equal(t, winner.ID, result.WinningBid.ID)
	require.NotNil(t, result.TransactionID)
	assert.Equal(t, txID, *result.TransactionID)
	assert.Equal(t, StatusAccepted, f.store.bidStatus(winner.ID))
	assert.Equal(t, 1, f.store.countStatus(listing.ID, StatusAccepted))
	assert.Equal(t, 2, f.store.countStatus(listing.ID, StatusExpired))
	assert.Equal(t, listings.StatusBiddingEnded, f.store.listings[listing.ID].Status)
	assert.Equal(t, 1, f.metrics.closes["deadline"])

	// Closing again is a no-op.
	again, err := f.svc.CloseBidding(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyClosed, again.Outcome)
	f.opener.AssertExpectations(t)
}

func TestCloseBidding_NoBidsCancelsListing(t *testing.T) {
	f := newFixture()
	listing := f.openListing(6_500_000)
	f.advance(24 * time.Hour)

	result, err := f.svc.CloseBidding(context.Background(), listing.ID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeNoBids, result.Outcome)
	stored := f.store.listings[listing.ID]
	assert.Equal(t, listings.StatusCancelled, stored.Status)
	assert.Equal(t, "no bids", stored.CancellationReason)
	assert.Equal(t, []string{events.TypeBiddingEnded, events.TypeListingCancelled}, f.outbox.types())
	f.opener.AssertNotCalled(t, "OpenTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestCloseExpired_SweepsDueListings(t *testing.T) {
	f := newFixture()
	due := f.openListing(6_500_000)
	notDue := f.openListing(6_500_000)
	later := f.now.Add(48 * time.Hour)
	notDue.BiddingEndsAt = &later
	f.advance(24 * time.Hour)

	closed, err := f.svc.CloseExpired(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	assert.Equal(t, listings.StatusCancelled, f.store.listings[due.ID].Status)
	assert.Equal(t, listings.StatusBiddingActive, f.store.listings[notDue.ID].Status)
}

func TestPlaceBid_ConcurrentBidsKeepOneAccepted(t *testing.T) {
	f := newFixture()
	listing := f.openListing(5_000_000)
	f.opener.On("OpenTransaction", mock.Anything, mock.Anything, mock.Anything).Return(uuid.New(), nil)

	// The memory store does not lock, so serialize the way the row lock does.
	var lock sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			lock.Lock()
			defer lock.Unlock()
			_, _ = f.svc.PlaceBid(context.Background(), PlaceBidCommand{ListingID: listing.ID, VendorID: uuid.New(), Amount: amount})
		}(int64(5_000_000 + i*1000))
	}
	wg.Wait()

	assert.Equal(t, 1, f.store.countStatus(listing.ID, StatusAccepted))
	f.opener.AssertNumberOfCalls(t, "OpenTransaction", 1)
}
