package database_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirtsid3r/cellflip/internal/adapters/database"
	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	"github.com/dirtsid3r/cellflip/internal/domain/bids"
	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/internal/domain/otp"
	"github.com/dirtsid3r/cellflip/internal/domain/settlement"
	"github.com/dirtsid3r/cellflip/internal/domain/transactions"
	"github.com/dirtsid3r/cellflip/internal/domain/users"
	"github.com/dirtsid3r/cellflip/internal/metrics"
	"github.com/dirtsid3r/cellflip/pkg/auth"
	pkgdb "github.com/dirtsid3r/cellflip/pkg/database"
	"github.com/dirtsid3r/cellflip/pkg/testhelpers"
)

func seedUser(t *testing.T, pool *pgxpool.Pool, role auth.Role, phone string) *users.User {
	t.Helper()
	now := time.Now().UTC()
	u := &users.User{
		ID:        uuid.New(),
		Phone:     phone,
		FullName:  "Test " + string(role),
		City:      "Bengaluru",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	withTx(t, pool, func(tx pgx.Tx) error {
		return database.NewPostgresUserRepository(pool).CreateUser(context.Background(), tx, u)
	})
	return u
}

func seedListing(t *testing.T, pool *pgxpool.Pool, clientID uuid.UUID, status listings.Status, endsAt time.Time) *listings.Listing {
	t.Helper()
	now := time.Now().UTC()
	l := &listings.Listing{
		ID:            uuid.New(),
		ClientID:      clientID,
		Brand:         "Apple",
		Model:         "iPhone 14",
		Variant:       "128GB",
		Color:         "Midnight",
		Condition:     listings.ConditionGood,
		AskingPrice:   6_500_000,
		IMEIs:         []string{"356789012345678"},
		Accessories:   listings.Accessories{Box: true, Charger: true},
		BatteryHealth: 90,
		Pickup:        listings.Address{Line: "12 MG Road", City: "Bengaluru", Pincode: "560001"},
		PhotoKeys:     []string{},
		Status:        status,
		BiddingEndsAt: &endsAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	withTx(t, pool, func(tx pgx.Tx) error {
		return database.NewPostgresListingRepository(pool).CreateListing(context.Background(), tx, l)
	})
	return l
}

func withTx(t *testing.T, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) {
	t.Helper()
	ctx := context.Background()
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	require.NoError(t, fn(tx))
	require.NoError(t, tx.Commit(ctx))
}

func TestRepositories_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := testhelpers.NewTestDatabase(t)
	defer testDB.Close()
	pool := testDB.Pool
	ctx := context.Background()

	listingRepo := database.NewPostgresListingRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	txRepo := database.NewPostgresTransactionRepository(pool)

	t.Run("UserLookupMissReturnsNil", func(t *testing.T) {
		repo := database.NewPostgresUserRepository(pool)

		u, err := repo.GetUserByPhone(ctx, "+919999999999")

		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("DuplicatePhoneReturnsUserAlreadyExists", func(t *testing.T) {
		repo := database.NewPostgresUserRepository(pool)
		existing := seedUser(t, pool, auth.RoleClient, "+919800000077")
		now := time.Now().UTC()
		dup := &users.User{
			ID: uuid.New(), Phone: existing.Phone, FullName: "Second", City: "Pune",
			Role: auth.RoleVendor, CreatedAt: now, UpdatedAt: now,
		}

		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback(ctx) }()
		err = repo.CreateUser(ctx, tx, dup)

		assert.ErrorIs(t, err, users.ErrUserAlreadyExists)
	})

	t.Run("ListingRoundTripAndFilters", func(t *testing.T) {
		client := seedUser(t, pool, auth.RoleClient, "+919800000001")
		l := seedListing(t, pool, client.ID, listings.StatusBiddingActive, time.Now().Add(time.Hour))

		got, err := listingRepo.GetListing(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, l.Brand, got.Brand)
		assert.Equal(t, l.IMEIs, got.IMEIs)
		assert.True(t, got.Accessories.Box)
		assert.Equal(t, "560001", got.Pickup.Pincode)

		found, err := listingRepo.ListListings(ctx, listings.ListFilter{
			Brand:    "apple",
			ClientID: &client.ID,
			Limit:    10,
		})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, l.ID, found[0].ID)

		require.NoError(t, listingRepo.AddPhotoKey(ctx, l.ID, "listings/a.jpg"))
		got, err = listingRepo.GetListing(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"listings/a.jpg"}, got.PhotoKeys)

		_, err = listingRepo.GetListing(ctx, uuid.New())
		assert.ErrorIs(t, err, listings.ErrListingNotFound)
	})

	t.Run("ClaimDueListingSkipsFutureDeadlines", func(t *testing.T) {
		client := seedUser(t, pool, auth.RoleClient, "+919800000002")
		due := seedListing(t, pool, client.ID, listings.StatusBiddingActive, time.Now().Add(-time.Minute))
		seedListing(t, pool, client.ID, listings.StatusBiddingActive, time.Now().Add(time.Hour))

		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback(ctx) }()

		claimed, err := listingRepo.ClaimDueListing(ctx, tx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, due.ID, claimed.ID)
	})

	t.Run("HighestBidPrefersEarliestOnTie", func(t *testing.T) {
		client := seedUser(t, pool, auth.RoleClient, "+919800000003")
		v1 := seedUser(t, pool, auth.RoleVendor, "+919800000004")
		v2 := seedUser(t, pool, auth.RoleVendor, "+919800000005")
		l := seedListing(t, pool, client.ID, listings.StatusBiddingActive, time.Now().Add(time.Hour))

		base := time.Now().UTC().Add(-time.Hour)
		first := &bids.Bid{ID: uuid.New(), ListingID: l.ID, VendorID: v1.ID, Amount: 5_800_000, Status: bids.StatusActive, CreatedAt: base, UpdatedAt: base}
		second := &bids.Bid{ID: uuid.New(), ListingID: l.ID, VendorID: v2.ID, Amount: 5_800_000, Status: bids.StatusActive, CreatedAt: base.Add(time.Minute), UpdatedAt: base}
		withTx(t, pool, func(tx pgx.Tx) error {
			if err := bidRepo.SaveBid(ctx, tx, first); err != nil {
				return err
			}
			return bidRepo.SaveBid(ctx, tx, second)
		})

		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback(ctx) }()

		best, err := bidRepo.HighestBid(ctx, tx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, best.ID)

		_, err = bidRepo.HighestBid(ctx, tx, uuid.New())
		assert.ErrorIs(t, err, bids.ErrNoBids)
	})

	t.Run("OnlyOneAcceptedBidPerListing", func(t *testing.T) {
		client := seedUser(t, pool, auth.RoleClient, "+919800000006")
		vendor := seedUser(t, pool, auth.RoleVendor, "+919800000007")
		l := seedListing(t, pool, client.ID, listings.StatusBiddingActive, time.Now().Add(time.Hour))
		now := time.Now().UTC()

		withTx(t, pool, func(tx pgx.Tx) error {
			return bidRepo.SaveBid(ctx, tx, &bids.Bid{ID: uuid.New(), ListingID: l.ID, VendorID: vendor.ID, Amount: 100, Status: bids.StatusAccepted, CreatedAt: now, UpdatedAt: now})
		})

		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback(ctx) }()
		err = bidRepo.SaveBid(ctx, tx, &bids.Bid{ID: uuid.New(), ListingID: l.ID, VendorID: vendor.ID, Amount: 200, Status: bids.StatusAccepted, CreatedAt: now, UpdatedAt: now})
		assert.Error(t, err)
	})

	t.Run("TransactionJSONColumnsAndSettlement", func(t *testing.T) {
		client := seedUser(t, pool, auth.RoleClient, "+919800000008")
		vendor := seedUser(t, pool, auth.RoleVendor, "+919800000009")
		l := seedListing(t, pool, client.ID, listings.StatusBiddingEnded, time.Now())
		now := time.Now().UTC()
		bid := &bids.Bid{ID: uuid.New(), ListingID: l.ID, VendorID: vendor.ID, Amount: 5_800_000, Status: bids.StatusAccepted, CreatedAt: now, UpdatedAt: now}
		trx := &transactions.Transaction{
			ID: uuid.New(), ListingID: l.ID, BidID: bid.ID, ClientID: client.ID, VendorID: vendor.ID,
			BidAmount: bid.Amount, Phase: transactions.PhaseBidding, Status: transactions.StatusPending,
			Stage: transactions.StageAwaitingAgent, FinalOffer: bid.Amount, CreatedAt: now, UpdatedAt: now,
		}
		withTx(t, pool, func(tx pgx.Tx) error {
			if err := bidRepo.SaveBid(ctx, tx, bid); err != nil {
				return err
			}
			return txRepo.CreateTransaction(ctx, tx, trx)
		})

		trx.Deductions = []transactions.Deduction{{Category: transactions.CategoryCosmetic, Description: "scratches", RateBps: 300, Amount: 174_000, Severity: transactions.SeverityMinor}}
		trx.Inspection = &transactions.Inspection{ActualCondition: listings.ConditionFair, BatteryHealth: 78, CosmeticIssues: []string{"scratches"}}
		trx.TotalDeductions = 174_000
		withTx(t, pool, func(tx pgx.Tx) error {
			return txRepo.UpdateTransaction(ctx, tx, trx)
		})

		got, err := txRepo.GetTransaction(ctx, trx.ID)
		require.NoError(t, err)
		require.Len(t, got.Deductions, 1)
		assert.Equal(t, transactions.CategoryCosmetic, got.Deductions[0].Category)
		require.NotNil(t, got.Inspection)
		assert.Equal(t, 78, got.Inspection.BatteryHealth)
		assert.Nil(t, got.Identity)

		mine, err := txRepo.ListForUser(ctx, vendor.ID)
		require.NoError(t, err)
		assert.Len(t, mine, 1)

		breakdown, err := settlement.Compute(got.FinalOffer, settlement.DefaultRates())
		require.NoError(t, err)
		s := &settlement.Settlement{TransactionID: trx.ID, Breakdown: breakdown, PaymentMethod: settlement.PaymentUPI, SettledAt: now}
		withTx(t, pool, func(tx pgx.Tx) error {
			return txRepo.SaveSettlement(ctx, tx, s)
		})

		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback(ctx) }()
		stored, err := txRepo.GetSettlement(ctx, tx, trx.ID)
		require.NoError(t, err)
		assert.Equal(t, breakdown.VendorCharge, stored.VendorCharge)

		_, err = txRepo.GetSettlement(ctx, tx, uuid.New())
		assert.ErrorIs(t, err, transactions.ErrSettlementNotFound)
	})

	t.Run("GateExpiryMatchesBindingExactly", func(t *testing.T) {
		repo := database.NewPostgresGateRepository(pool)
		txID := uuid.New()
		now := time.Now().UTC()
		bound := &otp.Gate{ID: uuid.New(), Phone: "+919811111111", Purpose: otp.PurposeTransactionAccept, TransactionID: &txID, CodeHash: "h", Status: otp.StatusIssued, ExpiresAt: now.Add(5 * time.Minute), CreatedAt: now}
		login := &otp.Gate{ID: uuid.New(), Phone: "+919811111111", Purpose: otp.PurposeLogin, CodeHash: "h", Status: otp.StatusIssued, ExpiresAt: now.Add(5 * time.Minute), CreatedAt: now}
		withTx(t, pool, func(tx pgx.Tx) error {
			if err := repo.CreateGate(ctx, tx, bound); err != nil {
				return err
			}
			return repo.CreateGate(ctx, tx, login)
		})

		withTx(t, pool, func(tx pgx.Tx) error {
			n, err := repo.ExpireIssued(ctx, tx, otp.Binding{Phone: "+919811111111", Purpose: otp.PurposeLogin})
			assert.Equal(t, int64(1), n)
			return err
		})

		withTx(t, pool, func(tx pgx.Tx) error {
			g, err := repo.GetGateForUpdate(ctx, tx, bound.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, otp.StatusIssued, g.Status)
			g, err = repo.GetGateForUpdate(ctx, tx, login.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, otp.StatusExpired, g.Status)
			return nil
		})
	})

	t.Run("AgentPickupCountersNeverGoNegative", func(t *testing.T) {
		repo := database.NewPostgresAgentRepository(pool)
		u := seedUser(t, pool, auth.RoleAgent, "+919822222222")
		withTx(t, pool, func(tx pgx.Tx) error {
			return repo.CreateAgent(ctx, tx, &agents.Agent{UserID: u.ID, City: "Bengaluru", Availability: agents.AvailabilityAvailable, UpdatedAt: time.Now()})
		})

		withTx(t, pool, func(tx pgx.Tx) error {
			return repo.AdjustPickups(ctx, tx, u.ID, -1, 1)
		})

		a, err := repo.GetAgent(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.FullName, a.FullName)
		assert.Equal(t, 0, a.ActivePickups)
		assert.Equal(t, 1, a.TotalPickups)

		assert.ErrorIs(t, repo.UpdateAvailability(ctx, uuid.New(), agents.AvailabilityBusy), agents.ErrAgentNotFound)
	})

	t.Run("VendorStatsAccumulate", func(t *testing.T) {
		repo := database.NewPostgresVendorStatsRepository(pool)
		vendor := seedUser(t, pool, auth.RoleVendor, "+919844444444")

		missing, err := repo.GetVendorStats(ctx, vendor.ID)
		require.NoError(t, err)
		assert.Nil(t, missing)

		first := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
		withTx(t, pool, func(tx pgx.Tx) error {
			if err := repo.RecordBid(ctx, tx, vendor.ID, 5_000_000, first); err != nil {
				return err
			}
			// An older event arriving late must not move last_bid_at backwards.
			if err := repo.RecordBid(ctx, tx, vendor.ID, 5_200_000, first.Add(-time.Minute)); err != nil {
				return err
			}
			if err := repo.RecordWin(ctx, tx, vendor.ID); err != nil {
				return err
			}
			return repo.RecordSpend(ctx, tx, vendor.ID, 5_304_000)
		})

		s, err := repo.GetVendorStats(ctx, vendor.ID)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, int64(2), s.TotalBids)
		assert.Equal(t, int64(10_200_000), s.TotalAmountBid)
		assert.Equal(t, int64(1), s.WonBids)
		assert.Equal(t, int64(5_304_000), s.TotalSpent)
		require.NotNil(t, s.LastBidAt)
		assert.True(t, first.Equal(*s.LastBidAt))
		assert.InDelta(t, 50.0, s.SuccessRate(), 0.001)
	})

	t.Run("ConcurrentBidsAtAskingPriceAcceptOne", func(t *testing.T) {
		client := seedUser(t, pool, auth.RoleClient, "+919833333333")
		l := seedListing(t, pool, client.ID, listings.StatusBiddingActive, time.Now().Add(time.Hour))

		txManager := pkgdb.NewPostgresTransactionManager(pool, 5*time.Second)
		outbox := database.NewPostgresOutboxRepository(pool)
		trxService, err := transactions.NewService(transactions.Deps{
			TxManager: txManager,
			Repo:      txRepo,
		}, settlement.DefaultRates())
		require.NoError(t, err)
		bidService := bids.NewService(txManager, bidRepo, listingRepo, trxService, outbox, metrics.New(prometheus.NewRegistry()))

		const vendors = 5
		var wg sync.WaitGroup
		results := make([]*bids.Bid, vendors)
		errs := make([]error, vendors)
		for i := range vendors {
			v := seedUser(t, pool, auth.RoleVendor, "+91984444444"+string(rune('0'+i)))
			wg.Add(1)
			go func(i int, vendorID uuid.UUID) {
				defer wg.Done()
				results[i], errs[i] = bidService.PlaceBid(ctx, bids.PlaceBidCommand{
					ListingID: l.ID,
					VendorID:  vendorID,
					Amount:    l.AskingPrice,
				})
			}(i, v.ID)
		}
		wg.Wait()

		accepted := 0
		for i := range vendors {
			if errs[i] == nil && results[i].Status == bids.StatusAccepted {
				accepted++
			}
		}
		assert.Equal(t, 1, accepted)

		got, err := listingRepo.GetListing(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, listings.StatusBiddingEnded, got.Status)
		require.NotNil(t, got.AcceptedBidID)

		pending, err := outbox.CountPending(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, pending, int64(3))
	})
}
