package sponsorship

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
	"gorm.io/gorm"

	"providerdirectory_backend/internal/model"
	"providerdirectory_backend/pkg/config"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testPriceTable() config.PriceTable {
	return config.PriceTable{
		"featured:month": "price_featured_m",
		"featured:year":  "price_featured_y",
		"sponsor:month":  "price_sponsor_m",
		"sponsor:year":   "price_sponsor_y",
		"partner:month":  "price_partner_m",
		"partner:year":   "price_partner_y",
	}
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeGateway) {
	t.Helper()

	repo := newFakeRepo()
	gateway := newFakeGateway()
	svc := NewService(repo, gateway, config.StripeConfig{
		SuccessURL: "https://directory.test/success",
		CancelURL:  "https://directory.test/cancel",
		Prices:     testPriceTable(),
	}, nil)
	svc.now = func() time.Time { return testNow }

	return svc, repo, gateway
}

func seedProvider(repo *fakeRepo, id, userID uint) *model.Provider {
	return repo.addProvider(model.Provider{
		Model:  gorm.Model{ID: id},
		UserID: userID,
		Name:   "Bridges Learning Center",
		Slug:   "bridges-learning-center",
		Email:  "office@bridges.test",
		Status: model.ProviderStatusApproved,
	})
}

func TestStartCheckout_SelectsConfiguredPrice(t *testing.T) {
	for _, tt := range []struct {
		tier   Tier
		period BillingPeriod
		want   string
	}{
		{TierFeatured, PeriodMonth, "price_featured_m"},
		{TierFeatured, PeriodYear, "price_featured_y"},
		{TierSponsor, PeriodMonth, "price_sponsor_m"},
		{TierSponsor, PeriodYear, "price_sponsor_y"},
		{TierPartner, PeriodMonth, "price_partner_m"},
		{TierPartner, PeriodYear, "price_partner_y"},
	} {
		t.Run(string(tt.tier)+"_"+string(tt.period), func(t *testing.T) {
			svc, repo, gateway := newTestService(t)
			seedProvider(repo, 1, 10)

			url, err := svc.StartCheckout(10, 1, tt.tier, tt.period)

			require.NoError(t, err)
			assert.Equal(t, "https://checkout.stripe.test/pay", url)
			assert.Equal(t, tt.want, gateway.lastCheckout.PriceID)
			assert.Equal(t, string(tt.tier), gateway.lastCheckout.Metadata["tier"])
			assert.Equal(t, string(tt.period), gateway.lastCheckout.Metadata["billing_period"])
		})
	}
}

func TestStartCheckout_UnconfiguredPriceIsConfigurationError(t *testing.T) {
	svc, repo, gateway := newTestService(t)
	seedProvider(repo, 1, 10)
	delete(svc.stripe.Prices, "partner:year")

	_, err := svc.StartCheckout(10, 1, TierPartner, PeriodYear)

	require.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, gateway.checkoutSessions, "no session may be created without a price")
}

func TestStartCheckout_Validation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedProvider(repo, 1, 10)

	_, err := svc.StartCheckout(10, 1, Tier("platinum"), PeriodMonth)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.StartCheckout(10, 1, TierFree, PeriodMonth)
	assert.ErrorIs(t, err, ErrValidation, "free is not purchasable")

	_, err = svc.StartCheckout(10, 1, TierSponsor, BillingPeriod("week"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStartCheckout_Authorization(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedProvider(repo, 1, 10)

	_, err := svc.StartCheckout(99, 1, TierSponsor, PeriodMonth)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = svc.StartCheckout(10, 42, TierSponsor, PeriodMonth)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureCustomer(t *testing.T) {
	t.Run("creates and persists a customer when none is stored", func(t *testing.T) {
		svc, repo, gateway := newTestService(t)
		seedProvider(repo, 1, 10)

		_, err := svc.StartCheckout(10, 1, TierSponsor, PeriodMonth)

		require.NoError(t, err)
		assert.Equal(t, 1, gateway.createdCustomers)
		assert.Equal(t, "cus_1", repo.providers[1].StripeCustomerID)
	})

	t.Run("reuses a stored customer that still resolves", func(t *testing.T) {
		svc, repo, gateway := newTestService(t)
		provider := seedProvider(repo, 1, 10)
		cust, err := gateway.CreateCustomer(provider.Email, provider.Name)
		require.NoError(t, err)
		repo.providers[1].StripeCustomerID = cust.ID
		gateway.createdCustomers = 0

		_, err = svc.StartCheckout(10, 1, TierSponsor, PeriodMonth)

		require.NoError(t, err)
		assert.Zero(t, gateway.createdCustomers)
		assert.Equal(t, cust.ID, gateway.lastCheckout.CustomerID)
	})

	t.Run("replaces a stored customer the processor no longer knows", func(t *testing.T) {
		svc, repo, gateway := newTestService(t)
		seedProvider(repo, 1, 10)
		repo.providers[1].StripeCustomerID = "cus_gone"

		_, err := svc.StartCheckout(10, 1, TierSponsor, PeriodMonth)

		require.NoError(t, err)
		assert.Equal(t, 1, gateway.createdCustomers)
		assert.Equal(t, "cus_1", repo.providers[1].StripeCustomerID)
	})
}

func TestCreatePaymentIntent_CreatesPendingRowImmediately(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedProvider(repo, 1, 10)

	result, err := svc.CreatePaymentIntent(10, 1, TierSponsor)

	require.NoError(t, err)
	assert.Equal(t, int64(5000), result.AmountCents, "amount comes from the catalog in minor units")
	assert.Equal(t, "pi_1", result.PaymentIntentID)
	assert.NotEmpty(t, result.ClientSecret)

	sub := repo.sponsorships[result.SponsorshipID]
	require.NotNil(t, sub, "the pending row exists before the client pays")
	assert.Equal(t, model.SponsorshipStatusPending, sub.Status)
	assert.Equal(t, string(TierSponsor), sub.Tier)
	assert.Equal(t, float64(50), sub.AmountPaid)
	assert.Equal(t, "pi_1", sub.StripePaymentIntentID)

	provider := repo.providers[1]
	assert.False(t, provider.IsSponsored, "no entitlement before the processor confirms")
}

func TestConfirmPayment(t *testing.T) {
	t.Run("refuses while the processor reports the intent unpaid", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		seedProvider(repo, 1, 10)
		result, err := svc.CreatePaymentIntent(10, 1, TierSponsor)
		require.NoError(t, err)

		_, err = svc.ConfirmPayment(result.PaymentIntentID)

		require.ErrorIs(t, err, ErrPaymentIncomplete)
		assert.Equal(t, model.SponsorshipStatusPending, repo.sponsorships[result.SponsorshipID].Status)
	})

	t.Run("activates once the processor confirms", func(t *testing.T) {
		svc, repo, gateway := newTestService(t)
		seedProvider(repo, 1, 10)
		result, err := svc.CreatePaymentIntent(10, 1, TierSponsor)
		require.NoError(t, err)
		gateway.intents[result.PaymentIntentID].Status = stripe.PaymentIntentStatusSucceeded

		sub, err := svc.ConfirmPayment(result.PaymentIntentID)

		require.NoError(t, err)
		assert.Equal(t, model.SponsorshipStatusActive, sub.Status)
		assert.Equal(t, testNow.AddDate(0, 1, 0), *sub.EndsAt)
	})

	t.Run("unknown intent is not found", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.ConfirmPayment("pi_unknown")

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestActivate_IdempotentAtSameInstant(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedProvider(repo, 1, 10)
	sub := &model.Sponsorship{ProviderID: 1, Tier: string(TierSponsor), Status: model.SponsorshipStatusPending}
	require.NoError(t, repo.CreateSponsorship(sub))

	changed, err := svc.Activate(sub, testNow, nil, PeriodMonth)
	require.NoError(t, err)
	require.True(t, changed)

	startsAt, endsAt := *sub.StartsAt, *sub.EndsAt
	projected := *repo.providers[1]

	changed, err = svc.Activate(sub, testNow, nil, PeriodMonth)
	require.NoError(t, err)
	assert.False(t, changed, "second activation at the same instant is a no-op")
	assert.Equal(t, startsAt, *sub.StartsAt)
	assert.Equal(t, endsAt, *sub.EndsAt)
	assert.Equal(t, projected, *repo.providers[1], "projection unchanged by the replay")
}

func TestActivate_DerivesTermFromBillingPeriod(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedProvider(repo, 1, 10)

	monthly := &model.Sponsorship{ProviderID: 1, Tier: string(TierSponsor), Status: model.SponsorshipStatusPending}
	require.NoError(t, repo.CreateSponsorship(monthly))
	_, err := svc.Activate(monthly, testNow, nil, PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, testNow.AddDate(0, 1, 0), *monthly.EndsAt)

	annual := &model.Sponsorship{ProviderID: 1, Tier: string(TierSponsor), Status: model.SponsorshipStatusPending}
	require.NoError(t, repo.CreateSponsorship(annual))
	_, err = svc.Activate(annual, testNow, nil, PeriodYear)
	require.NoError(t, err)
	assert.Equal(t, testNow.AddDate(1, 0, 0), *annual.EndsAt, "annual purchases entitle a full year")
}

func TestActivate_ProjectsEntitlementOntoProvider(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedProvider(repo, 1, 10)
	sub := &model.Sponsorship{
		ProviderID:           1,
		Tier:                 string(TierPartner),
		Status:               model.SponsorshipStatusPending,
		StripeCustomerID:     "cus_7",
		StripeSubscriptionID: "sub_7",
	}
	require.NoError(t, repo.CreateSponsorship(sub))

	_, err := svc.Activate(sub, testNow, nil, PeriodMonth)
	require.NoError(t, err)

	provider := repo.providers[1]
	assert.True(t, provider.IsSponsored)
	assert.Equal(t, 3, provider.SponsorshipTier)
	assert.Equal(t, *sub.EndsAt, *provider.SponsoredUntil)
	assert.Equal(t, "cus_7", provider.StripeCustomerID)
	assert.Equal(t, "sub_7", provider.StripeSubscriptionID)
}

func TestCancel_GuardedProjectionClear(t *testing.T) {
	t.Run("clears the provider flags when the projected tier matches", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		seedProvider(repo, 1, 10)
		sub := &model.Sponsorship{ProviderID: 1, Tier: string(TierSponsor), Status: model.SponsorshipStatusPending, StripeCustomerID: "cus_1"}
		require.NoError(t, repo.CreateSponsorship(sub))
		_, err := svc.Activate(sub, testNow, nil, PeriodMonth)
		require.NoError(t, err)

		changed, err := svc.Cancel(sub, testNow.Add(time.Hour))

		require.NoError(t, err)
		require.True(t, changed)
		provider := repo.providers[1]
		assert.False(t, provider.IsSponsored)
		assert.Equal(t, 0, provider.SponsorshipTier)
		assert.Nil(t, provider.SponsoredUntil)
		assert.Empty(t, provider.StripeSubscriptionID)
		assert.Equal(t, "cus_1", provider.StripeCustomerID, "customer linkage survives cancellation")
	})

	t.Run("leaves the flags alone when a newer sponsorship owns the projection", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		seedProvider(repo, 1, 10)
		stale := &model.Sponsorship{ProviderID: 1, Tier: string(TierSponsor), Status: model.SponsorshipStatusActive}
		require.NoError(t, repo.CreateSponsorship(stale))

		// A partner sponsorship has since replaced the sponsor one.
		until := testNow.AddDate(0, 1, 0)
		repo.providers[1].IsSponsored = true
		repo.providers[1].SponsorshipTier = 3
		repo.providers[1].SponsoredUntil = &until

		changed, err := svc.Cancel(stale, testNow)

		require.NoError(t, err)
		require.True(t, changed, "the stale row itself still cancels")
		assert.Equal(t, model.SponsorshipStatusCancelled, repo.sponsorships[stale.ID].Status)
		provider := repo.providers[1]
		assert.True(t, provider.IsSponsored, "the newer entitlement must not be clobbered")
		assert.Equal(t, 3, provider.SponsorshipTier)
	})
}

func TestCancelForProvider(t *testing.T) {
	svc, repo, gateway := newTestService(t)
	seedProvider(repo, 1, 10)
	sub := &model.Sponsorship{ProviderID: 1, Tier: string(TierSponsor), Status: model.SponsorshipStatusPending, StripeSubscriptionID: "sub_1"}
	require.NoError(t, repo.CreateSponsorship(sub))
	_, err := svc.Activate(sub, testNow, nil, PeriodMonth)
	require.NoError(t, err)

	cancelled, err := svc.CancelForProvider(10, 1)

	require.NoError(t, err)
	assert.Equal(t, model.SponsorshipStatusCancelled, cancelled.Status)
	assert.Equal(t, []string{"sub_1"}, gateway.cancelledSubs, "the remote subscription stops billing first")

	_, err = svc.CancelForProvider(10, 1)
	assert.ErrorIs(t, err, ErrNotFound, "nothing active remains")
}

func TestReconcile(t *testing.T) {
	svc, repo, gateway := newTestService(t)
	seedProvider(repo, 1, 10)
	seedProvider(repo, 2, 11)
	seedProvider(repo, 3, 12)

	gone := &model.Sponsorship{ProviderID: 1, Tier: string(TierSponsor), Status: model.SponsorshipStatusPending, StripeSubscriptionID: "sub_gone"}
	require.NoError(t, repo.CreateSponsorship(gone))
	_, err := svc.Activate(gone, testNow, nil, PeriodMonth)
	require.NoError(t, err)

	renewed := &model.Sponsorship{ProviderID: 2, Tier: string(TierPartner), Status: model.SponsorshipStatusPending, StripeSubscriptionID: "sub_renewed"}
	require.NoError(t, repo.CreateSponsorship(renewed))
	_, err = svc.Activate(renewed, testNow, nil, PeriodMonth)
	require.NoError(t, err)

	unreachable := &model.Sponsorship{ProviderID: 3, Tier: string(TierFeatured), Status: model.SponsorshipStatusPending, StripeSubscriptionID: "sub_unreachable"}
	require.NoError(t, repo.CreateSponsorship(unreachable))
	_, err = svc.Activate(unreachable, testNow, nil, PeriodMonth)
	require.NoError(t, err)

	laterEnd := testNow.AddDate(0, 2, 0)
	gateway.subscriptions["sub_gone"] = &stripe.Subscription{ID: "sub_gone", Status: stripe.SubscriptionStatusCanceled}
	gateway.subscriptions["sub_renewed"] = &stripe.Subscription{
		ID:               "sub_renewed",
		Status:           stripe.SubscriptionStatusActive,
		CurrentPeriodEnd: laterEnd.Unix(),
	}
	// sub_unreachable is missing remotely; the sweep logs and moves on.

	cancelled, extended, err := svc.Reconcile()

	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)
	assert.Equal(t, 1, extended)

	stored, err := repo.FindBySubscriptionID("sub_gone")
	require.NoError(t, err)
	assert.Equal(t, model.SponsorshipStatusCancelled, stored.Status)
	assert.False(t, repo.providers[1].IsSponsored)

	stored, err = repo.FindBySubscriptionID("sub_renewed")
	require.NoError(t, err)
	assert.Equal(t, model.SponsorshipStatusActive, stored.Status)
	assert.Equal(t, laterEnd.Unix(), stored.EndsAt.Unix())
	assert.Equal(t, laterEnd.Unix(), repo.providers[2].SponsoredUntil.Unix())

	stored, err = repo.FindBySubscriptionID("sub_unreachable")
	require.NoError(t, err)
	assert.Equal(t, model.SponsorshipStatusActive, stored.Status, "an unreachable subscription is left untouched")
}
