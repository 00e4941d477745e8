package sponsorship

import "time"

type Tier string

const (
	TierFree     Tier = "free"
	TierFeatured Tier = "featured"
	TierSponsor  Tier = "sponsor"
	TierPartner  Tier = "partner"
)

type BillingPeriod string

const (
	PeriodMonth BillingPeriod = "month"
	PeriodYear  BillingPeriod = "year"
)

// Analytics access levels per tier.
const (
	AnalyticsNone     = 0
	AnalyticsBasic    = 1
	AnalyticsStandard = 2
	AnalyticsFull     = 3
)

type TierInfo struct {
	ID             Tier     `json:"id"`
	Name           string   `json:"name"`
	MonthlyPrice   float64  `json:"monthly_price"`
	AnnualPrice    float64  `json:"annual_price"`
	Features       []string `json:"features"`
	AnalyticsLevel int      `json:"analytics_level"`
}

// Catalog is the static tier table. Annual pricing charges ten months for
// twelve. Free is listed for the pricing page but is never purchasable and
// never persisted as a Sponsorship row.
var Catalog = map[Tier]TierInfo{
	TierFree: {
		ID:           TierFree,
		Name:         "Free Listing",
		MonthlyPrice: 0,
		AnnualPrice:  0,
		Features: []string{
			"Standard directory listing",
		},
		AnalyticsLevel: AnalyticsNone,
	},
	TierFeatured: {
		ID:           TierFeatured,
		Name:         "Featured",
		MonthlyPrice: 25,
		AnnualPrice:  250,
		Features: []string{
			"Standard directory listing",
			"Featured badge",
			"Priority placement in search results",
		},
		AnalyticsLevel: AnalyticsBasic,
	},
	TierSponsor: {
		ID:           TierSponsor,
		Name:         "Sponsor",
		MonthlyPrice: 50,
		AnnualPrice:  500,
		Features: []string{
			"Standard directory listing",
			"Featured badge",
			"Priority placement in search results",
			"Homepage sponsor carousel",
			"Profile view analytics",
		},
		AnalyticsLevel: AnalyticsStandard,
	},
	TierPartner: {
		ID:           TierPartner,
		Name:         "Partner",
		MonthlyPrice: 100,
		AnnualPrice:  1000,
		Features: []string{
			"Standard directory listing",
			"Featured badge",
			"Top placement in search results",
			"Homepage sponsor carousel",
			"Full analytics dashboard",
			"Dedicated support",
		},
		AnalyticsLevel: AnalyticsFull,
	},
}

// tierOrder fixes the order of the public tiers listing.
var tierOrder = []Tier{TierFree, TierFeatured, TierSponsor, TierPartner}

func ListTiers() []TierInfo {
	tiers := make([]TierInfo, 0, len(tierOrder))
	for _, id := range tierOrder {
		tiers = append(tiers, Catalog[id])
	}
	return tiers
}

// Purchasable reports whether the tier can be bought. Free is the absence of
// a sponsorship, not a product.
func Purchasable(t Tier) bool {
	switch t {
	case TierFeatured, TierSponsor, TierPartner:
		return true
	}
	return false
}

func ValidPeriod(p BillingPeriod) bool {
	return p == PeriodMonth || p == PeriodYear
}

// Canonical converts the string tier to the integer enum stored on the
// provider row. The projector is the only caller outside of tests.
func Canonical(t Tier) int {
	switch t {
	case TierFeatured:
		return 1
	case TierSponsor:
		return 2
	case TierPartner:
		return 3
	default:
		return 0
	}
}

func TierFromCanonical(n int) Tier {
	switch n {
	case 1:
		return TierFeatured
	case 2:
		return TierSponsor
	case 3:
		return TierPartner
	default:
		return TierFree
	}
}

func Price(t Tier, p BillingPeriod) float64 {
	info, ok := Catalog[t]
	if !ok {
		return 0
	}
	if p == PeriodYear {
		return info.AnnualPrice
	}
	return info.MonthlyPrice
}

// AmountCents is the catalog price in minor currency units, as the payment
// intent API expects.
func AmountCents(t Tier, p BillingPeriod) int64 {
	return int64(Price(t, p) * 100)
}

// TermEnd derives the entitlement end from the billing period: one calendar
// month for monthly billing, one year for annual.
func TermEnd(start time.Time, p BillingPeriod) time.Time {
	if p == PeriodYear {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
