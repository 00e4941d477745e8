package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Stripe   StripeConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Prices        PriceTable
}

// PriceTable maps "<tier>:<period>" to the Stripe price id configured for
// that combination. Loaded once at boot; a missing entry is a configuration
// problem for the operator to fix, never a silent default.
type PriceTable map[string]string

func Load() *Config {
	godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/api/sponsorships/payment-success"),
			CancelURL:     getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/api/sponsorships/payment-cancelled"),
			Prices:        LoadPriceTable(),
		},
	}
}

// LoadPriceTable reads STRIPE_PRICE_<TIER>_<PERIOD> for every purchasable
// tier and billing period, e.g. STRIPE_PRICE_SPONSOR_MONTH. Unset variables
// leave the pair unconfigured and Lookup reports them as such.
func LoadPriceTable() PriceTable {
	table := PriceTable{}
	for _, tier := range []string{"featured", "sponsor", "partner"} {
		for _, period := range []string{"month", "year"} {
			envKey := fmt.Sprintf("STRIPE_PRICE_%s_%s", strings.ToUpper(tier), strings.ToUpper(period))
			if v := os.Getenv(envKey); v != "" {
				table[priceKey(tier, period)] = v
			}
		}
	}
	return table
}

func (t PriceTable) Lookup(tier, period string) (string, error) {
	priceID, ok := t[priceKey(tier, period)]
	if !ok {
		return "", fmt.Errorf("no price configured for tier %q with %sly billing", tier, period)
	}
	return priceID, nil
}

// TierForPrice is the inverse lookup used by webhook handlers to derive a
// tier from a subscription's price. It reads the same table as Lookup, so the
// two directions can never disagree.
func (t PriceTable) TierForPrice(priceID string) (tier string, period string, ok bool) {
	for key, id := range t {
		if id == priceID {
			parts := strings.SplitN(key, ":", 2)
			return parts[0], parts[1], true
		}
	}
	return "", "", false
}

func priceKey(tier, period string) string {
	return tier + ":" + period
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
