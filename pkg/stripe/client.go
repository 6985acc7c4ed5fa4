package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/freshbulk/freshbulk-backend/pkg/config"
	"github.com/freshbulk/freshbulk-backend/pkg/logger"
)

type mode string

const (
	modeTest mode = "test"
	modeLive mode = "live"
)

// keyPrefixes lists the secret and restricted key prefixes each mode accepts.
var keyPrefixes = map[mode][]string{
	modeTest: {"sk_test_", "rk_test_"},
	modeLive: {"sk_live_", "rk_live_"},
}

var errAPIKeyRequired = errors.New("stripe api key is required")

// Client is proof that the process-wide stripe.Key has been set for a known
// mode. Resource packages such as checkout/session read that global.
type Client struct {
	environment string
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	m := mode(cfg.Environment())
	allowed, ok := keyPrefixes[m]
	if !ok {
		return nil, fmt.Errorf("stripe environment must be %q or %q, got %q", modeTest, modeLive, m)
	}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	if !hasAnyPrefix(key, allowed) {
		return nil, fmt.Errorf("stripe %s mode requires a key starting with %s", m, strings.Join(allowed, " or "))
	}

	stripe.Key = key
	stripe.SetAppInfo(&stripe.AppInfo{Name: "freshbulk-backend"})

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", string(m)), "stripe.configured")
	}
	return &Client{environment: string(m)}, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Environment is "test" or "live"; empty for a nil client.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}
