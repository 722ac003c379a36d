package registrar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"
)

const notFoundMessage = "Domain not found"

type CloudflareConfig struct {
	// APIToken is preferred. APIKey and Email select the legacy
	// X-Auth-Key/X-Auth-Email scheme.
	APIToken  string
	APIKey    string
	Email     string
	AccountID string
	// BaseURL overrides the API endpoint, mostly for tests.
	BaseURL   string
	RateLimit float64
	Timeout   time.Duration
}

// Cloudflare implements Registrar on top of cloudflare-go.
type Cloudflare struct {
	api       *cloudflare.API
	accountID string
	log       *slog.Logger
}

func NewCloudflare(cfg CloudflareConfig, log *slog.Logger) (*Cloudflare, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []cloudflare.Option{
		cloudflare.HTTPClient(&http.Client{Timeout: timeout}),
		// Retries belong to the execution layer, not to a single zone call.
		cloudflare.UsingRetryPolicy(0, 0, 0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, cloudflare.BaseURL(cfg.BaseURL))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, cloudflare.UsingRateLimit(cfg.RateLimit))
	}

	var (
		api *cloudflare.API
		err error
	)
	switch {
	case cfg.APIToken != "":
		api, err = cloudflare.NewWithAPIToken(cfg.APIToken, opts...)
	case cfg.APIKey != "" && cfg.Email != "":
		api, err = cloudflare.New(cfg.APIKey, cfg.Email, opts...)
	default:
		return nil, fmt.Errorf("cloudflare: require api_token or [api_key, email]")
	}
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cloudflare{api: api, accountID: cfg.AccountID, log: log.With("component", "registrar")}, nil
}

// CreateZone adds domain as a full zone with DNS jump start and returns the
// nameservers Cloudflare assigned to it.
func (c *Cloudflare) CreateZone(ctx context.Context, domain string) Outcome {
	zone, err := c.api.CreateZone(ctx, domain, true, cloudflare.Account{ID: c.accountID}, "full")
	if err != nil {
		c.log.Warn("create zone failed", "domain", domain, "err", err)
		return failure(errorMessage(err))
	}
	if zone.ID == "" {
		return failure("")
	}
	return Outcome{Success: true, ZoneID: zone.ID, Nameservers: zone.NameServers, Status: zone.Status}
}

func (c *Cloudflare) ReadZone(ctx context.Context, domain string) Outcome {
	zones, err := c.api.ListZones(ctx, domain)
	if err != nil {
		return failure(errorMessage(err))
	}
	for _, z := range zones {
		if strings.EqualFold(z.Name, domain) {
			return Outcome{Success: true, ZoneID: z.ID, Nameservers: z.NameServers, Status: z.Status}
		}
	}
	return Outcome{NotFound: true, Error: notFoundMessage}
}

// DeleteZone resolves the zone id by name, then destroys the zone. A failed
// lookup is returned unchanged and nothing is destroyed.
func (c *Cloudflare) DeleteZone(ctx context.Context, domain string) Outcome {
	found := c.ReadZone(ctx, domain)
	if !found.Success {
		return found
	}
	if _, err := c.api.DeleteZone(ctx, found.ZoneID); err != nil {
		c.log.Warn("delete zone failed", "domain", domain, "zone_id", found.ZoneID, "err", err)
		return failure(errorMessage(err))
	}
	return Outcome{Success: true, ZoneID: found.ZoneID}
}

// errorMessage prefers the first message reported by the provider over the
// library's formatted error.
func errorMessage(err error) string {
	var apiErr interface{ ErrorMessages() []string }
	if errors.As(err, &apiErr) {
		for _, m := range apiErr.ErrorMessages() {
			if m != "" {
				return m
			}
		}
	}
	return err.Error()
}
