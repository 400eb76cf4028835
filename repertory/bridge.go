package repertory

import (
	"net/http"

	"github.com/giygas/repertory-api/config"
	"github.com/juju/ratelimit"
)

// NewFromConfig builds the session manager and client described by cfg.
// An UPSTREAM_RATE of zero leaves outbound calls unthrottled.
func NewFromConfig(cfg *config.Config) *Client {
	session := NewSessionManager(SessionConfig{
		BaseURL:    cfg.RepertoryBaseURL,
		ProbePath:  cfg.RepertoryProbePath,
		UserAgent:  cfg.RepertoryUserAgent,
		TTL:        cfg.SessionTTL,
		HTTPClient: &http.Client{Timeout: cfg.UpstreamTimeout},
	})

	var limiter *ratelimit.Bucket
	if cfg.UpstreamRate > 0 {
		limiter = ratelimit.NewBucketWithRate(cfg.UpstreamRate, cfg.UpstreamBurst)
	}

	return NewClient(session, ClientConfig{
		SearchPath: cfg.RepertorySearchPath,
		Limiter:    limiter,
		MaxWait:    cfg.UpstreamMaxWait,
	})
}
