package ecourts

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"ecourts-backend/lib/retry"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/ecourts")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Client holds the immutable configuration for talking to one eCourts
// portal deployment. All conversation state lives in Session values, so
// a single Client is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	// the host root, used to resolve captcha image and audio links that
	// the portal emits relative to "/" rather than the app prefix
	rootURL *url.URL
	timeout time.Duration
	retry   retry.Policy
	now     func() time.Time

	captchas *captchaRegistry
}

type ClientOptions struct {
	BaseUrl string
	// defaults to 30s
	Timeout time.Duration
	// zero value means retry.Default over PortalUnavailableError
	Retry retry.Policy
	// overridable for tests; defaults to time.Now
	Now func() time.Time
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", opts.BaseUrl)
	}

	rootUrl := &url.URL{Scheme: baseUrl.Scheme, Host: baseUrl.Host}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	policy := opts.Retry
	if policy.MaxAttempts == 0 {
		policy = retry.Default(IsPortalUnavailable)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:  baseUrl,
		rootURL:  rootUrl,
		timeout:  timeout,
		retry:    policy,
		now:      now,
		captchas: &captchaRegistry{pending: map[string]string{}},
	}, nil
}

// resolveRoot turns a portal-relative asset path (captcha image, audio)
// into an absolute url against the host root.
func (c *Client) resolveRoot(src string) string {
	ref, err := url.Parse(strings.TrimPrefix(src, "/"))
	if err != nil {
		return src
	}
	return c.rootURL.ResolveReference(&url.URL{
		Path:     "/" + ref.Path,
		RawQuery: ref.RawQuery,
	}).String()
}

// captchaRegistry tracks which challenge is bound to which session and
// enforces the single-use rule: consume succeeds at most once per id.
type captchaRegistry struct {
	mu      sync.Mutex
	pending map[string]string
}

func (r *captchaRegistry) bind(challengeID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[challengeID] = sessionID
}

func (r *captchaRegistry) consume(challengeID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bound, ok := r.pending[challengeID]
	if !ok {
		return &ValidationError{
			Field:  "captcha",
			Reason: "challenge already consumed or never issued",
		}
	}
	if bound != sessionID {
		return &ValidationError{
			Field:  "captcha",
			Reason: "challenge is bound to a different session",
		}
	}
	delete(r.pending, challengeID)
	return nil
}

// discard drops every challenge bound to the session, used on Close.
func (r *captchaRegistry) discard(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, bound := range r.pending {
		if bound == sessionID {
			delete(r.pending, id)
		}
	}
}
