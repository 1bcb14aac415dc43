package ecourts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"ecourts-backend/lib/htmlutil"
	"ecourts-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	random "github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

const initPath = "/?p=cause_list/"

// Session is one conversation with the portal: a private cookie jar
// plus the app_token hidden field the portal rotates on every step.
// It is owned by exactly one operation at a time and never pooled.
type Session struct {
	id     string
	client *Client
	http   *resty.Client

	mu        sync.Mutex
	appToken  string
	createdAt time.Time
	lastUsed  time.Time
	closed    bool
}

// OpenSession warms up a fresh portal conversation: new cookie jar,
// initial page load, first app_token capture.
func (c *Client) OpenSession(ctx context.Context) (*Session, error) {
	ctx, span := tracer.Start(ctx, "OpenSession")
	defer span.End()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(c.baseURL.String())
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetHeader("x-requested-with", "XMLHttpRequest")
	httpClient.SetTimeout(c.timeout)

	telemetry.InstrumentResty(httpClient, "scrapers/ecourts/http")

	id, err := random.String(16)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:        id,
		client:    c,
		http:      httpClient,
		createdAt: c.now(),
		lastUsed:  c.now(),
	}

	res, err := httpClient.R().
		SetContext(ctx).
		Get(initPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to warm up session")
		return nil, &PortalUnavailableError{Op: "open session", Err: err}
	}
	s.captureTokenFromHTML(res.Body())

	return s, nil
}

// Step performs one dependent form submission: the carried app_token is
// threaded into the payload and the refreshed one captured out of the
// response. Steps within a session are strictly sequential.
func (s *Session) Step(ctx context.Context, path string, form map[string]string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, &ValidationError{Field: "session", Reason: "session is closed"}
	}

	data := map[string]string{"ajax_req": "true"}
	if s.appToken != "" {
		data["app_token"] = s.appToken
	}
	for k, v := range form {
		if v == "" {
			continue
		}
		data[k] = v
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetFormData(data).
		Post(path)
	if err != nil {
		return nil, &PortalUnavailableError{Op: "step " + path, Err: err}
	}
	s.lastUsed = s.client.now()

	if res.StatusCode() == http.StatusForbidden {
		return nil, ErrSessionExpired
	}
	if res.StatusCode() >= 500 {
		return nil, &PortalUnavailableError{
			Op:  "step " + path,
			Err: &httpStatusError{status: res.StatusCode()},
		}
	}

	body := res.Body()
	if env, ok := parseEnvelope(body); ok {
		if env.AppToken != "" {
			s.appToken = env.AppToken
		}
		if staleSessionMessage(env.ErrorMsg) || staleSessionMessage(env.Message) {
			return nil, ErrSessionExpired
		}
	} else {
		s.captureTokenFromHTML(body)
	}

	return body, nil
}

// stepEnvelope is Step for endpoints whose responses are the portal's
// JSON envelope rather than a whole page.
func (s *Session) stepEnvelope(ctx context.Context, path string, form map[string]string) (envelope, error) {
	body, err := s.Step(ctx, path, form)
	if err != nil {
		return envelope{}, err
	}
	env, ok := parseEnvelope(body)
	if !ok {
		return envelope{}, &ParseError{
			Reason:   "expected json envelope from " + path,
			Fragment: snippetOf(body),
		}
	}
	return env, nil
}

// fetch issues a plain GET within the session, used for captcha assets
// and the initial page. Absolute urls are allowed.
func (s *Session) fetch(ctx context.Context, url string) (*resty.Response, error) {
	res, err := s.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, &PortalUnavailableError{Op: "fetch " + url, Err: err}
	}
	return res, nil
}

// Close ends the conversation. Any captcha bound to this session is
// discarded; the session must not be reused afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.client != nil {
		s.client.captchas.discard(s.id)
	}
}

func (s *Session) captureTokenFromHTML(body []byte) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return
	}
	token := strings.TrimSpace(doc.Find("input#app_token").AttrOr("value", ""))
	if token != "" {
		s.appToken = token
	}
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return http.StatusText(e.status)
}

// envelope is the portal's ajax response shape: a JSON object carrying
// a refreshed app_token plus HTML fragments for whichever widget the
// request was about.
type envelope struct {
	AppToken        string      `json:"app_token"`
	Status          json.Number `json:"status"`
	ErrorMsg        string      `json:"errormsg"`
	Message         string      `json:"message"`
	DistList        string      `json:"dist_list"`
	ComplexList     string      `json:"complex_list"`
	CourtNumberList string      `json:"courtnumber_list"`
	DivCaptcha      string      `json:"div_captcha"`
	CaseData        string      `json:"case_data"`
}

func (e envelope) statusOK() bool {
	n, err := e.Status.Int64()
	return err == nil && n == 1
}

// the portal occasionally prefixes its JSON with whitespace or stray
// markup, so scan forward to the first object start before decoding
func parseEnvelope(body []byte) (envelope, bool) {
	text := bytes.TrimSpace(body)
	if len(text) == 0 {
		return envelope{}, false
	}
	if text[0] != '{' {
		start := bytes.Index(text, []byte(`{"`))
		if start == -1 {
			return envelope{}, false
		}
		text = text[start:]
	}
	var env envelope
	if err := json.Unmarshal(text, &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

// Markers the portal uses when the session or its token went stale.
// These are checked before any widget parsing so that an expired
// session surfaces as ErrSessionExpired, never as a ParseError.
var staleSessionMarkers = []string{
	"session expired",
	"session has expired",
	"invalid token",
	"invalid request",
}

func staleSessionMessage(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	for _, marker := range staleSessionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func snippetOf(body []byte) string {
	return htmlutil.Snippet(string(body), 200)
}
