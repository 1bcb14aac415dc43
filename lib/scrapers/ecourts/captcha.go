package ecourts

import (
	"context"
	"encoding/base64"
	"strings"

	"ecourts-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	random "github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

// IssueCaptcha fetches a fresh challenge bound to the given session.
// The challenge must be spent against the same session, and solving is
// always caller-driven: the image (and optional audio link) go up to a
// human, the text comes back down with the protected request.
func (c *Client) IssueCaptcha(ctx context.Context, s *Session) (*CaptchaChallenge, error) {
	ctx, span := tracer.Start(ctx, "IssueCaptcha")
	defer span.End()

	env, err := s.stepEnvelope(ctx, "/?p=casestatus/getCaptcha", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch captcha envelope")
		return nil, err
	}
	if env.DivCaptcha == "" {
		return nil, &ParseError{Reason: "captcha widget missing from envelope"}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(env.DivCaptcha))
	if err != nil {
		return nil, &ParseError{
			Reason:   "captcha widget is not parseable html",
			Fragment: htmlutil.Snippet(env.DivCaptcha, 200),
		}
	}

	img := doc.Find("img#captcha_image")
	if img.Length() == 0 {
		img = doc.Find("img")
	}
	src := strings.TrimSpace(img.AttrOr("src", ""))
	if src == "" {
		return nil, &ParseError{
			Reason:   "captcha image source missing",
			Fragment: htmlutil.Snippet(env.DivCaptcha, 200),
		}
	}

	res, err := s.fetch(ctx, c.resolveRoot(src))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to download captcha image")
		return nil, err
	}

	audioURL := ""
	if href := strings.TrimSpace(doc.Find("a.captcha_play_button").AttrOr("href", "")); href != "" {
		audioURL = c.resolveRoot(href)
	}

	id, err := random.String(16)
	if err != nil {
		return nil, err
	}

	challenge := &CaptchaChallenge{
		ID:        id,
		Image:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(res.Body()),
		AudioURL:  audioURL,
		IssuedAt:  c.now(),
		sessionID: s.id,
	}
	c.captchas.bind(challenge.ID, s.id)

	return challenge, nil
}
