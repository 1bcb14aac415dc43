package ecourts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ecourts-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

type CauseListRequest struct {
	StateCode    string
	DistrictCode string
	// the combined complex code, possibly "id@est1,est2@flag"
	ComplexCode string
	CourtCode   string
	// dd-mm-yyyy (an iso yyyy-mm-dd is accepted and flipped)
	Date      string
	CauseType CauseType
	CourtName string

	Challenge *CaptchaChallenge
	Solution  string
}

func (r CauseListRequest) validate() error {
	if err := requireCode("state_code", r.StateCode); err != nil {
		return err
	}
	if err := requireCode("dist_code", r.DistrictCode); err != nil {
		return err
	}
	if err := requireCode("court_complex_code", r.ComplexCode); err != nil {
		return err
	}
	if err := requireCode("court_code", r.CourtCode); err != nil {
		return err
	}
	if r.CauseType != CauseTypeCivil && r.CauseType != CauseTypeCriminal {
		return &ValidationError{Field: "cause_type", Reason: `must be "civ" or "cri"`}
	}
	if r.Challenge == nil {
		return &ValidationError{Field: "captcha", Reason: "challenge is required"}
	}
	if strings.TrimSpace(r.Solution) == "" {
		return &ValidationError{Field: "captcha", Reason: "solution is required"}
	}
	if _, err := normalizeDate(r.Date); err != nil {
		return err
	}
	return nil
}

// FetchCauseList performs the captcha-protected cause list submission.
// The challenge is consumed up front, accepted or not: on rejection the
// caller gets a CaptchaRejectedError carrying a freshly issued
// challenge, and must never resubmit the old one. Portal-side errors
// that are not captcha failures come back inside the result's
// PortalErrors, which marks it non-authoritative.
func (c *Client) FetchCauseList(ctx context.Context, s *Session, req CauseListRequest) (CauseListResult, error) {
	ctx, span := tracer.Start(ctx, "FetchCauseList")
	defer span.End()

	if err := req.validate(); err != nil {
		return CauseListResult{}, err
	}
	if err := c.captchas.consume(req.Challenge.ID, s.id); err != nil {
		return CauseListResult{}, err
	}

	date, err := normalizeDate(req.Date)
	if err != nil {
		return CauseListResult{}, err
	}

	parts := splitComplexCode(req.ComplexCode)

	// past-dated lists live behind a separate portal flag
	selPrevDays := "0"
	now := c.now()
	if listDate, err := time.ParseInLocation(portalDateLayout, date, now.Location()); err == nil {
		startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if listDate.Before(startOfToday) {
			selPrevDays = "1"
		}
	}

	// merged complexes flag "Y" want the establishment code carved out
	// of the court code
	estCode := ""
	if parts.Flag == "Y" {
		estCode = strings.SplitN(req.CourtCode, "$", 2)[0]
	}

	form := map[string]string{
		"state_code":              req.StateCode,
		"dist_code":               req.DistrictCode,
		"court_complex_code":      parts.ID,
		"est_code":                estCode,
		"CL_court_no":             req.CourtCode,
		"causelist_date":          date,
		"cause_list_captcha_code": req.Solution,
		"fcaptcha_code":           req.Solution,
		"cicri":                   string(req.CauseType),
		"selprevdays":             selPrevDays,
		"court_name_txt":          req.CourtName,
	}

	env, err := s.stepEnvelope(ctx, "/?p=cause_list/submitCauseList", form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cause list submission failed")
		return CauseListResult{}, err
	}

	if !env.statusOK() {
		message := portalMessage(env)
		if isCaptchaFailure(message) {
			rejectErr := &CaptchaRejectedError{Reason: message}
			next, issueErr := c.IssueCaptcha(ctx, s)
			if issueErr != nil {
				slog.WarnContext(ctx, "failed to issue replacement captcha", "err", issueErr)
			} else {
				rejectErr.NextChallenge = next
			}
			span.SetStatus(codes.Error, "captcha rejected")
			return CauseListResult{}, rejectErr
		}

		// a non-captcha rejection: hand the portal's own words back,
		// flagged as non-authoritative
		return CauseListResult{
			TotalCases:   0,
			Entries:      []CauseListEntry{},
			PortalErrors: []string{message},
		}, nil
	}

	result, err := ParseCauseList(env.CaseData)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cause list response unparseable")
		return CauseListResult{}, err
	}

	// the portal rotates the captcha widget on success too; issue the
	// follow-up challenge so the caller can fetch again without a
	// separate round trip
	if env.DivCaptcha != "" {
		next, issueErr := c.IssueCaptcha(ctx, s)
		if issueErr != nil {
			slog.WarnContext(ctx, "failed to issue follow-up captcha", "err", issueErr)
		} else {
			result.NextChallenge = next
		}
	}

	return result, nil
}

func portalMessage(env envelope) string {
	raw := env.ErrorMsg
	if raw == "" {
		raw = env.Message
	}
	if raw == "" {
		return "cause list request was rejected"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return htmlutil.CleanText(raw)
	}
	text := htmlutil.CleanText(doc.Text())
	if text == "" {
		return "cause list request was rejected"
	}
	return text
}

func isCaptchaFailure(message string) bool {
	return strings.Contains(strings.ToLower(message), "captcha")
}

type CauseListPDFRequest struct {
	StateCode    string
	DistrictCode string
	ComplexCode  string
	// optional: complex-wide pdf when empty
	CourtCode string
	// dd-mm-yyyy
	Date string
}

// DownloadCauseListPDF passes the portal's pdf rendition through
// unchanged. The pdf endpoint is unprotected, so it runs on its own
// session like the hierarchy calls.
func (c *Client) DownloadCauseListPDF(ctx context.Context, req CauseListPDFRequest) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "DownloadCauseListPDF")
	defer span.End()

	if err := requireCode("state_code", req.StateCode); err != nil {
		return nil, err
	}
	if err := requireCode("dist_code", req.DistrictCode); err != nil {
		return nil, err
	}
	if err := requireCode("court_complex_code", req.ComplexCode); err != nil {
		return nil, err
	}
	date, err := normalizeDate(req.Date)
	if err != nil {
		return nil, err
	}

	s, err := c.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	parts := splitComplexCode(req.ComplexCode)
	form := map[string]string{
		"state_code":         req.StateCode,
		"dist_code":          req.DistrictCode,
		"court_complex_code": parts.ID,
		"date":               date,
	}
	if req.CourtCode != "" {
		form["court_code"] = req.CourtCode
	}

	body, err := s.Step(ctx, "/ajax/download_cause_list_pdf.php", form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pdf download failed")
		return nil, err
	}

	if !strings.HasPrefix(string(body), "%PDF") {
		return nil, &ParseError{
			Reason:   "expected a pdf response",
			Fragment: snippetOf(body),
		}
	}
	return body, nil
}

// normalizeDate accepts the portal's dd-mm-yyyy and flips an iso
// yyyy-mm-dd; anything else is rejected before touching the network.
func normalizeDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "", &ValidationError{Field: "date", Reason: "must not be empty"}
	}

	pieces := strings.Split(date, "-")
	if len(pieces) == 3 && len(pieces[0]) == 4 {
		date = pieces[2] + "-" + pieces[1] + "-" + pieces[0]
	}
	if _, err := time.Parse(portalDateLayout, date); err != nil {
		return "", &ValidationError{Field: "date", Reason: "must be dd-mm-yyyy"}
	}
	return date, nil
}
