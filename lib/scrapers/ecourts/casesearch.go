package ecourts

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/codes"
)

var cnrPattern = regexp.MustCompile(`^[A-Za-z0-9-]{10,}$`)

// SearchCaseByCNR looks a case up by its national registration number.
// State and district codes are optional hints some deployments want.
func (c *Client) SearchCaseByCNR(ctx context.Context, cnr, stateCode, districtCode string) (CaseSearchResult, error) {
	ctx, span := tracer.Start(ctx, "SearchCaseByCNR")
	defer span.End()

	cnr = strings.TrimSpace(cnr)
	if !cnrPattern.MatchString(cnr) {
		return CaseSearchResult{}, &ValidationError{
			Field:  "cnr",
			Reason: "must be at least 10 alphanumeric characters",
		}
	}

	s, err := c.OpenSession(ctx)
	if err != nil {
		return CaseSearchResult{}, err
	}
	defer s.Close()

	form := map[string]string{"cnr": cnr}
	if stateCode != "" {
		form["state_code"] = stateCode
	}
	if districtCode != "" {
		form["dist_code"] = districtCode
	}

	body, err := s.Step(ctx, "/ajax/search_case_cnr.php", form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cnr search request failed")
		return CaseSearchResult{}, err
	}

	result, err := ParseCaseSearch(string(body), c.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cnr search response unparseable")
		return CaseSearchResult{}, err
	}
	return result, nil
}

type CaseDetailsQuery struct {
	StateCode    string
	DistrictCode string
	CourtCode    string
	CaseType     string
	CaseNumber   string
	CaseYear     string
}

func (q CaseDetailsQuery) validate() error {
	fields := []struct {
		name, value string
	}{
		{"state_code", q.StateCode},
		{"dist_code", q.DistrictCode},
		{"court_code", q.CourtCode},
		{"case_type", q.CaseType},
		{"case_no", q.CaseNumber},
		{"case_year", q.CaseYear},
	}
	for _, f := range fields {
		if err := requireCode(f.name, f.value); err != nil {
			return err
		}
	}
	if !regexp.MustCompile(`^\d{4}$`).MatchString(q.CaseYear) {
		return &ValidationError{Field: "case_year", Reason: "must be a four digit year"}
	}
	return nil
}

// SearchCaseByDetails looks a case up by its registry coordinates
// within one court.
func (c *Client) SearchCaseByDetails(ctx context.Context, q CaseDetailsQuery) (CaseSearchResult, error) {
	ctx, span := tracer.Start(ctx, "SearchCaseByDetails")
	defer span.End()

	if err := q.validate(); err != nil {
		return CaseSearchResult{}, err
	}

	s, err := c.OpenSession(ctx)
	if err != nil {
		return CaseSearchResult{}, err
	}
	defer s.Close()

	body, err := s.Step(ctx, "/ajax/search_case_details.php", map[string]string{
		"state_code": q.StateCode,
		"dist_code":  q.DistrictCode,
		"court_code": q.CourtCode,
		"case_type":  q.CaseType,
		"case_no":    q.CaseNumber,
		"case_year":  q.CaseYear,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "details search request failed")
		return CaseSearchResult{}, err
	}

	result, err := ParseCaseSearch(string(body), c.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "details search response unparseable")
		return CaseSearchResult{}, err
	}
	return result, nil
}
