package ecourts

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"

	"ecourts-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Hierarchy browsing is unprotected (no captcha), so every call opens
// its own short-lived session, replays whatever prior selections its
// level depends on, and closes the session when done. Transient network
// failures retry the whole operation on a fresh session.

func (c *Client) States(ctx context.Context) ([]HierarchyNode, error) {
	ctx, span := tracer.Start(ctx, "States")
	defer span.End()

	var nodes []HierarchyNode
	err := c.retry.Do(ctx, func() error {
		s, err := c.OpenSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.fetch(ctx, initPath)
		if err != nil {
			return err
		}
		nodes, err = parseStatePage(res.Body())
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list states")
		return nil, err
	}
	span.SetAttributes(attribute.Int("count", len(nodes)))
	return nodes, nil
}

func parseStatePage(body []byte) ([]HierarchyNode, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{
			Reason:   "state page is not parseable html",
			Fragment: htmlutil.Snippet(string(body), 200),
		}
	}

	sel := doc.Find("select#sess_state_code")
	if sel.Length() == 0 {
		sel = doc.Find("select#state_code")
	}
	if sel.Length() == 0 {
		sel = doc.Find("select[name=state_code]")
	}
	if sel.Length() == 0 {
		return nil, &ParseError{
			Reason:   "state select not found",
			Fragment: htmlutil.Snippet(string(body), 200),
		}
	}

	html, err := sel.Html()
	if err != nil {
		return nil, err
	}
	nodes, err := parseOptions(html)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		nodes[i].Level = LevelState
	}
	return nodes, nil
}

func (c *Client) Districts(ctx context.Context, stateCode string) ([]HierarchyNode, error) {
	ctx, span := tracer.Start(ctx, "Districts")
	defer span.End()

	if err := requireCode("state_code", stateCode); err != nil {
		return nil, err
	}

	var nodes []HierarchyNode
	err := c.retry.Do(ctx, func() error {
		s, err := c.OpenSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		nodes, err = c.districts(ctx, s, stateCode)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list districts")
		return nil, err
	}
	return nodes, nil
}

func (c *Client) districts(ctx context.Context, s *Session, stateCode string) ([]HierarchyNode, error) {
	env, err := s.stepEnvelope(ctx, "/?p=casestatus/fillDistrict", map[string]string{
		"state_code": stateCode,
	})
	if err != nil {
		return nil, err
	}
	if env.DistList == "" {
		return nil, &ParseError{Reason: "district option list missing from envelope"}
	}

	nodes, err := parseOptions(env.DistList)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		nodes[i].Level = LevelDistrict
		nodes[i].ParentCode = stateCode
	}
	return nodes, nil
}

func (c *Client) CourtComplexes(ctx context.Context, stateCode, districtCode string) ([]HierarchyNode, error) {
	ctx, span := tracer.Start(ctx, "CourtComplexes")
	defer span.End()

	if err := requireCode("state_code", stateCode); err != nil {
		return nil, err
	}
	if err := requireCode("dist_code", districtCode); err != nil {
		return nil, err
	}

	var nodes []HierarchyNode
	err := c.retry.Do(ctx, func() error {
		s, err := c.OpenSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		// the complex widget's hidden fields depend on the district
		// step's response, so replay the district selection first
		if _, err := c.districts(ctx, s, stateCode); err != nil {
			return err
		}
		nodes, err = c.courtComplexes(ctx, s, stateCode, districtCode)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list court complexes")
		return nil, err
	}
	return nodes, nil
}

func (c *Client) courtComplexes(ctx context.Context, s *Session, stateCode, districtCode string) ([]HierarchyNode, error) {
	env, err := s.stepEnvelope(ctx, "/?p=casestatus/fillcomplex", map[string]string{
		"state_code": stateCode,
		"dist_code":  districtCode,
	})
	if err != nil {
		return nil, err
	}
	if env.ComplexList == "" {
		return nil, &ParseError{Reason: "complex option list missing from envelope"}
	}

	nodes, err := parseOptions(env.ComplexList)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		nodes[i].Level = LevelComplex
		nodes[i].ParentCode = districtCode
	}
	return nodes, nil
}

func (c *Client) Courts(ctx context.Context, stateCode, districtCode, complexCode string) ([]HierarchyNode, error) {
	ctx, span := tracer.Start(ctx, "Courts")
	defer span.End()

	if err := requireCode("state_code", stateCode); err != nil {
		return nil, err
	}
	if err := requireCode("dist_code", districtCode); err != nil {
		return nil, err
	}
	if err := requireCode("court_complex_code", complexCode); err != nil {
		return nil, err
	}

	var nodes []HierarchyNode
	err := c.retry.Do(ctx, func() error {
		s, err := c.OpenSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		// replay state > district > complex in this session before
		// asking for court numbers
		if _, err := c.districts(ctx, s, stateCode); err != nil {
			return err
		}
		if _, err := c.courtComplexes(ctx, s, stateCode, districtCode); err != nil {
			return err
		}

		nodes, err = c.courts(ctx, s, stateCode, districtCode, complexCode)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list courts")
		return nil, err
	}
	return nodes, nil
}

func (c *Client) courts(ctx context.Context, s *Session, stateCode, districtCode, complexCode string) ([]HierarchyNode, error) {
	parts := splitComplexCode(complexCode)

	estCodes := parts.EstCodes
	if len(estCodes) == 0 {
		estCodes = []string{""}
	}

	var all []HierarchyNode
	for _, estCode := range estCodes {
		nodes, err := c.courtNumbers(ctx, s, stateCode, districtCode, parts.ID, estCode)
		if err != nil {
			var parseErr *ParseError
			if len(estCodes) > 1 && errors.As(err, &parseErr) {
				// one establishment of a merged complex missing its
				// option list should not sink the others
				slog.WarnContext(
					ctx, "failed to fetch court numbers for establishment",
					"est_code", estCode,
					"err", err,
				)
				continue
			}
			return nil, err
		}
		all = append(all, nodes...)
	}

	// de-duplicate while preserving order; merged complexes repeat
	// court numbers across establishments
	seen := map[string]bool{}
	var out []HierarchyNode
	for _, node := range all {
		if seen[node.Code] {
			continue
		}
		seen[node.Code] = true
		out = append(out, node)
	}
	return out, nil
}

func (c *Client) courtNumbers(ctx context.Context, s *Session, stateCode, districtCode, complexID, estCode string) ([]HierarchyNode, error) {
	form := map[string]string{
		"state_code":         stateCode,
		"dist_code":          districtCode,
		"court_complex_code": complexID,
	}
	if estCode != "" {
		form["est_code"] = estCode
	}

	env, err := s.stepEnvelope(ctx, "/?p=courtorder/fillCourtNumber", form)
	if err != nil {
		return nil, err
	}
	if env.CourtNumberList == "" {
		return nil, &ParseError{Reason: "court number option list missing from envelope"}
	}

	parsed, err := parseOptions(env.CourtNumberList)
	if err != nil {
		return nil, err
	}

	var nodes []HierarchyNode
	for _, node := range parsed {
		if strings.EqualFold(node.Code, "D") || strings.Contains(node.Name, "Select Court") {
			continue
		}
		node.Level = LevelCourt
		node.ParentCode = complexID
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// complexInfo is the decomposition of a combined complex code of the
// form "id@est1,est2@flag" that the portal uses for merged complexes.
type complexInfo struct {
	ID       string
	EstCodes []string
	Flag     string
}

func splitComplexCode(code string) complexInfo {
	parts := strings.Split(code, "@")
	info := complexInfo{ID: parts[0]}
	if len(parts) > 1 {
		for _, est := range strings.Split(parts[1], ",") {
			est = strings.TrimSpace(est)
			if est != "" {
				info.EstCodes = append(info.EstCodes, est)
			}
		}
	}
	if len(parts) > 2 {
		info.Flag = strings.TrimSpace(parts[2])
	}
	return info
}

func requireCode(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}
