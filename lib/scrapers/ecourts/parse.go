package ecourts

import (
	"strings"
	"time"

	"ecourts-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

// option lists arrive as HTML fragments inside the json envelope;
// value "0" is the portal's "Select ..." placeholder
func parseOptions(fragment string) ([]HierarchyNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, &ParseError{
			Reason:   "option fragment is not parseable html",
			Fragment: htmlutil.Snippet(fragment, 200),
		}
	}

	var nodes []HierarchyNode
	doc.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value := strings.TrimSpace(opt.AttrOr("value", ""))
		name := htmlutil.CleanText(opt.Text())
		if value == "" || value == "0" {
			return
		}
		nodes = append(nodes, HierarchyNode{Code: value, Name: name})
	})
	return nodes, nil
}

var noRecordsMarkers = []string{
	"no records",
	"no record found",
	"record not found",
	"no cases",
	"no case found",
}

func hasNoRecordsMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range noRecordsMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// headerMatches reports whether a table header cell names one of the
// candidate columns. Courts spell headers inconsistently ("Sr No",
// "Sl.No.", "Advocate Name"), so a fuzzy match backs up the substring
// check.
func headerMatches(header string, candidates ...string) bool {
	normalized := strings.ToLower(htmlutil.CleanText(header))
	normalized = strings.NewReplacer(".", "", "/", " ").Replace(normalized)
	for _, cand := range candidates {
		if strings.Contains(normalized, cand) {
			return true
		}
		if matchr.JaroWinkler(normalized, cand, true) > 0.92 {
			return true
		}
	}
	return false
}

type causeListColumns struct {
	serial   int
	caseNo   int
	parties  int
	advocate int
	purpose  int
}

// positional layout observed on most district courts, used when the
// table carries no recognisable header row
func defaultCauseListColumns() causeListColumns {
	return causeListColumns{serial: 0, caseNo: 1, parties: 2, advocate: 3, purpose: 4}
}

func mapCauseListColumns(header *goquery.Selection) (causeListColumns, bool) {
	cols := causeListColumns{serial: -1, caseNo: -1, parties: -1, advocate: -1, purpose: -1}
	matched := false

	header.Children().Each(func(i int, cell *goquery.Selection) {
		text := cell.Text()
		switch {
		case headerMatches(text, "sr no", "sl no", "serial"):
			cols.serial = i
			matched = true
		case headerMatches(text, "case number", "case no", "case type"):
			cols.caseNo = i
			matched = true
		case headerMatches(text, "party", "parties", "petitioner vs respondent"):
			cols.parties = i
			matched = true
		case headerMatches(text, "advocate", "counsel"):
			cols.advocate = i
			matched = true
		case headerMatches(text, "purpose", "stage"):
			cols.purpose = i
			matched = true
		}
	})

	return cols, matched
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

// ParseCauseList converts the portal's cause list fragment into
// structured entries. The results table is located by its header
// labels, not position; a missing optional column yields empty fields,
// an explicit no-records response yields an empty result, and anything
// structurally alien yields a ParseError carrying the fragment.
func ParseCauseList(fragment string) (CauseListResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CauseListResult{}, &ParseError{
			Reason:   "cause list fragment is not parseable html",
			Fragment: htmlutil.Snippet(fragment, 200),
		}
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		text := htmlutil.CleanText(doc.Text())
		if text == "" || hasNoRecordsMarker(text) {
			return CauseListResult{TotalCases: 0, Entries: []CauseListEntry{}}, nil
		}
		return CauseListResult{}, &ParseError{
			Reason:   "no results table and no no-records marker",
			Fragment: htmlutil.Snippet(fragment, 200),
		}
	}

	rows := table.Find("tr")
	if rows.Length() == 0 {
		return CauseListResult{TotalCases: 0, Entries: []CauseListEntry{}}, nil
	}

	cols, matched := mapCauseListColumns(rows.First())
	start := 1
	if !matched {
		cols = defaultCauseListColumns()
		// without a header row, the first row may already be data
		if rows.First().Find("td").Length() > 0 {
			start = 0
		}
	}

	entries := []CauseListEntry{}
	rows.Slice(start, rows.Length()).Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, htmlutil.CleanText(cell.Text()))
		})
		if len(cells) < 2 {
			return
		}
		entries = append(entries, CauseListEntry{
			SerialNumber: cellAt(cells, cols.serial),
			CaseNumber:   cellAt(cells, cols.caseNo),
			Parties:      cellAt(cells, cols.parties),
			Advocate:     cellAt(cells, cols.advocate),
			Purpose:      cellAt(cells, cols.purpose),
		})
	})

	return CauseListResult{
		TotalCases: len(entries),
		Entries:    entries,
	}, nil
}

const portalDateLayout = "02-01-2006"

// ParseCaseSearch converts a case status response into a typed result.
// The portal renders details as label/value table rows; labels vary by
// court so they are matched loosely. Dates pass through verbatim in the
// portal's dd-mm-yyyy format.
func ParseCaseSearch(body string, now time.Time) (CaseSearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return CaseSearchResult{}, &ParseError{
			Reason:   "case search response is not parseable html",
			Fragment: htmlutil.Snippet(body, 200),
		}
	}

	result := CaseSearchResult{}

	rows := doc.Find("tr")
	if rows.Length() == 0 {
		text := htmlutil.CleanText(doc.Text())
		if text == "" || hasNoRecordsMarker(text) {
			return result, nil
		}
		return CaseSearchResult{}, &ParseError{
			Reason:   "no detail rows and no no-records marker",
			Fragment: htmlutil.Snippet(body, 200),
		}
	}

	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := strings.ToLower(htmlutil.CleanText(cells.Eq(0).Text()))
		value := htmlutil.CleanText(cells.Eq(1).Text())
		if label == "" {
			return
		}

		if result.Details == nil {
			result.Details = map[string]string{}
		}
		result.Details[label] = value
		result.Found = true

		switch {
		case strings.Contains(label, "hearing date") || strings.Contains(label, "next date"):
			result.NextHearingDate = value
			hearing, err := time.ParseInLocation(portalDateLayout, value, now.Location())
			if err == nil {
				switch {
				case sameDay(hearing, now):
					result.ListedToday = true
				case sameDay(hearing, now.AddDate(0, 0, 1)):
					result.ListedTomorrow = true
				}
			}
		case strings.Contains(label, "serial") || strings.Contains(label, "sr"):
			result.SerialNumber = value
		case strings.Contains(label, "court"):
			result.CourtName = value
		case strings.Contains(label, "status"):
			result.CaseStatus = value
		}
	})

	if !result.Found {
		// rows existed but none were label/value pairs
		text := htmlutil.CleanText(doc.Text())
		if !hasNoRecordsMarker(text) && text != "" {
			return CaseSearchResult{}, &ParseError{
				Reason:   "detail rows present but none parseable",
				Fragment: htmlutil.Snippet(body, 200),
			}
		}
	}

	return result, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
