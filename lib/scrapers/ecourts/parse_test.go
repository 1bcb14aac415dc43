package ecourts

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testNow() time.Time {
	return time.Date(2025, 12, 1, 9, 0, 0, 0, time.Local)
}

func TestParseCauseListNoRecords(t *testing.T) {
	for _, fragment := range []string{
		`<p>No Records Found</p>`,
		`<div style="color:red">Record Not Found !!</div>`,
		``,
	} {
		result, err := ParseCauseList(fragment)
		require.NoError(t, err, "fragment %q", fragment)
		require.Equal(t, 0, result.TotalCases)
		require.Empty(t, result.Entries)
	}
}

func TestParseCauseListAlienMarkup(t *testing.T) {
	_, err := ParseCauseList(`<div>Welcome to the district court portal</div>`)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.NotEmpty(t, parseErr.Fragment)
}

func TestParseCauseListHeaderVariants(t *testing.T) {
	// courts spell the same headers a dozen ways; the mapper has to
	// survive abbreviations and reordered columns
	result, err := ParseCauseList(`<table>
		<tr><th>Purpose</th><th>Sl.No.</th><th>Case Type/Case No.</th><th>Party Name</th><th>Counsel</th></tr>
		<tr><td>Hearing</td><td>7</td><td>CS/700/2025</td><td>G vs H</td><td>Adv. Singh</td></tr>
	</table>`)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalCases)

	want := CauseListEntry{
		SerialNumber: "7",
		CaseNumber:   "CS/700/2025",
		Parties:      "G vs H",
		Advocate:     "Adv. Singh",
		Purpose:      "Hearing",
	}
	if diff := cmp.Diff(want, result.Entries[0]); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCauseListMissingAdvocateColumn(t *testing.T) {
	result, err := ParseCauseList(`<table>
		<tr><th>Sr No</th><th>Case Number</th><th>Party Name</th><th>Purpose</th></tr>
		<tr><td>1</td><td>CS/100/2025</td><td>A vs B</td><td>Hearing</td></tr>
		<tr><td>2</td><td>CS/200/2025</td><td>C vs D</td><td>Orders</td></tr>
	</table>`)
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalCases)
	for _, entry := range result.Entries {
		require.Empty(t, entry.Advocate)
		require.NotEmpty(t, entry.CaseNumber)
	}
}

func TestParseCauseListPositionalFallback(t *testing.T) {
	result, err := ParseCauseList(`<table>
		<tr><td>1</td><td>CS/100/2025</td><td>A vs B</td><td>Adv. Rao</td><td>Hearing</td></tr>
	</table>`)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalCases)
	require.Equal(t, "CS/100/2025", result.Entries[0].CaseNumber)
	require.Equal(t, "Adv. Rao", result.Entries[0].Advocate)
}

func TestParseCauseListSkipsNoiseRows(t *testing.T) {
	result, err := ParseCauseList(`<table>
		<tr><th>Sr No</th><th>Case Number</th><th>Party Name</th><th>Advocate</th><th>Purpose</th></tr>
		<tr><td colspan="5">CIVIL CASES</td></tr>
		<tr><td>1</td><td>CS/100/2025</td><td>A vs B</td><td>Adv. Rao</td><td>Hearing</td></tr>
	</table>`)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalCases)
}

func TestHeaderMatches(t *testing.T) {
	cases := []struct {
		header     string
		candidates []string
		want       bool
	}{
		{"Sr No", []string{"sr no"}, true},
		{"Sl.No.", []string{"sr no", "sl no"}, true},
		{"Case Type/Case Number", []string{"case number"}, true},
		{"Advocate Name", []string{"advocate"}, true},
		{"Purpose of Listing", []string{"purpose"}, true},
		{"Party Name", []string{"advocate"}, false},
		{"", []string{"sr no"}, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, headerMatches(tc.header, tc.candidates...),
			"header %q vs %v", tc.header, tc.candidates)
	}
}

func TestSplitComplexCode(t *testing.T) {
	info := splitComplexCode("1@DLND01,DLND02@Y")
	require.Equal(t, "1", info.ID)
	require.Equal(t, []string{"DLND01", "DLND02"}, info.EstCodes)
	require.Equal(t, "Y", info.Flag)

	info = splitComplexCode("2@DLSE01@N")
	require.Equal(t, "2", info.ID)
	require.Equal(t, []string{"DLSE01"}, info.EstCodes)
	require.Equal(t, "N", info.Flag)

	info = splitComplexCode("42")
	require.Equal(t, "42", info.ID)
	require.Empty(t, info.EstCodes)
	require.Empty(t, info.Flag)
}

func TestNormalizeDate(t *testing.T) {
	date, err := normalizeDate("01-12-2025")
	require.NoError(t, err)
	require.Equal(t, "01-12-2025", date)

	date, err = normalizeDate("2025-12-01")
	require.NoError(t, err)
	require.Equal(t, "01-12-2025", date)

	for _, bad := range []string{"", "32-13-2025", "12/01/2025", "someday"} {
		_, err := normalizeDate(bad)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr, "date %q", bad)
	}
}

func TestParseCaseSearchNoRecordsMarkers(t *testing.T) {
	for _, body := range []string{
		`<p>Record Not Found</p>`,
		`<span>No case found for the given CNR</span>`,
	} {
		result, err := ParseCaseSearch(body, testNow())
		require.NoError(t, err)
		require.False(t, result.Found)
	}
}

func TestParseCaseSearchIgnoresUnparseableDates(t *testing.T) {
	result, err := ParseCaseSearch(`<table>
		<tr><td>Next Hearing Date</td><td>Not Fixed</td></tr>
	</table>`, testNow())
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, "Not Fixed", result.NextHearingDate)
	require.False(t, result.ListedToday)
	require.False(t, result.ListedTomorrow)
}
