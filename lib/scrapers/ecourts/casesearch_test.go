package ecourts

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"ecourts-backend/lib/retry"

	"github.com/stretchr/testify/require"
)

func newTestClientAt(t *testing.T, portal *stubPortal, now time.Time) *Client {
	server := httptest.NewServer(portal)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{
		BaseUrl: server.URL,
		Timeout: time.Second * 5,
		Retry: retry.Policy{
			MaxAttempts: 1,
			BaseDelay:   time.Millisecond,
			MaxDelay:    time.Millisecond * 4,
			Retryable:   IsPortalUnavailable,
		},
		Now: func() time.Time { return now },
	})
	require.NoError(t, err)
	return client
}

func TestSearchCaseByCNRNotFound(t *testing.T) {
	client := newTestClient(t, newStubPortal(t), 1)

	result, err := client.SearchCaseByCNR(context.Background(), "DLND010012342025", "", "")
	require.NoError(t, err)
	require.False(t, result.Found)
	require.False(t, result.ListedToday)
	require.False(t, result.ListedTomorrow)
	require.Empty(t, result.Details)
}

func TestSearchCaseByCNRListedToday(t *testing.T) {
	portal := newStubPortal(t)
	portal.caseSearchBody = `<table>
		<tr><td>Case Number</td><td>CS/100/2025</td></tr>
		<tr><td>Next Hearing Date</td><td>01-12-2025</td></tr>
		<tr><td>Sr Number</td><td>14</td></tr>
		<tr><td>Court Number and Judge</td><td>Court No 1, Tis Hazari</td></tr>
		<tr><td>Case Status</td><td>Pending</td></tr>
	</table>`
	now := time.Date(2025, 12, 1, 10, 30, 0, 0, time.Local)
	client := newTestClientAt(t, portal, now)

	result, err := client.SearchCaseByCNR(context.Background(), "DLND010012342025", "26", "9")
	require.NoError(t, err)
	require.True(t, result.Found)
	require.True(t, result.ListedToday)
	require.False(t, result.ListedTomorrow)
	require.Equal(t, "01-12-2025", result.NextHearingDate)
	require.Equal(t, "14", result.SerialNumber)
	require.Equal(t, "Court No 1, Tis Hazari", result.CourtName)
	require.Equal(t, "Pending", result.CaseStatus)
	require.Equal(t, "CS/100/2025", result.Details["case number"])
}

func TestSearchCaseByCNRListedTomorrow(t *testing.T) {
	portal := newStubPortal(t)
	portal.caseSearchBody = `<table>
		<tr><td>Next Date</td><td>02-12-2025</td></tr>
	</table>`
	now := time.Date(2025, 12, 1, 23, 59, 0, 0, time.Local)
	client := newTestClientAt(t, portal, now)

	result, err := client.SearchCaseByCNR(context.Background(), "DLND010012342025", "", "")
	require.NoError(t, err)
	require.True(t, result.Found)
	require.False(t, result.ListedToday)
	require.True(t, result.ListedTomorrow)
}

func TestSearchCaseByCNRValidation(t *testing.T) {
	portal := newStubPortal(t)
	client := newTestClient(t, portal, 1)

	_, err := client.SearchCaseByCNR(context.Background(), "short", "", "")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "cnr", validationErr.Field)
	require.Empty(t, portal.stepCounts)
}

func TestSearchCaseByCNRAlienResponseIsParseError(t *testing.T) {
	portal := newStubPortal(t)
	portal.caseSearchBody = `<div>Please login to continue using the portal</div>`
	client := newTestClient(t, portal, 1)

	_, err := client.SearchCaseByCNR(context.Background(), "DLND010012342025", "", "")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.NotEmpty(t, parseErr.Fragment)
}

func TestSearchCaseByDetails(t *testing.T) {
	portal := newStubPortal(t)
	portal.caseSearchBody = `<table>
		<tr><td>Case Status</td><td>Disposed</td></tr>
	</table>`
	client := newTestClient(t, portal, 1)

	result, err := client.SearchCaseByDetails(context.Background(), CaseDetailsQuery{
		StateCode:    "26",
		DistrictCode: "9",
		CourtCode:    "1$DLND01",
		CaseType:     "CS",
		CaseNumber:   "100",
		CaseYear:     "2025",
	})
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, "Disposed", result.CaseStatus)
}

func TestSearchCaseByDetailsValidation(t *testing.T) {
	client := newTestClient(t, newStubPortal(t), 1)

	query := CaseDetailsQuery{
		StateCode:    "26",
		DistrictCode: "9",
		CourtCode:    "1$DLND01",
		CaseType:     "CS",
		CaseNumber:   "100",
		CaseYear:     "25",
	}
	_, err := client.SearchCaseByDetails(context.Background(), query)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "case_year", validationErr.Field)

	query.CaseYear = "2025"
	query.CaseNumber = ""
	_, err = client.SearchCaseByDetails(context.Background(), query)
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "case_no", validationErr.Field)
}
