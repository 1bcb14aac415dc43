package ecourts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIssueCaptcha(t *testing.T) {
	client := newTestClient(t, newStubPortal(t), 1)
	ctx := context.Background()

	s, err := client.OpenSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	challenge, err := client.IssueCaptcha(ctx, s)
	require.NoError(t, err)
	require.NotEmpty(t, challenge.ID)
	require.True(t, strings.HasPrefix(challenge.Image, "data:image/png;base64,"))
	require.Contains(t, challenge.AudioURL, "securimage_play.php")
	require.False(t, challenge.IssuedAt.IsZero())
}

func causeListRequest(challenge *CaptchaChallenge, solution string) CauseListRequest {
	return CauseListRequest{
		StateCode:    "26",
		DistrictCode: "9",
		ComplexCode:  "1@DLND01,DLND02@Y",
		CourtCode:    "1$DLND01",
		Date:         "01-12-2025",
		CauseType:    CauseTypeCivil,
		Challenge:    challenge,
		Solution:     solution,
	}
}

func TestChallengeIsSingleUse(t *testing.T) {
	client := newTestClient(t, newStubPortal(t), 1)
	ctx := context.Background()

	s, err := client.OpenSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	challenge, err := client.IssueCaptcha(ctx, s)
	require.NoError(t, err)

	// first attempt consumes the challenge, accepted or not
	_, err = client.FetchCauseList(ctx, s, causeListRequest(challenge, "wrong"))
	var rejected *CaptchaRejectedError
	require.ErrorAs(t, err, &rejected)

	// a second attempt with the same challenge id fails validation
	// before any network call
	_, err = client.FetchCauseList(ctx, s, causeListRequest(challenge, "xk42p"))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Reason, "consumed")
}

func TestChallengeBoundToIssuingSession(t *testing.T) {
	client := newTestClient(t, newStubPortal(t), 1)
	ctx := context.Background()

	s1, err := client.OpenSession(ctx)
	require.NoError(t, err)
	defer s1.Close()
	s2, err := client.OpenSession(ctx)
	require.NoError(t, err)
	defer s2.Close()

	challenge, err := client.IssueCaptcha(ctx, s1)
	require.NoError(t, err)

	_, err = client.FetchCauseList(ctx, s2, causeListRequest(challenge, "xk42p"))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Reason, "different session")
}

func TestClosingSessionDiscardsBoundChallenge(t *testing.T) {
	client := newTestClient(t, newStubPortal(t), 1)
	ctx := context.Background()

	s, err := client.OpenSession(ctx)
	require.NoError(t, err)

	challenge, err := client.IssueCaptcha(ctx, s)
	require.NoError(t, err)
	s.Close()

	s2, err := client.OpenSession(ctx)
	require.NoError(t, err)
	defer s2.Close()

	_, err = client.FetchCauseList(ctx, s2, causeListRequest(challenge, "xk42p"))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}
