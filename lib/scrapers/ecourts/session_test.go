package ecourts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionExpirySurfacesAsSessionExpired(t *testing.T) {
	portal := newStubPortal(t)
	portal.expireSessions = true
	client := newTestClient(t, portal, 1)

	_, err := client.Districts(context.Background(), "26")
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestStepAfterCloseIsRejected(t *testing.T) {
	client := newTestClient(t, newStubPortal(t), 1)
	ctx := context.Background()

	s, err := client.OpenSession(ctx)
	require.NoError(t, err)
	s.Close()

	_, err = s.Step(ctx, "/?p=casestatus/fillDistrict", map[string]string{"state_code": "26"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestStepThreadsRotatedTokens(t *testing.T) {
	portal := newStubPortal(t)
	client := newTestClient(t, portal, 1)
	ctx := context.Background()

	s, err := client.OpenSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	// each step depends on the token issued by the previous response;
	// the stub fails the request if the engine sends a stale one
	_, err = s.stepEnvelope(ctx, "/?p=casestatus/fillDistrict", map[string]string{"state_code": "26"})
	require.NoError(t, err)
	_, err = s.stepEnvelope(ctx, "/?p=casestatus/fillcomplex", map[string]string{
		"state_code": "26",
		"dist_code":  "9",
	})
	require.NoError(t, err)

	require.False(t, portal.crossContaminated)
}

func TestCancelledContextStopsStep(t *testing.T) {
	client := newTestClient(t, newStubPortal(t), 1)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := client.OpenSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	cancel()

	_, err = s.Step(ctx, "/?p=casestatus/fillDistrict", map[string]string{"state_code": "26"})
	require.Error(t, err)
	require.True(t, IsPortalUnavailable(err))
}

func TestParseEnvelopeToleratesLeadingNoise(t *testing.T) {
	env, ok := parseEnvelope([]byte("\n\xef\xbb\xbfwarning: x {\"app_token\": \"t9\", \"dist_list\": \"<option value='1'>A</option>\"}"))
	require.True(t, ok)
	require.Equal(t, "t9", env.AppToken)
	require.NotEmpty(t, env.DistList)

	_, ok = parseEnvelope([]byte("<html>not json</html>"))
	require.False(t, ok)

	_, ok = parseEnvelope(nil)
	require.False(t, ok)
}

func TestStaleSessionMessageMarkers(t *testing.T) {
	require.True(t, staleSessionMessage("Your Session Has Expired"))
	require.True(t, staleSessionMessage("INVALID TOKEN provided"))
	require.False(t, staleSessionMessage("Invalid Captcha Code"))
	require.False(t, staleSessionMessage(""))
}
