package olcc

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://olcc.test"

func newMockedSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(testBaseURL, time.Second, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	httpmock.ActivateNonDefault(s.http.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return s
}

func TestNewSessionPicksUserAgentFromPool(t *testing.T) {
	s, err := NewSession(testBaseURL, time.Second, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	require.True(t, slices.Contains(UserAgents, s.UserAgent()))
}

func TestPrimeSendsUserAgentAndKeepsCookies(t *testing.T) {
	s := newMockedSession(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+welcomePath,
		func(req *http.Request) (*http.Response, error) {
			require.Equal(t, s.UserAgent(), req.Header.Get("User-Agent"))
			resp := httpmock.NewStringResponse(http.StatusOK, "welcome")
			resp.Header.Set("Set-Cookie", "JSESSIONID=abc123; Path=/")
			return resp, nil
		})
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+searchPath,
		func(req *http.Request) (*http.Response, error) {
			cookie, err := req.Cookie("JSESSIONID")
			if err != nil {
				return httpmock.NewStringResponse(http.StatusForbidden, ""), nil
			}
			require.Equal(t, "abc123", cookie.Value)

			q := req.URL.Query()
			require.Equal(t, "8722B", q.Get("productSearchParam"))
			require.Equal(t, "97230", q.Get("locationSearchParam"))
			require.Equal(t, "30", q.Get("radiusSearchParam"))
			require.Equal(t, "global", q.Get("view"))
			require.Equal(t, "search", q.Get("action"))
			return httpmock.NewStringResponse(http.StatusOK, "<html></html>"), nil
		})

	ctx := context.Background()
	require.NoError(t, s.Prime(ctx))

	body, err := s.Search(ctx, "8722B", "97230", "30")
	require.NoError(t, err)
	require.Equal(t, "<html></html>", string(body))
}

func TestPrimeFailures(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		label     string
	}{
		{
			name:      "timeout",
			responder: httpmock.NewErrorResponder(context.DeadlineExceeded),
			label:     "timeout",
		},
		{
			name:      "connection refused",
			responder: httpmock.NewErrorResponder(errors.New("connection refused")),
			label:     "connection",
		},
		{
			name:      "server error",
			responder: httpmock.NewStringResponder(http.StatusInternalServerError, ""),
			label:     "status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMockedSession(t)
			httpmock.RegisterResponder(http.MethodPost, testBaseURL+welcomePath, tt.responder)

			err := s.Prime(context.Background())
			require.Error(t, err)
			require.Equal(t, tt.label, ErrorTypeLabel(err))
		})
	}
}

func TestSearchStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		label  string
	}{
		{status: http.StatusForbidden, label: "forbidden"},
		{status: http.StatusNotFound, label: "not_found"},
		{status: http.StatusTooManyRequests, label: "rate_limited"},
		{status: http.StatusBadGateway, label: "status"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			s := newMockedSession(t)
			httpmock.RegisterResponder(http.MethodGet, testBaseURL+searchPath,
				httpmock.NewStringResponder(tt.status, ""))

			_, err := s.Search(context.Background(), "8722B", "97230", "30")
			var statusErr ErrStatus
			require.ErrorAs(t, err, &statusErr)
			require.Equal(t, tt.status, statusErr.Code)
			require.Equal(t, tt.label, ErrorTypeLabel(err))
		})
	}
}

func TestErrorTypeLabelFallbacks(t *testing.T) {
	require.Equal(t, "unknown", ErrorTypeLabel(nil))
	require.Equal(t, "other", ErrorTypeLabel(errors.New("boom")))
}
