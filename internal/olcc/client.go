/*
Package olcc talks to the Oregon liquor store locator and turns its result
pages into stock results.
*/
package olcc

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
)

const (
	welcomePath = "/servlet/WelcomeController"
	searchPath  = "/servlet/FrontController"
)

// UserAgents is the pool a session picks its User-Agent from.
var UserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.1.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:77.0) Gecko/20100101 Firefox/77.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.97 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:77.0) Gecko/20100101 Firefox/77.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.97 Safari/537.36",
}

// Session is one cookie-carrying browsing session against the locator.
type Session struct {
	http      *resty.Client
	userAgent string
}

func NewSession(baseURL string, timeout time.Duration, rng *rand.Rand) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	userAgent := UserAgents[rng.IntN(len(UserAgents))]

	httpClient := resty.New()
	httpClient.SetBaseURL(baseURL)
	httpClient.SetTimeout(timeout)
	httpClient.SetCookieJar(jar)
	httpClient.SetHeader("User-Agent", userAgent)
	httpClient.SetHeader("Accept", "text/html,application/xhtml+xml")

	return &Session{http: httpClient, userAgent: userAgent}, nil
}

func (s *Session) UserAgent() string {
	return s.userAgent
}

// Prime passes the age gate. The locator will not answer searches without
// the cookies set here.
func (s *Session) Prime(ctx context.Context) error {
	resp, err := s.http.R().
		SetContext(ctx).
		Post(welcomePath)
	if err != nil {
		return fmt.Errorf("failed to POST %s: %w", welcomePath, classifyError(err))
	}
	if !resp.IsSuccess() {
		return ErrStatus{Code: resp.StatusCode(), URL: resp.Request.URL}
	}
	return nil
}

// Search fetches the result page for one product code around zip.
func (s *Session) Search(ctx context.Context, code, zip, radius string) ([]byte, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"view":                "global",
			"action":              "search",
			"productSearchParam":  code,
			"locationSearchParam": zip,
			"radiusSearchParam":   radius,
			"chkDefault":          "on",
			"btnSearch":           "Search",
		}).
		Get(searchPath)
	if err != nil {
		return nil, fmt.Errorf("failed to search for %s: %w", code, classifyError(err))
	}
	if !resp.IsSuccess() {
		return nil, ErrStatus{Code: resp.StatusCode(), URL: resp.Request.URL}
	}
	return resp.Body(), nil
}
