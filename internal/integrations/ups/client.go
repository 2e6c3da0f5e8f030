// Package ups looks up UPS delivery status through the OAuth-protected tracking API.
package ups

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/BearBump/ShipRecon/internal/integrations/carrier"
	"github.com/BearBump/ShipRecon/internal/ratelimit"
)

const (
	defaultTokenURL    = "https://onlinetools.ups.com/security/v1/oauth/token"
	defaultTrackingURL = "https://onlinetools.ups.com/api/track/v1/details"
	defaultTransSrc    = "shiprecon"
	defaultTokenTTL    = time.Hour
)

type Options struct {
	ClientID          string
	ClientSecret      string
	TokenURL          string
	TrackingURL       string
	TransactionSource string
	Limiter           *ratelimit.Limiter
}

type Client struct {
	clientID     string
	clientSecret string
	tokenURL     string
	trackingURL  string
	transSrc     string
	limiter      *ratelimit.Limiter
	tokens       *TokenCache
	httpc        *http.Client
}

var _ carrier.Client = (*Client)(nil)

func New(opts Options) *Client {
	if opts.TokenURL == "" {
		opts.TokenURL = defaultTokenURL
	}
	if opts.TrackingURL == "" {
		opts.TrackingURL = defaultTrackingURL
	}
	if opts.TransactionSource == "" {
		opts.TransactionSource = defaultTransSrc
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New("ups", ratelimit.DefaultUPSInterval)
	}
	return &Client{
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		tokenURL:     opts.TokenURL,
		trackingURL:  strings.TrimRight(opts.TrackingURL, "/"),
		transSrc:     opts.TransactionSource,
		limiter:      opts.Limiter,
		tokens:       NewTokenCache(),
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// expiresIn is sent as a JSON string by UPS and as a number by some proxies.
type expiresIn int64

func (e *expiresIn) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*e = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errors.Wrap(err, "expires_in")
	}
	*e = expiresIn(n)
	return nil
}

type tokenResp struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   expiresIn `json:"expires_in"`
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, errors.Wrap(err, "new token request")
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", 0, errors.Wrap(err, "do token request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", 0, fmt.Errorf("ups oauth http %d", resp.StatusCode)
	}

	var tr tokenResp
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, errors.Wrap(err, "decode token")
	}
	if tr.AccessToken == "" {
		return "", 0, errors.New("ups oauth: empty access token")
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return tr.AccessToken, ttl, nil
}

func (c *Client) GetTracking(ctx context.Context, trackingNumber string) (carrier.TrackingResult, error) {
	token, err := c.tokens.Get(ctx, c.fetchToken)
	if err != nil {
		return carrier.TrackingResult{}, errors.Wrap(err, "ups token")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return carrier.TrackingResult{}, err
	}

	u, err := url.Parse(c.trackingURL + "/" + url.PathEscape(trackingNumber))
	if err != nil {
		return carrier.TrackingResult{}, errors.Wrap(err, "parse tracking url")
	}
	q := u.Query()
	q.Set("locale", "en_US")
	q.Set("returnSignature", "false")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return carrier.TrackingResult{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("transId", uuid.NewString())
	req.Header.Set("transactionSrc", c.transSrc)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return carrier.TrackingResult{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return carrier.TrackingResult{}, errors.Wrap(err, "read body")
	}

	notFound := carrier.TrackingResult{
		TrackingNumber: trackingNumber,
		Status:         carrier.LookupNotFound,
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return notFound, nil
	case resp.StatusCode == http.StatusUnauthorized:
		c.tokens.Invalidate()
		return carrier.TrackingResult{}, fmt.Errorf("ups tracking http %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return carrier.TrackingResult{}, fmt.Errorf("ups tracking http %d", resp.StatusCode)
	case resp.StatusCode/100 != 2:
		if hasNoTrackingInfoCode(body) {
			return notFound, nil
		}
		slog.Warn("ups tracking rejected", "tracking_number", trackingNumber, "status", resp.StatusCode)
		return carrier.TrackingResult{
			TrackingNumber: trackingNumber,
			Status:         carrier.LookupError,
		}, nil
	}

	res := parseTrackingResponse(body, trackingNumber)
	if res.Status == carrier.LookupParseError {
		slog.Warn("ups tracking unparseable", "tracking_number", trackingNumber)
	}
	return res, nil
}
