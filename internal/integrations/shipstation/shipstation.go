// Package shipstation talks to both ShipStation API surfaces: the legacy v1 API
// (basic auth) and the current v2 API (API-Key header).
package shipstation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipRecon/internal/ratelimit"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.0000000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate accepts the date formats both API surfaces emit. Empty or unknown input gives nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

type transport struct {
	base    *url.URL
	auth    func(*http.Request)
	limiter *ratelimit.Limiter
	httpc   *http.Client
	name    string
}

func newTransport(name, baseURL string, limiter *ratelimit.Limiter, auth func(*http.Request)) (*transport, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if limiter == nil {
		limiter = ratelimit.New("shipstation", ratelimit.DefaultShipStationInterval)
	}
	return &transport{
		base:    u,
		auth:    auth,
		limiter: limiter,
		name:    name,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// resolve turns a path or an absolute resource url into a url on the configured host.
// Credentials are never sent to another host.
func (t *transport) resolve(ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", errors.Wrap(err, "parse url")
	}
	if !r.IsAbs() {
		u := *t.base
		u.Path = t.base.Path + "/" + strings.TrimLeft(r.Path, "/")
		u.RawQuery = r.RawQuery
		return u.String(), nil
	}
	if !strings.EqualFold(r.Host, t.base.Host) {
		return "", fmt.Errorf("%s: resource host %q does not match %q", t.name, r.Host, t.base.Host)
	}
	return r.String(), nil
}

// get decodes a JSON GET response into out. ok=false means 404.
func (t *transport) get(ctx context.Context, ref string, out any) (bool, error) {
	target, err := t.resolve(ref)
	if err != nil {
		return false, err
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, errors.Wrap(err, "new request")
	}
	t.auth(req)
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpc.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode/100 != 2 {
		return false, fmt.Errorf("%s http %d", t.name, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, errors.Wrap(err, "decode")
	}
	return true, nil
}
