// Package geo resolves client IP addresses to an approximate location.
//
// Lookups are best-effort: a Resolver never returns an error, it returns an
// empty Location instead and logs what went wrong.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://ip-api.com"
	DefaultTimeout = 2 * time.Second

	lookupFields = "status,message,country,regionName,city,timezone,lat,lon"
)

type Location struct {
	Country   string
	City      string
	Region    string
	Timezone  string
	Latitude  *float64
	Longitude *float64
}

// Empty reports whether the lookup produced no data at all.
func (l Location) Empty() bool {
	return l.Country == "" && l.City == "" && l.Region == "" && l.Timezone == "" &&
		l.Latitude == nil && l.Longitude == nil
}

type Resolver interface {
	Lookup(ctx context.Context, ip string) Location
}

// Public reports whether ip is worth sending to an external lookup service.
func Public(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	return !(addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast())
}

type ipAPIResponse struct {
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	Country    string   `json:"country"`
	RegionName string   `json:"regionName"`
	City       string   `json:"city"`
	Timezone   string   `json:"timezone"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
}

// IPAPIResolver looks addresses up with the ip-api.com JSON endpoint.
type IPAPIResolver struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

func NewIPAPIResolver(baseURL string, timeout time.Duration, logger *zap.Logger) *IPAPIResolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = timeout

	return &IPAPIResolver{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

func (r *IPAPIResolver) Lookup(ctx context.Context, ip string) Location {
	if !Public(ip) {
		return Location{}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	loc, err := r.lookup(ctx, ip)
	if err != nil {
		r.logger.Warn("Geo lookup failed",
			zap.String("ip", ip),
			zap.Error(err))
		return Location{}
	}

	return loc
}

func (r *IPAPIResolver) lookup(ctx context.Context, ip string) (Location, error) {
	endpoint := fmt.Sprintf("%s/json/%s?fields=%s", r.baseURL, url.PathEscape(ip), lookupFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Location{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Location{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decode response: %w", err)
	}

	if body.Status != "success" {
		return Location{}, fmt.Errorf("lookup status %q: %s", body.Status, body.Message)
	}

	return Location{
		Country:   body.Country,
		City:      body.City,
		Region:    body.RegionName,
		Timezone:  body.Timezone,
		Latitude:  body.Lat,
		Longitude: body.Lon,
	}, nil
}

// NopResolver never performs lookups.
type NopResolver struct{}

func (NopResolver) Lookup(context.Context, string) Location { return Location{} }
