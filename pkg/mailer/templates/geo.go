package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

type Geo struct {
	City     string
	Region   string // state/province
	Country  string
	Timezone string
}

type GeoResolver interface {
	Lookup(ctx context.Context, ip string) (Geo, error)
}

func FormatGeo(g Geo) string {
	var parts []string
	for _, s := range []string{g.City, g.Region, g.Country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// IPAPIResolver implements GeoResolver using ip-api.com
type IPAPIResolver struct {
	Client *http.Client
}

func (r IPAPIResolver) Lookup(ctx context.Context, ip string) (Geo, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return Geo{}, fmt.Errorf("empty ip")
	}
	client := r.Client
	if client == nil {
		client = cleanhttp.DefaultClient()
		client.Timeout = 2 * time.Second
	}

	url := fmt.Sprintf("http://ip-api.com/json/%s?fields=status,message,country,regionName,city,timezone", ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Geo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Geo{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Status     string `json:"status"`
		Message    string `json:"message"`
		Country    string `json:"country"`
		RegionName string `json:"regionName"`
		City       string `json:"city"`
		Timezone   string `json:"timezone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Geo{}, err
	}
	if !strings.EqualFold(body.Status, "success") {
		return Geo{}, fmt.Errorf("geo lookup failed: %s", body.Message)
	}
	return Geo{City: body.City, Region: body.RegionName, Country: body.Country, Timezone: body.Timezone}, nil
}

// CachedResolver memoises successful lookups for TTL. The email worker sees
// the same few admin IPs over and over.
type CachedResolver struct {
	Next GeoResolver
	TTL  time.Duration

	mu    sync.Mutex
	items map[string]cachedGeo
}

type cachedGeo struct {
	geo Geo
	exp time.Time
}

func NewCachedResolver(next GeoResolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{Next: next, TTL: ttl, items: map[string]cachedGeo{}}
}

func (c *CachedResolver) Lookup(ctx context.Context, ip string) (Geo, error) {
	now := time.Now()
	c.mu.Lock()
	if it, ok := c.items[ip]; ok && now.Before(it.exp) {
		c.mu.Unlock()
		return it.geo, nil
	}
	c.mu.Unlock()

	g, err := c.Next.Lookup(ctx, ip)
	if err != nil {
		return Geo{}, err
	}
	c.mu.Lock()
	c.items[ip] = cachedGeo{geo: g, exp: now.Add(c.TTL)}
	c.mu.Unlock()
	return g, nil
}
