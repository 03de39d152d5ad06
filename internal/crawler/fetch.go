package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"sjsage522/listingwatcher/helpers"
	"sjsage522/listingwatcher/logger"
	"sjsage522/listingwatcher/services/cache"
)

// FallbackFetcher retries a hard-blocked request once through a secondary
// transport, usually a headless browser.
type FallbackFetcher struct {
	primary   Fetcher
	secondary Fetcher
}

// NewFallbackFetcher wraps primary with a secondary transport
func NewFallbackFetcher(primary, secondary Fetcher) *FallbackFetcher {
	return &FallbackFetcher{primary: primary, secondary: secondary}
}

// Fetch implements Fetcher
func (f *FallbackFetcher) Fetch(ctx context.Context, url string) (*helpers.Response, error) {
	resp, err := f.primary.Fetch(ctx, url)
	if err != nil || f.secondary == nil || !IsHardBlockedStatus(resp.Status) {
		return resp, err
	}

	log := logger.ForCrawler(url)
	log.Info().Int("status", resp.Status).Msg("Hard block on direct fetch, trying browser")

	alt, altErr := f.secondary.Fetch(ctx, url)
	if altErr != nil {
		log.Warn().Err(altErr).Msg("Browser fetch failed, keeping direct response")
		return resp, nil
	}
	return alt, nil
}

// CooldownFetcher suppresses requests to a URL for a while after it was hard
// blocked. While the cooldown holds, a synthetic 429 is returned without
// touching the network.
type CooldownFetcher struct {
	next     Fetcher
	cache    cache.CacheService
	cooldown time.Duration
	now      func() time.Time
}

// NewCooldownFetcher wraps next with a cooldown recorded in c
func NewCooldownFetcher(next Fetcher, c cache.CacheService, cooldown time.Duration) *CooldownFetcher {
	return &CooldownFetcher{
		next:     next,
		cache:    c,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// CooldownKey returns the cache key for url
func CooldownKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "listingwatcher:cooldown:" + hex.EncodeToString(sum[:16])
}

// Fetch implements Fetcher
func (f *CooldownFetcher) Fetch(ctx context.Context, url string) (*helpers.Response, error) {
	log := logger.ForCache()
	key := CooldownKey(url)

	until, err := f.cache.Get(key)
	switch {
	case err == nil:
		log.Info().Str("url", url).Str("until", string(until)).Msg("Cooldown active, skipping fetch")
		return &helpers.Response{
			Status:      http.StatusTooManyRequests,
			ContentType: "text/plain",
			Body:        fmt.Sprintf("cooldown after hard block, retry after %s", until),
			FinalURL:    url,
		}, nil
	case !cache.IsMiss(err):
		// the cache is advisory; fall through to a real fetch
		log.Warn().Err(err).Msg("Cooldown lookup failed")
	}

	resp, err := f.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if IsHardBlockedStatus(resp.Status) {
		expires := f.now().Add(f.cooldown).UTC().Format(time.RFC3339)
		if err := f.cache.Set(key, []byte(expires), f.cooldown); err != nil {
			log.Warn().Err(err).Msg("Failed to record cooldown")
		} else {
			log.Info().Str("url", url).Str("until", expires).Msg("Cooldown recorded")
		}
	}
	return resp, nil
}
