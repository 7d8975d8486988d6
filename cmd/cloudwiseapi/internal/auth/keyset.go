package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-jose/go-jose/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/telemetry"
)

var (
	// ErrKeyNotFound means the key set has no key with the requested kid.
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrRefetchLimited means a refresh was needed but the per-minute fetch budget is spent.
	ErrRefetchLimited = errors.New("key set refetch rate limit exceeded")
)

const maxJWKSBytes = 1 << 20

// KeySet resolves token signing keys by key id.
type KeySet interface {
	Key(ctx context.Context, kid string) (any, error)
}

// StaticKeySet is a fixed set of keys, used in tests and air-gapped deployments.
type StaticKeySet map[string]any

func (s StaticKeySet) Key(_ context.Context, kid string) (any, error) {
	key, ok := s[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
	}
	return key, nil
}

// RemoteKeySetOptions configure a RemoteKeySet. Zero values select defaults.
type RemoteKeySetOptions struct {
	HTTPClient       *http.Client
	CacheTTL         time.Duration
	RefetchPerMinute int
	FetchTimeout     time.Duration
	FetchAttempts    int
	Logger           log.FieldLogger
}

// RemoteKeySet caches the RSA signing keys published at a JWKS endpoint.
//
// Keys are served from memory until CacheTTL elapses. An unknown kid or an
// expired cache triggers a refresh; concurrent refreshes collapse into one
// HTTP fetch, and no more than RefetchPerMinute fetches happen per minute.
// A stale key is still returned when a refresh fails.
type RemoteKeySet struct {
	url          string
	client       *http.Client
	ttl          time.Duration
	fetchTimeout time.Duration
	attempts     uint
	limiter      *rate.Limiter
	logger       log.FieldLogger
	now          func() time.Time

	flight singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewRemoteKeySet creates a key set for url. Nothing is fetched until the first lookup.
func NewRemoteKeySet(url string, opts RemoteKeySetOptions) *RemoteKeySet {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.RefetchPerMinute <= 0 {
		opts.RefetchPerMinute = 5
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if opts.FetchAttempts <= 0 {
		opts.FetchAttempts = 3
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}

	return &RemoteKeySet{
		url:          url,
		client:       opts.HTTPClient,
		ttl:          opts.CacheTTL,
		fetchTimeout: opts.FetchTimeout,
		attempts:     uint(opts.FetchAttempts),
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RefetchPerMinute)), opts.RefetchPerMinute),
		logger:       opts.Logger.WithField("jwks_url", url),
		now:          time.Now,
	}
}

// Key returns the public key for kid, refreshing the cache when needed.
func (s *RemoteKeySet) Key(ctx context.Context, kid string) (any, error) {
	key, fresh := s.lookup(kid)
	if key != nil && fresh {
		return key, nil
	}

	ch := s.flight.DoChan("jwks", func() (any, error) {
		return nil, s.refresh(ctx)
	})

	var err error
	select {
	case res := <-ch:
		err = res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err != nil {
		if key != nil {
			s.logger.WithError(err).WithField("kid", kid).Warn("key set refresh failed, using cached key")
			return key, nil
		}
		return nil, err
	}

	key, _ = s.lookup(kid)
	if key == nil {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
	}
	return key, nil
}

// lookup returns the cached key and whether the cache is still within its TTL.
func (s *RemoteKeySet) lookup(kid string) (*rsa.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := s.keys[kid]
	fresh := !s.fetchedAt.IsZero() && s.now().Sub(s.fetchedAt) < s.ttl
	return key, fresh
}

// refresh runs inside the single flight. The fetch is detached from the
// triggering request so waiters are not failed by one caller hanging up.
func (s *RemoteKeySet) refresh(ctx context.Context) error {
	if !s.limiter.Allow() {
		return ErrRefetchLimited
	}

	ctx, span := telemetry.StartSpan(context.WithoutCancel(ctx), "cloudwiseapi/auth", "jwks.fetch",
		attribute.String("jwks.url", s.url),
	)
	defer span.End()

	keys, err := backoff.Retry(ctx, func() (map[string]*rsa.PublicKey, error) {
		return s.fetch(ctx)
	},
		backoff.WithBackOff(newFetchBackOff()),
		backoff.WithMaxTries(s.attempts),
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("fetch key set: %w", err)
	}

	s.mu.Lock()
	s.keys = keys
	s.fetchedAt = s.now()
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("jwks.keys", len(keys)))
	s.logger.WithField("keys", len(keys)).Info("key set refreshed")
	return nil
}

func newFetchBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	return b
}

// fetch performs one attempt. Network errors, 429 and 5xx are retried; any
// other failure is permanent.
func (s *RemoteKeySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("key set endpoint returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("key set endpoint returned %d", resp.StatusCode))
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&set); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode key set: %w", err))
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.KeyID == "" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		if pub, ok := jwk.Key.(*rsa.PublicKey); ok {
			keys[jwk.KeyID] = pub
		}
	}
	if len(keys) == 0 {
		return nil, backoff.Permanent(errors.New("key set contains no RSA signing keys"))
	}
	return keys, nil
}
