package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/charliek/evergreen/internal/constants"
	"github.com/charliek/evergreen/internal/domain"
)

// packageBaseAddressType is the service index resource serving the flat
// container of package versions
const packageBaseAddressType = "PackageBaseAddress/3.0.0"

// maxFeedResponseSize bounds any single feed document
const maxFeedResponseSize = 16 << 20

type serviceIndex struct {
	Resources []struct {
		ID   string `json:"@id"`
		Type string `json:"@type"`
	} `json:"resources"`
}

type versionIndex struct {
	Versions []string `json:"versions"`
}

// Feed queries a NuGet v3 feed for the published versions of a package.
// Version lists are never cached; only the service index lookup is.
type Feed struct {
	source     string
	client     *http.Client
	maxElapsed time.Duration

	mu          sync.Mutex
	baseAddress string
}

// NewFeed creates a Feed for the service index at source
func NewFeed(source string, client *http.Client) *Feed {
	if client == nil {
		client = &http.Client{Timeout: constants.FeedRequestTimeout}
	}
	return &Feed{
		source:     source,
		client:     client,
		maxElapsed: constants.FeedMaxElapsed,
	}
}

// Source returns the service index URL
func (f *Feed) Source() string {
	return f.source
}

// Versions returns every published version of packageID. Transient
// failures are retried with backoff; a missing package is not.
func (f *Feed) Versions(ctx context.Context, packageID string) ([]*version.Version, error) {
	var versions []*version.Version

	operation := func() error {
		base, err := f.packageBaseAddress(ctx)
		if err != nil {
			return err
		}

		url := strings.TrimSuffix(base, "/") + "/" + strings.ToLower(packageID) + "/index.json"
		var index versionIndex
		if err := f.getJSON(ctx, url, &index); err != nil {
			return err
		}

		versions = versions[:0]
		for _, raw := range index.Versions {
			v, err := version.NewVersion(raw)
			if err != nil {
				log.WithField("version", raw).Debug("skipping unparsable package version")
				continue
			}
			versions = append(versions, v)
		}
		return nil
	}

	err := backoff.RetryNotify(operation, f.backoff(ctx), func(err error, d time.Duration) {
		log.Warnf("querying %s failed, retrying in %v: %v", f.source, d, err)
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (f *Feed) backoff(ctx context.Context) backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     200 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          2,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      f.maxElapsed,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return backoff.WithContext(b, ctx)
}

func (f *Feed) packageBaseAddress(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.baseAddress != "" {
		return f.baseAddress, nil
	}

	var index serviceIndex
	if err := f.getJSON(ctx, f.source, &index); err != nil {
		return "", err
	}
	for _, r := range index.Resources {
		if r.Type == packageBaseAddressType {
			f.baseAddress = r.ID
			return r.ID, nil
		}
	}
	return "", backoff.Permanent(fmt.Errorf("%w: %s has no %s resource", domain.ErrRegistryUnavailable, f.source, packageBaseAddressType))
}

// getJSON fetches url into v. Client errors other than 429 are permanent.
func (f *Feed) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrToolNotFound, url))
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned %d", domain.ErrRegistryUnavailable, url, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(fmt.Errorf("%w: %s returned %d", domain.ErrRegistryUnavailable, url, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedResponseSize))
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", domain.ErrRegistryUnavailable, url, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return backoff.Permanent(fmt.Errorf("%w: decoding %s: %v", domain.ErrRegistryUnavailable, url, err))
	}
	return nil
}

// latest returns the highest version in versions greater than local, or
// nil. Prereleases are skipped unless prerelease is set.
func latest(versions []*version.Version, local *version.Version, prerelease bool) *version.Version {
	var best *version.Version
	for _, v := range versions {
		if !prerelease && v.Prerelease() != "" {
			continue
		}
		if local != nil && !v.GreaterThan(local) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	return best
}
