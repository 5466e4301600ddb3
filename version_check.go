package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/types"
	"github.com/oszuidwest/zwfm-soundguard/internal/util"
	"golang.org/x/mod/semver"
)

const (
	releaseRepo       = "oszuidwest/zwfm-soundguard"
	releaseAPI        = "https://api.github.com"
	releaseInterval   = 24 * time.Hour
	releaseFirstDelay = 30 * time.Second
	releaseTimeout    = 30 * time.Second
	releaseAttempts   = 3
	releaseRetryMin   = time.Minute
	releaseRetryMax   = 4 * time.Minute
)

// errRetryable marks release check failures worth another attempt.
var errRetryable = errors.New("temporary release check failure")

type release struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// VersionChecker polls the latest published release and reports whether the
// running monitor is outdated. It is safe for concurrent use.
type VersionChecker struct {
	baseURL  string
	client   *http.Client
	stopCh   chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	latest  string
	etag    string
	checked time.Time
	lastErr string
}

// NewVersionChecker starts a checker against the GitHub releases API.
func NewVersionChecker() *VersionChecker {
	vc := newVersionChecker(releaseAPI, &http.Client{Timeout: releaseTimeout})
	go vc.run()
	return vc
}

func newVersionChecker(baseURL string, client *http.Client) *VersionChecker {
	return &VersionChecker{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		stopCh:  make(chan struct{}),
	}
}

// Stop ends the polling loop. It is safe to call more than once.
func (vc *VersionChecker) Stop() {
	vc.stopOnce.Do(func() { close(vc.stopCh) })
}

func (vc *VersionChecker) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in version checker", "panic", r)
		}
	}()

	timer := time.NewTimer(releaseFirstDelay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			vc.refresh()
			timer.Reset(releaseInterval)
		case <-vc.stopCh:
			return
		}
	}
}

// refresh checks once and retries temporary failures with backoff.
func (vc *VersionChecker) refresh() {
	backoff := util.NewBackoff(releaseRetryMin, releaseRetryMax)
	for attempt := 1; ; attempt++ {
		err := vc.check()
		if err == nil || !errors.Is(err, errRetryable) || attempt == releaseAttempts {
			return
		}
		delay := backoff.Next()
		slog.Debug("release check failed, retrying", "error", err, "attempt", attempt, "retry_in", delay)
		select {
		case <-time.After(delay):
		case <-vc.stopCh:
			return
		}
	}
}

// check fetches the latest release once and records the outcome.
func (vc *VersionChecker) check() error {
	err := vc.fetch()

	vc.mu.Lock()
	defer vc.mu.Unlock()
	if err != nil {
		vc.lastErr = err.Error()
		return err
	}
	vc.lastErr = ""
	vc.checked = time.Now()
	return nil
}

func (vc *VersionChecker) fetch() error {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		vc.baseURL+"/repos/"+releaseRepo+"/releases/latest", http.NoBody)
	if err != nil {
		return util.WrapError("build release request", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "zwfm-soundguard/"+Version)

	vc.mu.RLock()
	if vc.etag != "" {
		req.Header.Set("If-None-Match", vc.etag)
	}
	vc.mu.RUnlock()

	resp, err := vc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", errRetryable, err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // Body is fully consumed or discarded
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotModified, resp.StatusCode == http.StatusNotFound:
		// Unchanged, or nothing released yet.
		return nil
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
	default:
		return fmt.Errorf("release check: status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return fmt.Errorf("%w: decode release: %w", errRetryable, err)
	}
	if rel.Draft || rel.Prerelease {
		return nil
	}
	if rel.TagName == "" {
		return fmt.Errorf("%w: release without tag", errRetryable)
	}

	latest := normalizeVersion(rel.TagName)
	vc.mu.Lock()
	if latest != vc.latest && isNewerVersion(latest, normalizeVersion(Version)) {
		slog.Info("newer monitor release available", "current", Version, "latest", latest)
	}
	vc.latest = latest
	if etag := resp.Header.Get("ETag"); etag != "" {
		vc.etag = etag
	}
	vc.mu.Unlock()
	return nil
}

// Info returns the build and release versions for the console.
func (vc *VersionChecker) Info() types.VersionInfo {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	return types.VersionInfo{
		Current:     normalizeVersion(Version),
		Latest:      vc.latest,
		Commit:      Commit,
		BuildTime:   util.FormatHumanTime(BuildTime),
		UpdateAvail: vc.updateAvailLocked(),
	}
}

// Notice returns the release check outcome shown next to the detector state.
func (vc *VersionChecker) Notice(now time.Time) *types.UpdateNotice {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	return &types.UpdateNotice{
		Available: vc.updateAvailLocked(),
		Latest:    vc.latest,
		Checked:   util.Ago(vc.checked, now),
		Error:     vc.lastErr,
	}
}

// updateAvailLocked is false for development builds, which have no release to compare.
func (vc *VersionChecker) updateAvailLocked() bool {
	current := normalizeVersion(Version)
	if vc.latest == "" || current == "dev" || current == "unknown" {
		return false
	}
	return isNewerVersion(vc.latest, current)
}

func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewerVersion reports whether latest is a higher semver than current.
func isNewerVersion(latest, current string) bool {
	return semver.Compare("v"+normalizeVersion(latest), "v"+normalizeVersion(current)) > 0
}
