// Package probe verifies slideshow addressability with plain HTTP
// before any browser is spent on it. The gallery is a fragment-routed
// single page, so the probe only has to confirm the page itself serves
// and carries gallery markup; the per-look URLs are the page URL with
// a numeric fragment.
package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/runway"
)

// Pacer gates page loads. The shared rate limiter implements it.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls probe behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Pacer, when set, is consulted before each probe request.
	Pacer Pacer
}

// Locator implements look URL discovery over a colly collector.
type Locator struct {
	cfg           Config
	baseCollector *colly.Collector
	log           *zap.Logger
}

// New builds a Locator.
func New(cfg Config, logger *zap.Logger) *Locator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Locator{cfg: cfg, baseCollector: c, log: logger}
}

// DiscoverLookURLs fetches the slideshow page once and, when the
// gallery markup is present, returns one fragment URL per look.
func (l *Locator) DiscoverLookURLs(ctx context.Context, slideshowURL string, total int) ([]string, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: non-positive look count %d", runway.ErrValidation, total)
	}
	base := strings.SplitN(slideshowURL, "#", 2)[0]

	if l.cfg.Pacer != nil {
		if err := l.cfg.Pacer.Wait(ctx, base); err != nil {
			return nil, fmt.Errorf("%w: %v", runway.ErrNavigation, err)
		}
	}

	var (
		status     int
		hasGallery bool
		fetchErr   error
	)
	collector := l.baseCollector.Clone()
	if l.cfg.UserAgent != "" {
		collector.UserAgent = l.cfg.UserAgent
	}
	collector.SetRequestTimeout(l.cfg.Timeout)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		hasGallery = strings.Contains(string(r.Body), "RunwayGallery")
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := l.visit(ctx, collector, base, &fetchErr); err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: slideshow probe got status %d", runway.ErrNavigation, status)
	}
	if !hasGallery {
		return nil, fmt.Errorf("%w: no gallery markup at %s", runway.ErrElementNotFound, base)
	}

	urls := make([]string, 0, total)
	for n := 1; n <= total; n++ {
		urls = append(urls, fmt.Sprintf("%s#%d", base, n))
	}
	l.log.Debug("look urls probed", zap.String("url", base), zap.Int("looks", total))
	return urls, nil
}

func (l *Locator) visit(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("slideshow probe canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: probe %s: %v", runway.ErrNavigation, url, err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("%w: probe %s: %v", runway.ErrNavigation, url, *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
