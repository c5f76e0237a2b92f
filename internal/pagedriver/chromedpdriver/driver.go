// Package chromedpdriver implements the browser automation layer with
// chromedp and headless Chrome. One Driver owns one browser tab and
// the authenticated session living in it.
package chromedpdriver

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/runway"
)

// Pacer gates page loads. The shared rate limiter implements it.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls browser behavior and per-operation timeouts.
type Config struct {
	BaseURL      string
	UserAgent    string
	PageLoadWait time.Duration
	ElementWait  time.Duration
	AuthWait     time.Duration
	AuthTimeout  time.Duration
	OpTimeout    time.Duration
	// Pacer, when set, is consulted before every navigation.
	Pacer Pacer
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.vogue.com"
	}
	if c.PageLoadWait <= 0 {
		c.PageLoadWait = 5 * time.Second
	}
	if c.ElementWait <= 0 {
		c.ElementWait = 10 * time.Second
	}
	if c.AuthWait <= 0 {
		c.AuthWait = 3 * time.Second
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 2 * time.Minute
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 45 * time.Second
	}
	return c
}

// Gallery image source rewrites. The page serves thumbnails; the full
// asset sits at the same path with a wider transform segment.
const (
	thumbSegment   = "/w_320,"
	highResSegment = "/w_2560,"
)

// Allocator owns the shared Chrome exec allocator. All drivers created
// from one Allocator share the same browser binary configuration but
// run in separate browser contexts.
type Allocator struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAllocator starts an exec allocator with the standard headless flags.
func NewAllocator(cfg Config) *Allocator {
	cfg = cfg.withDefaults()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	ctx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Allocator{ctx: ctx, cancel: cancel}
}

// Close tears down the allocator and every browser it spawned.
func (a *Allocator) Close() {
	a.cancel()
}

// Driver is a runway.PageDriver backed by one chromedp browser context.
// It must not be used by two tasks concurrently.
type Driver struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

// NewFactory returns a DriverFactory producing drivers on the shared
// allocator.
func NewFactory(alloc *Allocator, cfg Config, logger *zap.Logger) runway.DriverFactory {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) (runway.PageDriver, error) {
		tabCtx, cancel := chromedp.NewContext(alloc.ctx)
		d := &Driver{cfg: cfg, ctx: tabCtx, cancel: cancel, log: logger}
		if err := d.run(ctx, cfg.OpTimeout, d.sessionSetupAction()); err != nil {
			cancel()
			return nil, fmt.Errorf("%w: start browser context: %v", runway.ErrNavigation, err)
		}
		return d, nil
	}
}

func (d *Driver) sessionSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if d.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(d.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// pace blocks on the shared rate limiter before a page load.
func (d *Driver) pace(ctx context.Context, url string) error {
	if d.cfg.Pacer == nil {
		return nil
	}
	return d.cfg.Pacer.Wait(ctx, url)
}

// run executes actions on the driver's tab, bounded by both the
// caller's context and the given timeout.
func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(opCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Authenticate drives the magic-link handshake: navigate, let the
// redirect chain settle, then confirm the session actually works.
func (d *Driver) Authenticate(ctx context.Context, authURL string) error {
	d.log.Info("starting authentication", zap.String("url", authURL))

	if err := d.pace(ctx, authURL); err != nil {
		return fmt.Errorf("%w: %v", runway.ErrAuthentication, err)
	}
	if err := d.run(ctx, d.cfg.AuthTimeout,
		chromedp.Navigate(authURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("%w: navigate to auth url: %v", runway.ErrAuthentication, err)
	}

	finalURL, err := d.settleRedirects(ctx)
	if err != nil {
		return fmt.Errorf("%w: follow auth redirects: %v", runway.ErrAuthentication, err)
	}
	d.log.Info("auth redirects settled", zap.String("url", finalURL))

	if strings.Contains(finalURL, "/auth/complete") {
		return nil
	}
	if strings.Contains(finalURL, "id.condenast.com") {
		var formPresent bool
		if err := d.run(ctx, d.cfg.ElementWait,
			chromedp.Evaluate(`document.querySelector("form[action*='condenast']") !== null`, &formPresent),
		); err == nil && formPresent {
			return fmt.Errorf("%w: login form shown, link is stale or used", runway.ErrAuthentication)
		}
	}

	ok, err := d.VerifyAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: session not authenticated after handshake", runway.ErrAuthentication)
	}
	return nil
}

// settleRedirects polls the tab location until it stops changing.
func (d *Driver) settleRedirects(ctx context.Context) (string, error) {
	const maxRedirects = 5
	var last string
	if err := d.run(ctx, d.cfg.ElementWait, chromedp.Location(&last)); err != nil {
		return "", err
	}
	for i := 0; i < maxRedirects; i++ {
		var current string
		if err := d.run(ctx, d.cfg.AuthWait+d.cfg.ElementWait,
			chromedp.Sleep(d.cfg.AuthWait),
			chromedp.Location(&current),
		); err != nil {
			return "", err
		}
		if current == last {
			break
		}
		d.log.Debug("auth redirect", zap.Int("hop", i+1), zap.String("url", current))
		last = current
	}
	return last, nil
}

const paywallJS = `(() => {
	const indicators = ["subscribe-wall", "paywall", "subscription-prompt"];
	for (const ind of indicators) {
		const el = document.querySelector("[class*='" + ind + "'], [id*='" + ind + "']");
		if (el && el.offsetParent !== null) return true;
	}
	return false;
})()`

// VerifyAuthenticated loads the shows index and checks that gated
// content renders without a paywall.
func (d *Driver) VerifyAuthenticated(ctx context.Context) (bool, error) {
	var (
		paywalled bool
		items     int
	)
	if err := d.pace(ctx, d.cfg.BaseURL); err != nil {
		return false, fmt.Errorf("%w: %v", runway.ErrNavigation, err)
	}
	err := d.run(ctx, d.cfg.OpTimeout,
		chromedp.Navigate(d.cfg.BaseURL+"/fashion-shows"),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(d.cfg.PageLoadWait),
		chromedp.Evaluate(paywallJS, &paywalled),
		chromedp.Evaluate(`document.querySelectorAll(".SummaryItemWrapper-iwvBff").length`, &items),
	)
	if err != nil {
		return false, fmt.Errorf("%w: verify session: %v", runway.ErrNavigation, err)
	}
	if paywalled {
		d.log.Warn("paywall indicator present, session not authenticated")
		return false, nil
	}
	return items > 0, nil
}

// ShareSession copies this driver's cookies onto the target, which
// must also be a chromedp driver.
func (d *Driver) ShareSession(ctx context.Context, target runway.PageDriver) error {
	dst, ok := target.(*Driver)
	if !ok {
		return fmt.Errorf("%w: session target is not a browser driver", runway.ErrValidation)
	}

	var cookies []*network.Cookie
	if err := d.run(ctx, d.cfg.ElementWait, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	})); err != nil {
		return fmt.Errorf("%w: read session cookies: %v", runway.ErrAuthentication, err)
	}

	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			expiry := cdp.TimeSinceEpoch(time.Unix(0, int64(c.Expires*float64(time.Second))))
			p.Expires = &expiry
		}
		params = append(params, p)
	}

	if err := dst.run(ctx, dst.cfg.ElementWait, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	})); err != nil {
		return fmt.Errorf("%w: install session cookies: %v", runway.ErrAuthentication, err)
	}
	d.log.Debug("session shared", zap.Int("cookies", len(params)))
	return nil
}

type seasonRow struct {
	Year   string `json:"year"`
	Season string `json:"season"`
	URL    string `json:"url"`
}

const seasonsJS = `(() => {
	const out = [];
	for (const nav of document.querySelectorAll(".NavigationWrapper-bFftAs")) {
		const heading = nav.querySelector(".NavigationHeadingWrapper-befTuI");
		if (!heading) continue;
		const year = heading.textContent.trim();
		for (const link of nav.querySelectorAll(".NavigationInternalLink-cWEaeo")) {
			out.push({year: year, season: link.textContent.trim(), url: link.href});
		}
	}
	return out;
})()`

// ListSeasons scrapes the season navigation index.
func (d *Driver) ListSeasons(ctx context.Context) ([]runway.Season, error) {
	var rows []seasonRow
	if err := d.pace(ctx, d.cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: %v", runway.ErrNavigation, err)
	}
	err := d.run(ctx, d.cfg.OpTimeout,
		chromedp.Navigate(d.cfg.BaseURL+"/fashion-shows/seasons"),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(d.cfg.PageLoadWait),
		chromedp.Evaluate(seasonsJS, &rows),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: load seasons index: %v", runway.ErrNavigation, err)
	}

	seasons := mapSeasons(rows, d.cfg.BaseURL)
	if len(seasons) == 0 {
		return nil, fmt.Errorf("%w: no seasons on index page", runway.ErrElementNotFound)
	}
	d.log.Info("seasons discovered", zap.Int("count", len(seasons)))
	return seasons, nil
}

// mapSeasons filters navigation rows down to real season entries:
// numeric year groups and fashion-show links only.
func mapSeasons(rows []seasonRow, baseURL string) []runway.Season {
	seasons := make([]runway.Season, 0, len(rows))
	for _, r := range rows {
		if !isYear(r.Year) {
			continue
		}
		if !strings.HasPrefix(r.URL, baseURL+"/fashion-shows/") {
			continue
		}
		if r.Season == "" {
			continue
		}
		seasons = append(seasons, runway.Season{Name: r.Season, Year: r.Year, URL: r.URL})
	}
	return seasons
}

func isYear(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type designerRow struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

const designersJS = `(() => {
	const out = [];
	for (const item of document.querySelectorAll(".SummaryItemWrapper-iwvBff")) {
		const link = item.querySelector(".SummaryItemHedLink-civMjp");
		if (!link) continue;
		out.push({name: link.textContent.trim(), url: link.href});
	}
	return out;
})()`

// ListDesigners scrapes the designer list from a season page.
func (d *Driver) ListDesigners(ctx context.Context, seasonURL string) ([]runway.Designer, error) {
	var rows []designerRow
	if err := d.pace(ctx, seasonURL); err != nil {
		return nil, fmt.Errorf("%w: %v", runway.ErrNavigation, err)
	}
	err := d.run(ctx, d.cfg.OpTimeout,
		chromedp.Navigate(seasonURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(d.cfg.PageLoadWait),
		chromedp.Evaluate(designersJS, &rows),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: load season page %s: %v", runway.ErrNavigation, seasonURL, err)
	}

	designers := make([]runway.Designer, 0, len(rows))
	for _, r := range rows {
		if r.Name == "" || r.URL == "" {
			continue
		}
		designers = append(designers, runway.Designer{Name: r.Name, URL: r.URL})
	}
	if len(designers) == 0 {
		return nil, fmt.Errorf("%w: no designers on season page %s", runway.ErrElementNotFound, seasonURL)
	}
	d.log.Info("designers discovered", zap.String("season_url", seasonURL), zap.Int("count", len(designers)))
	return designers, nil
}

const (
	galleryCtaSel   = ".RunwayShowPageGalleryCta-fmTQJF"
	slideshowBtnSel = `a[href*="/slideshow/collection"] .button--primary span.button__label`
	firstLookSel    = `.GridItem-buujkM a[href*="/slideshow/collection#1"]`
	nextControlSel  = `[data-testid="RunwayGalleryControlNext"]`
	lookNumberSel   = ".RunwayGalleryLookNumberText-hidXa"
)

const clickSlideshowJS = `(() => {
	const cta = document.querySelector(` + "`" + slideshowBtnSel + "`" + `);
	if (cta) {
		cta.scrollIntoView(true);
		(cta.closest("a") || cta).click();
		return true;
	}
	const first = document.querySelector(` + "`" + firstLookSel + "`" + `);
	if (first) {
		first.scrollIntoView(true);
		first.click();
		return true;
	}
	return false;
})()`

// OpenShow navigates to a designer page and enters its slideshow.
// Shows without a gallery return an empty URL and no error.
func (d *Driver) OpenShow(ctx context.Context, designerURL string) (string, error) {
	if err := d.pace(ctx, designerURL); err != nil {
		return "", fmt.Errorf("%w: %v", runway.ErrNavigation, err)
	}
	err := d.run(ctx, d.cfg.OpTimeout,
		chromedp.Navigate(designerURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(d.cfg.PageLoadWait),
	)
	if err != nil {
		return "", fmt.Errorf("%w: load designer page %s: %v", runway.ErrNavigation, designerURL, err)
	}

	var clicked bool
	if err := d.run(ctx, d.cfg.ElementWait, chromedp.Evaluate(clickSlideshowJS, &clicked)); err != nil {
		return "", fmt.Errorf("%w: locate slideshow entry on %s: %v", runway.ErrElementNotFound, designerURL, err)
	}
	if !clicked {
		d.log.Info("show has no slideshow", zap.String("designer_url", designerURL))
		return "", nil
	}

	var slideshowURL string
	err = d.run(ctx, d.cfg.OpTimeout,
		chromedp.Sleep(d.cfg.PageLoadWait),
		chromedp.WaitVisible(lookNumberSel, chromedp.ByQuery),
		chromedp.Location(&slideshowURL),
	)
	if err != nil {
		return "", fmt.Errorf("%w: enter slideshow from %s: %v", runway.ErrNavigation, designerURL, err)
	}
	d.log.Info("slideshow opened", zap.String("url", slideshowURL))
	return slideshowURL, nil
}

// TotalLooks reads the look counter on the open slideshow.
func (d *Driver) TotalLooks(ctx context.Context) (int, error) {
	var text string
	err := d.run(ctx, d.cfg.ElementWait,
		chromedp.Text(lookNumberSel, &text, chromedp.ByQuery),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: look counter not on page: %v", runway.ErrElementNotFound, err)
	}
	total, err := parseLookTotal(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", runway.ErrDataExtraction, err)
	}
	return total, nil
}

// parseLookTotal extracts the denominator from counter text like
// "Look 3/45".
func parseLookTotal(text string) (int, error) {
	parts := strings.Split(text, "/")
	raw := strings.TrimSpace(parts[len(parts)-1])
	total, err := strconv.Atoi(raw)
	if err != nil || total <= 0 {
		return 0, fmt.Errorf("unusable look counter %q", text)
	}
	return total, nil
}

// parseLookNumber extracts the numerator from counter text like
// "Look 3/45". Zero means the counter was absent or malformed.
func parseLookNumber(text string) int {
	head := strings.Split(text, "/")[0]
	head = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(head), "Look"))
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}

// highResURL rewrites an asset thumbnail URL to its full-size variant.
func highResURL(url string) string {
	return strings.Replace(url, thumbSegment, highResSegment, 1)
}

type imageRow struct {
	URL  string `json:"url"`
	Look string `json:"look"`
	Alt  string `json:"alt"`
}

const imagesJS = `(() => {
	const out = [];
	const gallery = document.querySelector(".RunwayGalleryImageCollection");
	if (!gallery) return out;
	for (const item of gallery.querySelectorAll(".ImageCollectionListItem-YjTJj")) {
		const img = item.querySelector(".ResponsiveImageContainer-eybHBd");
		if (!img || !img.src) continue;
		const counter = item.querySelector(".RunwayGalleryLookNumberText-hidXa");
		out.push({url: img.src, look: counter ? counter.textContent.trim() : "", alt: img.alt || ""});
	}
	return out;
})()`

// CurrentLookImages extracts every usable image of the current look.
func (d *Driver) CurrentLookImages(ctx context.Context) ([]runway.Image, error) {
	var rows []imageRow
	err := d.run(ctx, d.cfg.ElementWait,
		chromedp.WaitVisible(".RunwayGalleryImageCollection", chromedp.ByQuery),
		chromedp.Evaluate(imagesJS, &rows),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: gallery collection not on page: %v", runway.ErrElementNotFound, err)
	}

	now := time.Now().UTC()
	images := make([]runway.Image, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(r.URL, "/verso/static/") {
			continue
		}
		if !strings.Contains(r.URL, "assets.vogue.com") {
			continue
		}
		images = append(images, runway.Image{
			URL:        highResURL(r.URL),
			LookNumber: parseLookNumber(r.Look),
			AltText:    r.Alt,
			Type:       runway.ClassifyImage(r.Alt),
			Timestamp:  now,
		})
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no usable images in current look", runway.ErrDataExtraction)
	}
	return images, nil
}

const nextStateJS = `(() => {
	const btn = document.querySelector(` + "`" + nextControlSel + "`" + `);
	if (!btn) return "missing";
	if ((btn.className || "").toLowerCase().includes("disabled")) return "disabled";
	return "enabled";
})()`

const clickNextJS = `(() => {
	const btn = document.querySelector(` + "`" + nextControlSel + "`" + `);
	if (!btn) return false;
	btn.click();
	return true;
})()`

// AdvanceToNextLook clicks the gallery forward control. A disabled
// control means the last look has been reached.
func (d *Driver) AdvanceToNextLook(ctx context.Context) (bool, error) {
	var state string
	if err := d.run(ctx, d.cfg.ElementWait, chromedp.Evaluate(nextStateJS, &state)); err != nil {
		return false, fmt.Errorf("%w: inspect next control: %v", runway.ErrNavigation, err)
	}
	switch state {
	case "disabled":
		return false, nil
	case "missing":
		return false, fmt.Errorf("%w: next control not on page", runway.ErrElementNotFound)
	}

	var clicked bool
	err := d.run(ctx, d.cfg.ElementWait,
		chromedp.Evaluate(clickNextJS, &clicked),
		chromedp.Sleep(time.Second),
	)
	if err != nil {
		return false, fmt.Errorf("%w: advance to next look: %v", runway.ErrNavigation, err)
	}
	if !clicked {
		return false, fmt.Errorf("%w: next control vanished before click", runway.ErrElementNotFound)
	}
	return true, nil
}

// Quit closes the tab. The shared allocator stays up for other drivers.
func (d *Driver) Quit(ctx context.Context) error {
	d.cancel()
	return nil
}
