package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/listing-scraper/internal/scraper"
)

// Page adapts a playwright page to scraper.PageProvider.
type Page struct {
	page    playwright.Page
	timeout time.Duration
	logger  *slog.Logger
}

// providerError marks errors from a closed page or browser as unusable so
// the loader stops instead of degrading.
func providerError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("%w: %w", scraper.ErrProviderUnusable, err)
	}
	return err
}

func (p *Page) Navigate(url string) error {
	if p.page.IsClosed() {
		return scraper.ErrProviderUnusable
	}

	p.logger.Info("navigating", "url", url)
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(p.timeout.Milliseconds())),
	})
	if err != nil {
		return providerError(fmt.Errorf("failed to navigate to %s: %w", url, err))
	}
	return nil
}

func (p *Page) FindAll(selector string) ([]scraper.Element, error) {
	if p.page.IsClosed() {
		return nil, scraper.ErrProviderUnusable
	}

	loc := p.page.Locator(selector)
	count, err := loc.Count()
	if err != nil {
		return nil, providerError(fmt.Errorf("failed to count %q: %w", selector, err))
	}

	elements := make([]scraper.Element, count)
	for i := 0; i < count; i++ {
		elements[i] = element{loc: loc.Nth(i)}
	}
	return elements, nil
}

func (p *Page) InvokeControl(selector string) error {
	if p.page.IsClosed() {
		return scraper.ErrProviderUnusable
	}

	err := p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(p.timeout.Milliseconds())),
	})
	if err != nil {
		return providerError(fmt.Errorf("failed to click %q: %w", selector, err))
	}
	return nil
}

func (p *Page) Snapshot() (string, error) {
	if p.page.IsClosed() {
		return "", scraper.ErrProviderUnusable
	}

	html, err := p.page.Content()
	if err != nil {
		return "", providerError(fmt.Errorf("failed to read page content: %w", err))
	}
	return html, nil
}

func (p *Page) Close() error {
	if p.page.IsClosed() {
		return nil
	}
	return p.page.Close()
}

type element struct {
	loc playwright.Locator
}

func (e element) Visible() (bool, error) {
	visible, err := e.loc.IsVisible()
	if err != nil {
		return false, providerError(err)
	}
	return visible, nil
}
