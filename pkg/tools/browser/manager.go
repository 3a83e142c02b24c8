package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/switchboard/pkg/tools/websearch"
)

// ErrClosed is returned by Fetch after Close.
var ErrClosed = errors.New("browser fetcher closed")

// Fetcher renders pages in headless Chromium and extracts their text.
type Fetcher struct {
	opts  Options
	slots chan struct{}

	mu          sync.Mutex
	playwright  *playwright.Playwright
	browser     playwright.Browser
	initialized bool
	closed      bool
}

var _ websearch.Fetcher = (*Fetcher)(nil)

// NewFetcher creates a fetcher. Playwright is not started until the first Fetch.
func NewFetcher(opts Options) *Fetcher {
	opts = opts.withDefaults()
	return &Fetcher{
		opts:  opts,
		slots: make(chan struct{}, opts.MaxPages),
	}
}

// Initialize installs and starts Playwright and launches the browser.
// Calling it again is a no-op.
func (f *Fetcher) Initialize() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initLocked()
}

func (f *Fetcher) initLocked() error {
	if f.closed {
		return ErrClosed
	}
	if f.initialized {
		return nil
	}

	// Discard driver output so it does not interleave with the REPL
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	headless := !f.opts.Headed
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &headless,
	})
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	f.playwright = pw
	f.browser = browser
	f.initialized = true
	return nil
}

func (f *Fetcher) acquire(ctx context.Context) (func(), error) {
	select {
	case f.slots <- struct{}{}:
		return func() { <-f.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// navigationTimeout is the configured timeout cut to the context deadline,
// in the milliseconds Playwright expects.
func (f *Fetcher) navigationTimeout(ctx context.Context) float64 {
	timeout := f.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}
	return float64(timeout.Milliseconds())
}

// Fetch opens url in a fresh browser context and returns the rendered text.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*websearch.Page, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("fetch url is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	err := f.initLocked()
	browser := f.browser
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	release, err := f.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  f.opts.Viewport.Width,
			Height: f.opts.Viewport.Height,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	timeout := f.navigationTimeout(ctx)
	page.SetDefaultTimeout(timeout)

	waitUntil := playwright.WaitUntilState(f.opts.WaitUntil)
	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: &waitUntil,
		Timeout:   &timeout,
	}); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("content extraction failed: %w", err)
	}
	return websearch.ExtractText(content, f.opts.MaxLength)
}

// Close shuts the browser down and stops Playwright. Later fetches fail
// with ErrClosed.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	if !f.initialized {
		return nil
	}

	var errs []error
	if err := f.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := f.playwright.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}
	f.initialized = false
	return errors.Join(errs...)
}
