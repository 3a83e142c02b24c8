// Package browser fetches pages through a headless Chromium driven by
// Playwright, for sites whose content only appears after scripts run.
//
// A Fetcher starts Playwright lazily on the first fetch and keeps one
// browser for the life of the process. Every fetch gets its own browser
// context, so cookies and storage never leak between threads. The number of
// pages open at once is bounded.
//
// # Example Usage
//
//	f := browser.NewFetcher(browser.Options{MaxPages: 2})
//	defer f.Close()
//
//	page, err := f.Fetch(ctx, "https://example.com")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(page.Text)
//
// The fetcher satisfies websearch.Fetcher and backs fetch_page when the
// capabilities section selects the browser backend.
package browser
