package browser

import "time"

// Default values for fetches
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxLength      = 32 * 1024
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultMaxPages       = 4
	DefaultWaitUntil      = "domcontentloaded"
)

// Viewport represents browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Options configures a Fetcher. Zero fields take the defaults above.
type Options struct {
	// Timeout bounds navigation when the caller's context has no earlier deadline.
	Timeout time.Duration

	// MaxLength bounds the extracted text, in bytes.
	MaxLength int

	// MaxPages bounds concurrently open pages.
	MaxPages int

	// WaitUntil is the Playwright load state navigation waits for:
	// "load", "domcontentloaded" or "networkidle".
	WaitUntil string

	// Headed shows the browser window. Useful when debugging.
	Headed bool

	Viewport *Viewport
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxLength <= 0 {
		o.MaxLength = DefaultMaxLength
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.WaitUntil == "" {
		o.WaitUntil = DefaultWaitUntil
	}
	if o.Viewport == nil {
		o.Viewport = &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	return o
}
