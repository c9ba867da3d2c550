package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ListingWaitTimeout bounds how long a listing page may take to render its
// dynamic content before the page is treated as timed out.
var ListingWaitTimeout = 5 * time.Second

// ErrPageTimeout reports that a page navigated but never became stable
// within ListingWaitTimeout. Callers skip the page and move on.
var ErrPageTimeout = errors.New("page render timed out")

// Interface runs a callback with a rod page loaded at a given URL, or
// returns the rendered document HTML directly. Implementations reuse a
// single browser process; acquire with Headless, release with Close.
type Interface interface {
	WithPage(ctx context.Context, url string, fn func(*rod.Page) error) error
	// PageHTML navigates to url, waits for the page to be stable, and
	// returns the rendered document. A render that never settles yields an
	// error wrapping ErrPageTimeout.
	PageHTML(ctx context.Context, url string) (string, error)

	io.Closer
}

// headlessBrowser manages a single rod browser instance. A channel of
// capacity 1 serializes access: callers receive the browser, use it, then
// send it back so only one page load runs at a time. A headless session is
// not safe to share across concurrent callers.
type headlessBrowser struct {
	initOnce sync.Once
	initErr  error
	ch       chan *rod.Browser
}

// Headless returns a browser session that lazily launches one headless
// chrome process and reuses it for every page load until Close.
func Headless() Interface {
	h := &headlessBrowser{
		ch: make(chan *rod.Browser, 1),
	}
	h.initOnce.Do(func() {
		u, err := launcher.New().Logger(newLauncherLogger()).Leakless(false).Launch()
		if err != nil {
			h.initErr = fmt.Errorf("launch browser: %w", err)
			close(h.ch)
			return
		}
		b := rod.New().ControlURL(u)
		if err := b.Connect(); err != nil {
			h.initErr = fmt.Errorf("connect to browser: %w", err)
			close(h.ch)
			return
		}
		h.ch <- b
	})
	return h
}

// Close releases the browser process. Call exactly once, after all listing
// pages are processed.
func (h *headlessBrowser) Close() error {
	b, ok := <-h.ch
	if !ok {
		return h.initErr
	}
	return b.Close()
}

// WithPage receives the shared browser from the channel, creates a page at
// url, runs fn, then sends the browser back. The page is closed when fn
// returns.
func (h *headlessBrowser) WithPage(ctx context.Context, url string, fn func(page *rod.Page) error) error {
	if h.initErr != nil {
		return h.initErr
	}
	b, ok := <-h.ch
	if !ok {
		return h.initErr
	}
	defer func() { h.ch <- b }()

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer page.MustClose()

	page = page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := rod.Try(func() {
		page.Timeout(ListingWaitTimeout).MustWaitStable()
	}); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPageTimeout, url, err)
	}

	return fn(page)
}

func (h *headlessBrowser) PageHTML(ctx context.Context, url string) (string, error) {
	var html string
	err := h.WithPage(ctx, url, func(page *rod.Page) error {
		var err error
		html, err = page.HTML()
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		return nil
	})
	return html, err
}

// launcherLogger is an io.Writer that forwards launcher output (e.g.
// download progress) to slog at debug level.
type launcherLogger struct {
	buf []byte
}

func (w *launcherLogger) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
		if line != "" {
			slog.Debug("rod launcher", "message", line)
		}
	}
	return len(p), nil
}

func newLauncherLogger() io.Writer {
	return &launcherLogger{}
}
