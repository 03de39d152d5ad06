package crawler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"sjsage522/listingwatcher/helpers"
	"sjsage522/listingwatcher/logger"
)

// BrowserFetcher renders pages in a shared headless Chrome instance
type BrowserFetcher struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
}

// NewBrowserFetcher starts a browser allocator. Chrome itself is launched
// lazily on the first fetch.
func NewBrowserFetcher(userAgent string, timeout time.Duration) *BrowserFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("lang", "nl-NL"),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &BrowserFetcher{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  timeout,
	}
}

// Fetch implements Fetcher. The status is taken from the first document
// response the browser receives.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (*helpers.Response, error) {
	log := logger.ForCrawler(url)

	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var (
		mu          sync.Mutex
		status      int64
		contentType string
	)
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if status == 0 {
			status = e.Response.Status
			contentType = e.Response.MimeType
		}
	})

	start := time.Now()
	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Join(ctxErr, err)
		}
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	if status == 0 {
		status = 200
	}

	log.Debug().
		Int64("status", status).
		Int("bytes", len(html)).
		Dur("elapsed", time.Since(start)).
		Msg("Browser fetch completed")

	return &helpers.Response{
		Status:      int(status),
		ContentType: contentType,
		Body:        html,
		FinalURL:    url,
	}, nil
}

// Close shuts the browser down
func (b *BrowserFetcher) Close() {
	b.cancel()
}
