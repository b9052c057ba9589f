package contenthub

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/smtindex/smtindex/pkg/sources"
)

// Renderer returns the HTML of a page after client-side scripts have run.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// BrowserRenderer renders pages in a headless Chromium driven over the
// DevTools protocol. A browser is launched per call.
type BrowserRenderer struct {
	// Bin is the browser binary; empty lets the launcher find or download one.
	Bin string
	// Settle is how long the DOM must stay unchanged before it is read.
	Settle time.Duration
	// Log receives non-fatal rendering problems; nil discards them.
	Log sources.Logger
}

func (r BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	l := launcher.New().Headless(true)
	if r.Bin != "" {
		l = l.Bin(r.Bin)
	}
	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return "", fmt.Errorf("launching browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connecting to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("loading %s: %w", url, err)
	}

	settle := r.Settle
	if settle <= 0 {
		settle = 2 * time.Second
	}
	if err := settled(ctx, page.WaitStable(settle), url, r.Log); err != nil {
		return "", err
	}

	return page.HTML()
}

// settled turns a WaitStable error into a failure only when ctx is done. A
// page that keeps mutating is still read as it is.
func settled(ctx context.Context, err error, url string, log sources.Logger) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("waiting for %s to settle: %w", url, ctx.Err())
	}
	if log == nil {
		log = sources.NopLogger{}
	}
	log.Debugf("%s did not settle, reading it anyway: %v", url, err)
	return nil
}
