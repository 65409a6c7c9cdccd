package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	appLog "sessioncal/internal/log"
)

// Default viewport for calendar snapshots.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 960
	DefaultTimeoutSec = 30
)

// ReadySelector matches the root element of /calendar once it has rendered.
const ReadySelector = `[data-ready="true"]`

// Options defines parameters for a Chromium-based calendar snapshot.
type Options struct {
	// BaseURL of a running server, e.g. "http://127.0.0.1:8080".
	BaseURL string

	// Mode, Anchor (YYYY-MM-DD) and Search select what the page shows.
	// Empty values use the server defaults.
	Mode   string
	Anchor string
	Search string

	// OutputPath is where the PNG is written.
	OutputPath string

	// Username and Password are sent as HTTP basic auth when both are set.
	Username string
	Password string

	// Width and Height are the viewport in pixels. Zero uses the defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture. Zero uses DefaultTimeoutSec.
	Timeout time.Duration
}

func (o *Options) normalize() error {
	if o.BaseURL == "" {
		return errors.New("capture: BaseURL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeoutSec * time.Second
	}
	return nil
}

// CalendarURL builds the /calendar URL for o.
func CalendarURL(o Options) (string, error) {
	base := o.BaseURL
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("capture: bad base URL: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/calendar"
	q := url.Values{}
	if o.Mode != "" {
		q.Set("mode", o.Mode)
	}
	if o.Anchor != "" {
		q.Set("anchor", o.Anchor)
	}
	if o.Search != "" {
		q.Set("q", o.Search)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func authHeader(user, pass string) network.Headers {
	if user == "" || pass == "" {
		return nil
	}
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return network.Headers{"Authorization": "Basic " + token}
}

// CalendarPNG launches a headless Chromium via chromedp, opens the
// calendar page, waits for ReadySelector and writes a full-page PNG.
func CalendarPNG(parentCtx context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}
	target, err := CalendarURL(opts)
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height))}
	if h := authHeader(opts.Username, opts.Password); h != nil {
		tasks = append(tasks, network.Enable(), network.SetExtraHTTPHeaders(h))
	}
	tasks = append(tasks,
		chromedp.Navigate(target),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Let late paints settle.
		chromedp.Sleep(300*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)

	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("capture: create output dir: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("calendar snapshot written", "path", opts.OutputPath, "bytes", len(png), "took", time.Since(start).String())
	return nil
}
