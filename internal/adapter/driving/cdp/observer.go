// Package cdp is a driving adapter that watches a running Chrome through the
// DevTools protocol and feeds channel-view requests to the capture service.
// It only listens; requests are never paused, modified or blocked.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/ericfisherdev/mmpresence/internal/application"
	"github.com/ericfisherdev/mmpresence/internal/domain/model"
	"github.com/ericfisherdev/mmpresence/internal/domain/port/driven"
)

// DefaultRescanInterval is how often the observer looks for new tabs.
const DefaultRescanInterval = 30 * time.Second

// Observer attaches to every page target of a remote Chrome and runs a
// capture attempt for each matching outgoing request.
type Observer struct {
	devtoolsURL string
	rescan      time.Duration
	capture     *application.CaptureService
	logger      *slog.Logger

	dial        func(base context.Context) (context.Context, context.CancelFunc)
	scanTargets func(ctx, browserCtx context.Context) error

	mu       sync.Mutex
	tabs     map[target.ID]*tab
	stopping bool
	inflight sync.WaitGroup
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	url    string
}

// NewObserver creates an Observer for the DevTools endpoint at devtoolsURL
// (either ws://host:port/devtools/browser/<id> or http://host:port).
func NewObserver(devtoolsURL string, rescan time.Duration, capture *application.CaptureService, logger *slog.Logger) *Observer {
	if rescan <= 0 {
		rescan = DefaultRescanInterval
	}
	o := &Observer{
		devtoolsURL: devtoolsURL,
		rescan:      rescan,
		capture:     capture,
		logger:      logger,
		tabs:        make(map[target.ID]*tab),
	}
	o.dial = o.dialBrowser
	o.scanTargets = o.scan
	return o
}

// Run observes the browser's tabs until ctx is canceled. A browser that is
// not reachable yet, or that goes away, is redialed on every rescan.
func (o *Observer) Run(ctx context.Context) {
	// chromedp closes an attached target when its context is canceled, so the
	// browser contexts must outlive ctx until every tab has been detached.
	base, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()

	var (
		browserCtx context.Context
		disconnect context.CancelFunc
		failures   int
	)
	defer func() {
		if disconnect != nil {
			disconnect()
		}
	}()

	poll := func() {
		if browserCtx == nil {
			browserCtx, disconnect = o.dial(base)
		}
		if err := o.scanTargets(ctx, browserCtx); err != nil {
			failures++
			o.logger.Warn("cdp target scan failed, redialing on next rescan",
				"devtools_url", o.devtoolsURL,
				"failures", failures,
				"error", err,
			)
			o.releaseAll()
			disconnect()
			browserCtx, disconnect = nil, nil
			return
		}
		if failures > 0 {
			o.logger.Info("cdp observer reconnected", "after_failures", failures)
			failures = 0
		}
	}

	o.logger.Info("cdp observer started", "devtools_url", o.devtoolsURL, "rescan", o.rescan)
	poll()

	ticker := time.NewTicker(o.rescan)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.drain()
			o.logger.Info("cdp observer stopped")
			return
		case <-ticker.C:
			poll()
		}
	}
}

func (o *Observer) dialBrowser(base context.Context) (context.Context, context.CancelFunc) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(base, o.devtoolsURL)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}
}

// drain stops new capture attempts, waits for running ones, then detaches
// from every tab.
func (o *Observer) drain() {
	o.mu.Lock()
	o.stopping = true
	o.mu.Unlock()

	o.inflight.Wait()
	o.releaseAll()
}

// spawn runs fn on its own goroutine unless the observer is draining.
func (o *Observer) spawn(fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopping {
		return false
	}
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		fn()
	}()
	return true
}

// scan attaches to page targets not seen before and forgets targets that
// have gone away.
func (o *Observer) scan(ctx, browserCtx context.Context) error {
	infos, err := chromedp.Targets(browserCtx)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}

	seen := make(map[target.ID]bool, len(infos))
	for _, info := range infos {
		if !isPageTarget(info) {
			continue
		}
		seen[info.TargetID] = true

		o.mu.Lock()
		_, known := o.tabs[info.TargetID]
		o.mu.Unlock()
		if known {
			continue
		}

		if err := o.attach(ctx, browserCtx, info); err != nil {
			o.logger.Debug("attach to tab failed", "target_id", string(info.TargetID), "error", err)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for id, t := range o.tabs {
		if !seen[id] {
			release(t)
			delete(o.tabs, id)
			o.logger.Debug("tab gone", "target_id", string(id))
		}
	}
	return nil
}

func (o *Observer) attach(ctx, browserCtx context.Context, info *target.Info) error {
	tabCtx, cancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(info.TargetID))
	t := &tab{ctx: tabCtx, cancel: cancel, url: info.URL}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		e, ok := ev.(*network.EventRequestWillBeSent)
		if !ok {
			return
		}
		req := toObservedRequest(e)
		if !o.capture.Matches(req) {
			return
		}

		// Listeners run on chromedp's event loop and must not block it.
		o.spawn(func() { o.observe(ctx, tabCtx, req) })
	})

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		cancel()
		return fmt.Errorf("enable network domain: %w", err)
	}

	o.mu.Lock()
	o.tabs[info.TargetID] = t
	o.mu.Unlock()

	o.logger.Debug("attached to tab", "target_id", string(info.TargetID), "url", info.URL)
	return nil
}

func (o *Observer) observe(ctx, tabCtx context.Context, req model.ObservedRequest) {
	source := driven.CookieSourceFunc(func(_ context.Context, _ string) ([]model.Cookie, error) {
		var cookies []*network.Cookie
		err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().WithUrls([]string{req.URL}).Do(ctx)
			return err
		}))
		if err != nil {
			return nil, fmt.Errorf("get cookies: %w", err)
		}
		return toCookies(cookies), nil
	})

	o.captureDone(req, o.capture.Observe(ctx, req, source))
}

// captureDone handles the result of a capture attempt. Failures are already
// logged by the service and the next channel view retries, so only requests
// the service refused outright are noted here.
func (o *Observer) captureDone(req model.ObservedRequest, err error) {
	if errors.Is(err, application.ErrNotChannelView) {
		o.logger.Debug("request dropped by capture", "url", req.URL, "method", req.Method)
	}
}

func (o *Observer) releaseAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, t := range o.tabs {
		release(t)
		delete(o.tabs, id)
	}
}

// release detaches from a tab without closing it, then frees its context.
func release(t *tab) {
	c := chromedp.FromContext(t.ctx)
	if c != nil && c.Target != nil && c.Browser != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if id := c.Target.SessionID; id != "" {
			_ = target.DetachFromTarget().WithSessionID(id).Do(cdp.WithExecutor(ctx, c.Browser))
		}
		cancel()
		c.Target = nil
	}
	t.cancel()
}

// isPageTarget reports whether info is a regular browser tab.
func isPageTarget(info *target.Info) bool {
	if info == nil || info.Type != "page" {
		return false
	}
	return !strings.HasPrefix(info.URL, "devtools://") && !strings.HasPrefix(info.URL, "chrome://")
}

func toObservedRequest(e *network.EventRequestWillBeSent) model.ObservedRequest {
	if e == nil || e.Request == nil {
		return model.ObservedRequest{}
	}
	return model.ObservedRequest{URL: e.Request.URL, Method: e.Request.Method}
}

func toCookies(in []*network.Cookie) []model.Cookie {
	out := make([]model.Cookie, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		out = append(out, model.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}
	return out
}
