package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"outreach/internal/pacing"
	"outreach/pkg/logx"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Selectors are CSS selectors for the pages the session touches.
type Selectors struct {
	MessageButton []string
	ComposeBox    string
	SendButton    string
	Email         string
	Password      string
	Submit        string
}

type Options struct {
	Headless    bool
	ExecPath    string
	SessionFile string
	LoginURL    string
	FeedURL     string
	// Timeout bounds each page operation.
	Timeout   time.Duration
	Selectors Selectors
	Email     string
	Password  string
}

// Page is the subset of browser control the sender needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	WaitVisible(ctx context.Context, sel string) error
	Click(ctx context.Context, sel string) error
	// Type sends text as key events to the focused element.
	Type(ctx context.Context, text string) error
}

// Provider obtains authenticated sessions.
type Provider struct {
	opts Options
	log  logx.Logger
}

func NewProvider(opts Options, log logx.Logger) *Provider {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Provider{opts: opts, log: log.With(logx.String("comp", "browser"))}
}

// Authenticate starts Chrome and returns a logged-in session. It first tries
// the saved session state and falls back to the credential login. Any failure
// wraps ErrAuthentication and leaves no browser running.
func (p *Provider) Authenticate(ctx context.Context) (*Session, error) {
	s, err := p.start()
	if err != nil {
		return nil, fmt.Errorf("%w: start browser: %w", ErrAuthentication, err)
	}

	if ok := p.restore(ctx, s); ok {
		p.log.Info("session restored", logx.String("file", p.opts.SessionFile))
		return s, nil
	}

	if strings.TrimSpace(p.opts.Email) == "" || p.opts.Password == "" {
		_ = s.Close()
		return nil, fmt.Errorf("%w: no valid saved session and no credentials", ErrAuthentication)
	}
	if err := p.login(ctx, s); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	p.log.Info("logged in")

	if err := p.save(ctx, s); err != nil {
		p.log.Warn("could not save session state", logx.Err(err))
	}
	return s, nil
}

func (p *Provider) start() (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.opts.Headless),
		chromedp.Flag("start-maximized", true),
	)
	if p.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(p.opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	bctx, bcancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		p.log.Debug("chromedp", logx.String("msg", fmt.Sprintf(format, args...)))
	}))
	s := &Session{ctx: bctx, cancel: bcancel, allocCancel: allocCancel, timeout: p.opts.Timeout, log: p.log}
	// First Run launches the browser.
	if err := chromedp.Run(bctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (p *Provider) restore(ctx context.Context, s *Session) bool {
	if p.opts.SessionFile == "" {
		return false
	}
	st, err := LoadState(p.opts.SessionFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.log.Warn("ignoring session state", logx.Err(err))
		}
		return false
	}
	cookies := st.Live(time.Now())
	if len(cookies) == 0 {
		return false
	}
	if err := s.setCookies(ctx, cookies); err != nil {
		p.log.Warn("could not apply saved cookies", logx.Err(err))
		return false
	}
	if err := s.Navigate(ctx, p.opts.FeedURL); err != nil {
		return false
	}
	if err := pacing.Sleep(ctx, 3*time.Second); err != nil {
		return false
	}
	loc, err := s.Location(ctx)
	return err == nil && onFeed(loc, p.opts.FeedURL)
}

func (p *Provider) login(ctx context.Context, s *Session) error {
	sel := p.opts.Selectors
	if err := s.Navigate(ctx, p.opts.LoginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := s.WaitVisible(ctx, sel.Email); err != nil {
		return fmt.Errorf("login form: %w", err)
	}
	err := s.run(ctx,
		chromedp.SendKeys(sel.Email, p.opts.Email, chromedp.ByQuery),
		chromedp.SendKeys(sel.Password, p.opts.Password, chromedp.ByQuery),
		chromedp.Click(sel.Submit, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	// A checkpoint or captcha keeps us off the feed until the deadline.
	deadline := time.Now().Add(2 * p.opts.Timeout)
	for time.Now().Before(deadline) {
		loc, err := s.Location(ctx)
		if err == nil && onFeed(loc, p.opts.FeedURL) {
			return nil
		}
		if err := pacing.Sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
	return errors.New("timed out waiting for the feed after login")
}

func (p *Provider) save(ctx context.Context, s *Session) error {
	if p.opts.SessionFile == "" {
		return nil
	}
	cookies, err := s.cookies(ctx)
	if err != nil {
		return err
	}
	return SaveState(p.opts.SessionFile, State{SavedAt: time.Now(), Cookies: cookies})
}

// Session is a running, authenticated browser. It implements Page.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	log         logx.Logger

	once   sync.Once
	closed atomic.Bool
}

// Close stops the browser. Only the first call has any effect.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.allocCancel()
		s.log.Info("browser closed")
	})
	return nil
}

// run executes actions on the browser bounded by the session timeout and by
// the caller's ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	opCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	var page string
	err := s.run(ctx, chromedp.OuterHTML("html", &page, chromedp.ByQuery))
	return page, err
}

func (s *Session) WaitVisible(ctx context.Context, sel string) error {
	return s.run(ctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func (s *Session) Click(ctx context.Context, sel string) error {
	return s.run(ctx, chromedp.Click(sel, chromedp.ByQuery))
}

func (s *Session) Type(ctx context.Context, text string) error {
	return s.run(ctx, chromedp.KeyEvent(text))
}

func (s *Session) cookies(ctx context.Context) ([]Cookie, error) {
	var out []Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cs, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cs {
			ck := Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path, Secure: c.Secure, HTTPOnly: c.HTTPOnly}
			if !c.Session && c.Expires > 0 {
				ck.Expires = time.Unix(0, int64(c.Expires*float64(time.Second)))
			}
			out = append(out, ck)
		}
		return nil
	}))
	return out, err
}

func (s *Session) setCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		cp := &network.CookieParam{
			Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path,
			Secure: c.Secure, HTTPOnly: c.HTTPOnly,
		}
		if !c.Expires.IsZero() {
			exp := cdp.TimeSinceEpoch(c.Expires)
			cp.Expires = &exp
		}
		params = append(params, cp)
	}
	return s.run(ctx, network.SetCookies(params))
}
