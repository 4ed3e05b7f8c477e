// Package browser owns the single automated browser instance behind gemweb.
// It launches a persistent Chromium profile through Playwright, navigates to
// the chat UI, and exposes the primitive operations the rest of the system
// is built on: submit a prompt and await the stabilized reply, detect a
// logged-out page, and run the interactive login flow.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/gemweb/pkg/config"
	"github.com/entrhq/gemweb/pkg/session"
)

// loginProbeDelay gives the page time to settle before probing the input
// element; the UI renders a skeleton first.
const loginProbeDelay = 3 * time.Second

// loginPollInterval is the cadence of login checks while an operator
// completes the interactive flow.
const loginPollInterval = 2 * time.Second

// selectorWait bounds individual element lookups during a submission.
const selectorWait = 10 * time.Second

// logoutCheckEvery spaces out logged-out probes during reply polling; the
// probe costs a DOM query, so it is not run on every poll.
const logoutCheckEvery = 10

// RawReply is the text extracted from the web UI's newest response region.
type RawReply struct {
	// Text is the reply rendered as markdown-ish plain text.
	Text string

	// CodeBlocks holds the verbatim contents of fenced code regions, in
	// document order. The bridge uses these for placeholder substitution
	// in tool-call arguments.
	CodeBlocks []string

	// Complete reports whether the stabilization predicate was met (as
	// opposed to a partial read).
	Complete bool
}

// Options configures the driver.
type Options struct {
	TargetURL    string
	Headless     bool
	PollInterval time.Duration
	StablePolls  int
	LoginWait    time.Duration
	Selectors    config.Selectors
}

// Driver drives one automated browser page. All page-touching methods must
// be called from a single goroutine (the serializer's active job); only
// State is safe to call concurrently.
type Driver struct {
	opts   Options
	store  *session.Store
	logger *slog.Logger

	pw      *playwright.Playwright
	browser playwright.BrowserContext
	page    playwright.Page

	// headlessNow is the mode of the current context, which diverges from
	// opts.Headless around the interactive login flow.
	headlessNow bool

	stateMu sync.Mutex
	state   State
}

// NewDriver creates a driver. Start must be called before any other method.
func NewDriver(opts Options, store *session.Store, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		opts:   opts,
		store:  store,
		logger: logger,
		state:  StateUninitialized,
	}
}

// Start launches Playwright and the persistent browser context. It fails
// with *LaunchError when the runtime or browser binary is unavailable.
func (d *Driver) Start(ctx context.Context) error {
	d.setState(StateLaunching)

	if err := d.store.EnsureDirs(); err != nil {
		return &LaunchError{Err: err}
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return &LaunchError{Err: fmt.Errorf("playwright install: %w", err)}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return &LaunchError{Err: fmt.Errorf("playwright run: %w", err)}
	}
	d.pw = pw

	sess, err := d.store.Load()
	if err != nil {
		return &LaunchError{Err: err}
	}
	d.logger.Info("stored session loaded", "valid", sess.Valid, "profile", sess.ProfileDir)

	if err := d.launchContext(d.startHeadless(sess)); err != nil {
		return err
	}
	return d.navigate(ctx)
}

// startHeadless decides the initial launch mode. A stored login keeps the
// configured mode; without one an interactive login is expected, so the
// browser starts headed and skips the relaunch EnsureLoggedIn would
// otherwise do.
func (d *Driver) startHeadless(sess session.Session) bool {
	return d.opts.Headless && sess.Valid
}

// launchContext opens the persistent context for the stored profile and a
// single page. Any previous context is closed first.
func (d *Driver) launchContext(headless bool) error {
	if d.page != nil {
		_ = d.page.Close()
		d.page = nil
	}
	if d.browser != nil {
		_ = d.browser.Close()
		d.browser = nil
	}

	browser, err := d.pw.Chromium.LaunchPersistentContext(
		d.store.ProfileDir(),
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(headless),
			Args: []string{
				"--disable-blink-features=AutomationControlled",
				"--disable-extensions",
			},
			Viewport: &playwright.Size{Width: 1280, Height: 900},
		},
	)
	if err != nil {
		return &LaunchError{Err: fmt.Errorf("launch persistent context: %w", err)}
	}

	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		return &LaunchError{Err: fmt.Errorf("open page: %w", err)}
	}

	d.browser = browser
	d.page = page
	d.headlessNow = headless
	return nil
}

func (d *Driver) navigate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.page.Goto(d.opts.TargetURL); err != nil {
		return fmt.Errorf("failed to open %s: %w", d.opts.TargetURL, err)
	}
	return nil
}

// checkLoggedIn probes the page for the input element. Its presence is the
// logged-in signal; login walls render without it.
func (d *Driver) checkLoggedIn(ctx context.Context) bool {
	select {
	case <-time.After(loginProbeDelay):
	case <-ctx.Done():
		return false
	}
	el, err := d.page.QuerySelector(d.opts.Selectors.InputHost)
	return err == nil && el != nil
}

// EnsureLoggedIn verifies the authenticated state, running the interactive
// login flow when needed. During login the browser is relaunched headed so
// the operator can complete it; on success the session is persisted and the
// browser returns to the configured mode. Returns ErrLoggedOut wrapped in a
// descriptive error when login does not complete within the wait bound.
func (d *Driver) EnsureLoggedIn(ctx context.Context) error {
	if d.checkLoggedIn(ctx) {
		return d.finishLogin(ctx)
	}

	d.setState(StateAwaitingLogin)
	if err := d.store.Invalidate(); err != nil {
		d.logger.Warn("failed to invalidate session", "error", err)
	}

	if d.headlessNow {
		d.logger.Info("login required, relaunching browser in headed mode")
		d.setState(StateLaunching)
		if err := d.launchContext(false); err != nil {
			return err
		}
		if err := d.navigate(ctx); err != nil {
			return err
		}
		d.setState(StateAwaitingLogin)
	} else {
		d.logger.Info("login required, waiting for operator")
	}

	deadline := time.Now().Add(d.opts.LoginWait)
	for time.Now().Before(deadline) {
		if d.checkLoggedIn(ctx) {
			return d.finishLogin(ctx)
		}
		select {
		case <-time.After(loginPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("login not completed within %s: %w", d.opts.LoginWait, ErrLoggedOut)
}

// finishLogin persists the session and returns the browser to its normal
// launch mode.
func (d *Driver) finishLogin(ctx context.Context) error {
	if err := d.store.MarkValid(); err != nil {
		// Login still works this run; only the next start loses the
		// stored-session fast path.
		d.logger.Warn("failed to persist login state", "error", err)
	} else {
		d.logger.Info("login confirmed, session saved")
	}

	if d.opts.Headless && !d.headlessNow {
		d.setState(StateLaunching)
		if err := d.launchContext(true); err != nil {
			return err
		}
		if err := d.navigate(ctx); err != nil {
			return err
		}
	}
	d.setState(StateReady)
	return nil
}

// SubmitAndAwait types the prompt into the chat input, submits it, and polls
// the newest response region until it stabilizes: the content length
// unchanged across the configured number of consecutive polls. It returns
// *TimeoutError when the reply never stabilizes, *UIChangedError when an
// expected element is missing, and ErrLoggedOut when a login wall appears.
func (d *Driver) SubmitAndAwait(ctx context.Context, prompt string, timeout time.Duration) (*RawReply, error) {
	if st := d.State(); st != StateReady {
		return nil, fmt.Errorf("driver not ready (state %s)", st)
	}
	d.setState(StateBusy)

	reply, err := d.submitAndAwait(ctx, prompt, timeout)
	if errors.Is(err, ErrLoggedOut) {
		d.setState(StateAwaitingLogin)
		return nil, err
	}
	d.setState(StateReady)
	return reply, err
}

func (d *Driver) submitAndAwait(ctx context.Context, prompt string, timeout time.Duration) (*RawReply, error) {
	sel := d.opts.Selectors

	host, err := d.page.QuerySelector(sel.InputHost)
	if err != nil || host == nil {
		// The input disappearing entirely means a login wall, not drift.
		return nil, ErrLoggedOut
	}

	if _, err := d.page.WaitForSelector(sel.InputEditor, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(selectorWait.Milliseconds())),
	}); err != nil {
		return nil, &UIChangedError{Selector: sel.InputEditor}
	}

	before, err := d.responseCount()
	if err != nil {
		return nil, err
	}

	if err := d.typePrompt(prompt); err != nil {
		return nil, err
	}
	if err := d.submit(); err != nil {
		return nil, err
	}

	return d.awaitReply(ctx, before, timeout)
}

// responseCount returns how many response containers the page currently has.
func (d *Driver) responseCount() (int, error) {
	nodes, err := d.page.QuerySelectorAll(d.opts.Selectors.ResponseSelector())
	if err != nil {
		return 0, fmt.Errorf("failed to query responses: %w", err)
	}
	return len(nodes), nil
}

// typePrompt clears the editor and inserts the prompt. Insertion goes
// through execCommand so the editor's input handlers fire; Fill bypasses
// them and the UI drops the text.
func (d *Driver) typePrompt(prompt string) error {
	sel := d.opts.Selectors

	if err := d.page.Click(sel.InputEditor); err != nil {
		return &UIChangedError{Selector: sel.InputEditor}
	}
	if err := d.page.Keyboard().Press("ControlOrMeta+A"); err != nil {
		return fmt.Errorf("failed to select editor content: %w", err)
	}
	if err := d.page.Keyboard().Press("Backspace"); err != nil {
		return fmt.Errorf("failed to clear editor: %w", err)
	}

	script := fmt.Sprintf(`(text) => {
		const editor = document.querySelector(%q);
		if (!editor) return false;
		editor.focus();
		document.execCommand('insertText', false, text);
		return true;
	}`, sel.InputEditor)

	ok, err := d.page.Evaluate(script, prompt)
	if err != nil {
		return fmt.Errorf("failed to insert prompt: %w", err)
	}
	if inserted, _ := ok.(bool); !inserted {
		return &UIChangedError{Selector: sel.InputEditor}
	}
	return nil
}

// submit clicks the send button, falling back to Enter when the button
// cannot be found in time.
func (d *Driver) submit() error {
	sel := d.opts.Selectors

	_, err := d.page.WaitForSelector(sel.SendButton, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(3000),
	})
	if err == nil {
		if err := d.page.Click(sel.SendButton); err == nil {
			return nil
		}
	}
	if err := d.page.Keyboard().Press("Enter"); err != nil {
		return fmt.Errorf("failed to submit prompt: %w", err)
	}
	return nil
}

// awaitReply polls until a new response container appears and its content
// stops changing for StablePolls consecutive polls, then extracts it.
func (d *Driver) awaitReply(ctx context.Context, before int, timeout time.Duration) (*RawReply, error) {
	sel := d.opts.Selectors
	deadline := time.Now().Add(timeout)

	var (
		lastLen int
		stable  int
		polls   int
	)

	for time.Now().Before(deadline) {
		select {
		case <-time.After(d.opts.PollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		polls++

		nodes, err := d.page.QuerySelectorAll(sel.ResponseSelector())
		if err != nil {
			continue
		}

		if len(nodes) > before {
			newest := nodes[len(nodes)-1]
			content, err := newest.InnerHTML()
			if err != nil || content == "" {
				continue
			}
			if len(content) == lastLen {
				stable++
				if stable >= d.opts.StablePolls {
					reply, err := ParseReplyHTML(content)
					if err != nil {
						return nil, fmt.Errorf("failed to extract reply: %w", err)
					}
					reply.Complete = true
					return reply, nil
				}
			} else {
				lastLen = len(content)
				stable = 0
			}
			continue
		}

		// No reply yet. Periodically make sure a login wall has not
		// replaced the conversation.
		if polls%logoutCheckEvery == 0 {
			if el, err := d.page.QuerySelector(sel.InputHost); err == nil && el == nil {
				return nil, ErrLoggedOut
			}
		}
	}

	return nil, &TimeoutError{Wait: timeout}
}

// StartNewChat clicks the new-chat control, dropping the UI's accumulated
// conversation context. A missing button is logged and ignored: the worst
// case is a stale context, which the flattened prompt tolerates.
func (d *Driver) StartNewChat(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sel := d.opts.Selectors

	btn, err := d.page.QuerySelector(sel.NewChatButton)
	if err != nil || btn == nil {
		d.logger.Debug("new-chat button not found, continuing in current conversation",
			"selector", sel.NewChatButton)
		return nil
	}
	if err := btn.Click(); err != nil {
		return fmt.Errorf("failed to start new chat: %w", err)
	}

	if _, err := d.page.WaitForSelector(sel.InputHost, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(selectorWait.Milliseconds())),
	}); err != nil {
		return &UIChangedError{Selector: sel.InputHost}
	}
	return nil
}

// Close shuts down the page, the browser context, and Playwright.
func (d *Driver) Close() error {
	if st := d.State(); st == StateClosed || st == StateUninitialized {
		return nil
	}
	d.setState(StateClosed)

	if d.page != nil {
		_ = d.page.Close()
	}
	if d.browser != nil {
		_ = d.browser.Close()
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
	}
	return nil
}
