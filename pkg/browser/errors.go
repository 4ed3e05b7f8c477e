package browser

import (
	"errors"
	"fmt"
	"time"
)

// ErrLoggedOut reports that the web UI no longer shows a logged-in state.
// It is recoverable: the serializer holds the queue and triggers a re-login.
var ErrLoggedOut = errors.New("web UI reports logged-out state")

// LaunchError is fatal: the browser binary or Playwright runtime could not
// be started, so the process cannot serve.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch browser: %v", e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a reply never stabilized within the bound.
type TimeoutError struct {
	Wait time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("reply did not stabilize within %s", e.Wait)
}

// UIChangedError reports selector drift: an element this driver depends on
// is missing from the page. It signals that the automation target changed
// shape and the selector configuration (or code) needs an update.
type UIChangedError struct {
	Selector string
}

func (e *UIChangedError) Error() string {
	return fmt.Sprintf("expected page element missing (selector %q), the web UI may have changed", e.Selector)
}
