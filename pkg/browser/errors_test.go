package browser

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLaunchError_Unwrap(t *testing.T) {
	cause := errors.New("no chromium binary")
	err := &LaunchError{Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "no chromium binary")
}

func TestErrLoggedOut_SurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("submit failed: %w", ErrLoggedOut)
	assert.ErrorIs(t, wrapped, ErrLoggedOut)
}

func TestTimeoutError_Message(t *testing.T) {
	err := &TimeoutError{Wait: 90 * time.Second}
	assert.Contains(t, err.Error(), "1m30s")
}

func TestUIChangedError_Message(t *testing.T) {
	err := &UIChangedError{Selector: "rich-textarea .ql-editor"}
	assert.Contains(t, err.Error(), "rich-textarea .ql-editor")
}
