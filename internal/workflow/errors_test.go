package workflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rejection struct{ msg string }

func (r rejection) Error() string       { return "rejected: " + r.msg }
func (r rejection) UserMessage() string { return r.msg }

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"permission", &PositionError{Mode: ModeAccurate, Kind: ErrPermissionDenied, Err: errDenied}, "Location access was denied. Allow location access and try again."},
		{"timeout", &PositionError{Mode: ModeFast, Kind: ErrTimeout}, "Finding your location took too long. Please try again."},
		{"daily limit", fmt.Errorf("check in: %w", attendance.ErrDailyLimitReached), "You have already checked in today."},
		{"busy", ErrWorkflowBusy, "Please wait for the current attendance action to finish."},
		{"backend message", fmt.Errorf("request failed: %w", rejection{"Company suspended"}), "Company suspended"},
		{"deadline", context.DeadlineExceeded, "The server took too long to respond. Please try again."},
		{"unknown", errBoom, "Something went wrong. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestPositionError(t *testing.T) {
	err := &PositionError{Mode: ModeFast, Kind: ErrPermissionDenied, Err: errDenied}
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "fast lookup")

	bare := &PositionError{Mode: ModeAccurate, Kind: ErrPositionUnavailable}
	assert.Equal(t, "accurate lookup: position unavailable", bare.Error())
}

func TestAuxiliaryDispatcher(t *testing.T) {
	t.Run("sends after the caller returns", func(t *testing.T) {
		sink := &recordingSink{}
		d := NewAuxiliaryDispatcher(sink, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		d.Dispatch(ctx, AuxiliaryEvent{AttendanceID: "att-1", Kind: attendance.DailyLogCheckOut})
		cancel()
		d.Wait()

		assert.Equal(t, []string{"check_out"}, sink.kinds())
	})

	t.Run("nil dispatcher is a no-op", func(t *testing.T) {
		var d *AuxiliaryDispatcher
		d.Dispatch(context.Background(), AuxiliaryEvent{AttendanceID: "att-1"})
		d.Wait()
	})

	t.Run("default timeout", func(t *testing.T) {
		d := NewAuxiliaryDispatcher(&recordingSink{}, 0)
		assert.Equal(t, 5*time.Second, d.timeout)
	})
}

func TestTerminalConfirmer(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			var out bytes.Buffer
			c := NewTerminalConfirmer(strings.NewReader(tt.input), &out, false)

			prompt := PromptRemoteWork
			prompt.DistanceMeters = 5000
			ok, err := c.Confirm(context.Background(), prompt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Contains(t, out.String(), PromptRemoteWork.Title)
			assert.Contains(t, out.String(), "5000 m")
		})
	}

	t.Run("assume yes", func(t *testing.T) {
		c := NewTerminalConfirmer(strings.NewReader(""), io.Discard, true)
		ok, err := c.Confirm(context.Background(), PromptCheckOut)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		r, w := io.Pipe()
		defer w.Close()
		c := NewTerminalConfirmer(r, io.Discard, false)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Confirm(ctx, PromptCheckOut)
		assert.ErrorIs(t, err, context.Canceled)

		// The line typed after cancellation answers the next prompt
		go func() { _, _ = io.WriteString(w, "y\n") }()
		ok, err := c.Confirm(context.Background(), PromptCheckOut)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("piped answers are consumed one per prompt", func(t *testing.T) {
		c := NewTerminalConfirmer(strings.NewReader("n\ny\n"), io.Discard, false)

		first, err := c.Confirm(context.Background(), PromptRemoteWork)
		require.NoError(t, err)
		second, err := c.Confirm(context.Background(), PromptCheckOut)
		require.NoError(t, err)
		third, err := c.Confirm(context.Background(), PromptCheckOut)
		require.NoError(t, err)

		assert.False(t, first)
		assert.True(t, second)
		assert.False(t, third, "end of input declines")
	})
}
