package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
)

// AuxiliarySink receives side records that are not part of attendance correctness.
type AuxiliarySink interface {
	CreateDailyLog(ctx context.Context, req attendance.DailyLogRequest) (attendance.DailyLogResponse, error)
}

// AuxiliaryEvent links a primary mutation to the user's daily log.
type AuxiliaryEvent struct {
	AttendanceID string
	Kind         attendance.DailyLogKind
	TaskID       *string
	Note         *string
}

// AuxiliaryDispatcher sends auxiliary events in the background after a primary
// mutation has succeeded. Failures are logged and otherwise ignored.
type AuxiliaryDispatcher struct {
	sink    AuxiliarySink
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAuxiliaryDispatcher(sink AuxiliarySink, timeout time.Duration) *AuxiliaryDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuxiliaryDispatcher{sink: sink, timeout: timeout}
}

// Dispatch returns immediately. The send outlives ctx's cancellation but not the timeout.
func (d *AuxiliaryDispatcher) Dispatch(ctx context.Context, ev AuxiliaryEvent) {
	if d == nil || d.sink == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		_, err := d.sink.CreateDailyLog(sendCtx, attendance.DailyLogRequest{
			AttendanceID: ev.AttendanceID,
			Kind:         string(ev.Kind),
			TaskID:       ev.TaskID,
			Note:         ev.Note,
		})
		if err != nil {
			slog.WarnContext(sendCtx, "auxiliary daily log failed",
				"attendance_id", ev.AttendanceID,
				"kind", ev.Kind,
				"error", err)
		}
	}()
}

// Wait blocks until all dispatched events have been sent or have failed.
func (d *AuxiliaryDispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
