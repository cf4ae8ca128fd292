package attendance

import (
	"context"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
)

// StartBreak implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) StartBreak(ctx context.Context, req attendance.BreakRequest) (attendance.BreakResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.BreakResponse{}, err
	}

	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return attendance.BreakResponse{}, err
	}

	var started attendance.BreakRecord
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rec, err := s.ownedRecord(ctx, actor, req.AttendanceID)
		if err != nil {
			return err
		}
		if !rec.IsOpen() {
			return attendance.ErrNoActiveSession
		}

		open, err := s.breaks.GetOpen(ctx, rec.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return attendance.ErrBreakAlreadyOpen
		}

		// on_time is provisional until the break ends
		started, err = s.breaks.Start(ctx, attendance.BreakRecord{
			AttendanceID: rec.ID,
			StartTime:    s.now().UTC(),
			Status:       attendance.BreakOnTime,
		})
		return err
	})
	if err != nil {
		s.recordRejection("break_start", err)
		return attendance.BreakResponse{}, err
	}

	metrics.RecordBreak("start", string(started.Status))
	resp := attendance.ToBreakResponse(started)
	s.notify(ctx, actor, started.AttendanceID, resp, events.TypeBreakStarted)

	return resp, nil
}

// EndBreak implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) EndBreak(ctx context.Context, req attendance.BreakRequest) (attendance.BreakResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.BreakResponse{}, err
	}

	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return attendance.BreakResponse{}, err
	}

	locs, err := s.locations.Locations(ctx, actor.CompanyID)
	if err != nil {
		return attendance.BreakResponse{}, err
	}

	var ended attendance.BreakRecord
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rec, err := s.ownedRecord(ctx, actor, req.AttendanceID)
		if err != nil {
			return err
		}

		open, err := s.breaks.GetOpen(ctx, rec.ID)
		if err != nil {
			return err
		}
		if open == nil {
			return attendance.ErrNoOpenBreak
		}

		policy, err := s.policyFor(locs, rec.LocationID)
		if err != nil {
			return err
		}

		end := s.now().UTC()
		if end.Before(open.StartTime) {
			end = open.StartTime
		}
		ended, err = s.breaks.End(ctx, open.ID, end, policy.ClassifyBreakEnd(end))
		return err
	})
	if err != nil {
		s.recordRejection("break_end", err)
		return attendance.BreakResponse{}, err
	}

	metrics.RecordBreak("end", string(ended.Status))
	resp := attendance.ToBreakResponse(ended)
	s.notify(ctx, actor, ended.AttendanceID, resp, events.TypeBreakEnded)

	return resp, nil
}
