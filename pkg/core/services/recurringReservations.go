package services

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/model"
)

const (
	// MaxOccurrences caps how many reservations one recurrence rule may create
	MaxOccurrences = 52
	// recurrenceHorizon bounds the search for occurrences of open-ended rules
	recurrenceHorizon = 366 * 24 * time.Hour
)

// OccurrenceResult is the outcome of booking one occurrence of a recurring reservation
type OccurrenceResult struct {
	StartTime model.Timestamp
	EndTime   model.Timestamp
	Err       error
}

// Occurrences expands rule from the request's start time. Every occurrence
// keeps the request's duration and the offset of its start time.
func Occurrences(req model.CreateReservationRequest, rule string) ([]model.CreateReservationRequest, error) {
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	parsed, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rrule: %w", err)
	}

	start := req.StartTime.Time
	duration := req.EndTime.Sub(start)
	parsed.DTStart(start)

	starts := parsed.Between(start, start.Add(recurrenceHorizon), true)
	if len(starts) > MaxOccurrences {
		starts = starts[:MaxOccurrences]
	}

	out := make([]model.CreateReservationRequest, 0, len(starts))
	for _, occurrence := range starts {
		occurrence = occurrence.In(start.Location())
		out = append(out, model.CreateReservationRequest{
			DeskID:    req.DeskID,
			StartTime: model.NewTimestamp(occurrence),
			EndTime:   model.NewTimestamp(occurrence.Add(duration)),
		})
	}
	return out, nil
}

// CreateRecurring books one reservation per occurrence of rule. Occurrences
// are booked in order and a failed one does not stop the rest; the outcome
// of each is returned and a single summary is sent to the notifier.
func (s *ReservationService) CreateRecurring(ctx context.Context, req model.CreateReservationRequest, rule string) ([]OccurrenceResult, error) {
	requests, err := Occurrences(req, rule)
	if err != nil {
		s.deps.Notifier.Error(failureMessage(opCreateReservation, err))
		return nil, err
	}

	s.deps.Logger.Debug("Creating recurring reservations",
		zap.Int("desk_id", req.DeskID),
		zap.String("rrule", rule),
		zap.Int("occurrences", len(requests)))

	results := make([]OccurrenceResult, 0, len(requests))
	failed := 0
	for _, occurrence := range requests {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		err := s.create(ctx, occurrence)
		if err != nil {
			failed++
			s.deps.Logger.Debug("Occurrence failed",
				zap.Stringer("start_time", occurrence.StartTime),
				zap.Error(err))
			err = fmt.Errorf("%s: %s", occurrence.StartTime, failureMessage(opCreateReservation, err))
		}
		results = append(results, OccurrenceResult{
			StartTime: occurrence.StartTime,
			EndTime:   occurrence.EndTime,
			Err:       err,
		})
	}

	switch {
	case len(results) == 0:
		s.deps.Notifier.Error("No occurrences match the recurrence rule")
	case failed == 0:
		s.deps.Notifier.Success(fmt.Sprintf("%d reservations created successfully!", len(results)))
	default:
		s.deps.Notifier.Error(fmt.Sprintf("Created %d of %d reservations", len(results)-failed, len(results)))
	}
	return results, nil
}
