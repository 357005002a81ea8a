package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jakechorley/desk-booking/pkg/model"
)

// Input layouts accepted for times on the command line, in local time
var inputLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime accepts RFC 3339 or a local date/time. A bare date means midnight.
func parseTime(s string) (model.Timestamp, error) {
	if ts, err := model.ParseTimestamp(s); err == nil {
		return ts, nil
	}
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return model.NewTimestamp(t), nil
		}
	}
	return model.Timestamp{}, fmt.Errorf("invalid time %q (use YYYY-MM-DDTHH:MM)", s)
}

// parseRange reads a start and either an end time or a duration such as 2h30m
func parseRange(startArg, endArg string) (model.Timestamp, model.Timestamp, error) {
	start, err := parseTime(startArg)
	if err != nil {
		return model.Timestamp{}, model.Timestamp{}, err
	}
	if d, err := time.ParseDuration(endArg); err == nil {
		return start, model.NewTimestamp(start.Add(d)), nil
	}
	end, err := parseTime(endArg)
	if err != nil {
		return model.Timestamp{}, model.Timestamp{}, err
	}
	return start, end, nil
}

func floorLabel(n int) string {
	return humanize.Ordinal(n) + " floor"
}

func statusIcon(r model.Reservation) string {
	switch {
	case r.ReservationID < 0:
		return "…"
	case r.Status == model.StatusCancelled:
		return "✗"
	case r.IsActive:
		return "●"
	case r.IsUpcoming:
		return "○"
	default:
		return "✓"
	}
}

// printReservations writes one line per reservation, grouped as the service returns them
func printReservations(w io.Writer, reservations []model.Reservation, now time.Time) {
	if len(reservations) == 0 {
		fmt.Fprintln(w, "No reservations.")
		return
	}
	for _, r := range reservations {
		fmt.Fprintf(w, "  %s #%-5d %-10s %s  %s → %s  (%s, %s)\n",
			statusIcon(r),
			r.ReservationID,
			r.DeskName,
			floorLabel(r.FloorNumber),
			r.StartTime.Format("Mon 02 Jan 15:04"),
			r.EndTime.Format("15:04"),
			r.Duration,
			relative(r, now),
		)
	}
}

func relative(r model.Reservation, now time.Time) string {
	switch {
	case r.Status == model.StatusCancelled:
		return "cancelled"
	case r.IsActive:
		return "ends " + humanize.RelTime(r.EndTime.Time, now, "ago", "from now")
	default:
		return "starts " + humanize.RelTime(r.StartTime.Time, now, "ago", "from now")
	}
}

func printDesks(w io.Writer, desks []model.Desk, now time.Time) {
	if len(desks) == 0 {
		fmt.Fprintln(w, "No desks.")
		return
	}
	for _, d := range desks {
		state := "available"
		if !d.IsAvailable {
			state = "in use"
		}
		line := fmt.Sprintf("  #%-4d %-10s floor %-4s %s", d.DeskID, d.DeskName, d.FloorNumber, state)
		if d.NextReservationStart != nil {
			line += ", next booking " + humanize.RelTime(d.NextReservationStart.Time, now, "ago", "from now")
		}
		fmt.Fprintln(w, line)
	}
}

func printFloors(w io.Writer, floors []model.Floor) {
	if len(floors) == 0 {
		fmt.Fprintln(w, "No floors.")
		return
	}
	for _, f := range floors {
		fmt.Fprintf(w, "  #%-4d %-12s %s\n", f.FloorID, floorLabel(f.FloorNumber), pluralDesks(f.DeskCount))
	}
}

func pluralDesks(n int) string {
	if n == 1 {
		return "1 desk"
	}
	return humanize.Comma(int64(n)) + " desks"
}

func printUser(w io.Writer, u *model.User) {
	fmt.Fprintf(w, "%s <%s>\n", u.UserName, u.Email)
	fmt.Fprintf(w, "  ID:    %s\n", u.ID)
	fmt.Fprintf(w, "  Roles: %s\n", strings.Join(u.Roles, ", "))
}
