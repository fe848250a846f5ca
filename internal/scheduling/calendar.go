package scheduling

import (
	"context"
	"fmt"
	"time"

	"clinic-app-server/internal/actor"
	"clinic-app-server/internal/apperr"
	"clinic-app-server/internal/clock"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

// Calendar serves the derived read-only views: category counts, today's
// load, the missed-slot calendar slice and the next/now convenience views.
// Every query is filtered through the caller's visibility scope.
type Calendar struct {
	resolver *actor.Resolver
	store    store.Store
	clock    clock.Clock
}

// NewCalendar wires the calendar query service.
func NewCalendar(resolver *actor.Resolver, st store.Store, clk clock.Clock) *Calendar {
	return &Calendar{resolver: resolver, store: st, clock: clk}
}

// scopeFor builds the visibility scope for an actor. Pending-style views
// additionally let doctors see unclaimed slots.
func scopeFor(act actor.Actor, includeUnclaimed bool) store.Scope {
	return store.Scope{
		Role:             act.Role,
		ActorID:          act.ID,
		IncludeUnclaimed: includeUnclaimed && act.IsDoctor(),
	}
}

// ExcludeReserved filters out every candidate whose start instant is already
// reserved. It is the pure half of the reserved-time anti-join: a pending
// request whose slot the doctor has re-booked through a different accepted
// appointment must not double-count as both missed and upcoming. It runs
// before any ordering or pagination.
func ExcludeReserved(candidates []models.Appointment, reserved []time.Time) []models.Appointment {
	if len(reserved) == 0 {
		return candidates
	}
	taken := make(map[int64]struct{}, len(reserved))
	for _, t := range reserved {
		taken[t.Unix()] = struct{}{}
	}
	kept := make([]models.Appointment, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := taken[c.StartTime.Unix()]; ok {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// FormatTotalHours renders a summed duration as "H h M min", or "-" when
// nothing was booked.
func FormatTotalHours(total time.Duration, empty bool) string {
	if empty {
		return "-"
	}
	hours := int(total.Hours())
	minutes := int(total.Minutes()) % 60
	return fmt.Sprintf("%d h %d min", hours, minutes)
}

// ListAppointments returns the appointments the actor may see, optionally
// narrowed to a category.
func (c *Calendar) ListAppointments(ctx context.Context, userID string, category store.Category) ([]models.Appointment, error) {
	act, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	appts, err := c.store.Appointments().List(ctx, store.AppointmentQuery{
		Scope:    scopeFor(act, category == store.CategoryPending || category == store.CategoryMissed),
		Category: category,
		Now:      c.clock.Now(),
		Preload:  true,
	})
	if err != nil {
		return nil, apperr.Internal("listing appointments", err)
	}
	return appts, nil
}

// PendingCount counts the open requests visible to the actor. For doctors
// the raw reserved instants are fetched first and the count anti-joins
// against them; an empty reserved set leaves the count unfiltered.
func (c *Calendar) PendingCount(ctx context.Context, userID string) (int64, error) {
	act, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		return 0, err
	}

	q := store.AppointmentQuery{
		Scope:    scopeFor(act, true),
		Category: store.CategoryPending,
		Now:      c.clock.Now(),
	}
	if act.IsDoctor() {
		reserved, err := c.store.Appointments().ReservedStarts(ctx, act.ID, nil, nil)
		if err != nil {
			return 0, apperr.Internal("loading reserved starts", err)
		}
		q.ExcludeStarts = reserved
	}

	count, err := c.store.Appointments().Count(ctx, q)
	if err != nil {
		return 0, apperr.Internal("counting pending appointments", err)
	}
	return count, nil
}

// MissedCount counts past, still-unclaimed requests visible to the actor.
func (c *Calendar) MissedCount(ctx context.Context, userID string) (int64, error) {
	return c.countCategory(ctx, userID, store.CategoryMissed)
}

// UpcomingCount counts accepted future appointments visible to the actor.
func (c *Calendar) UpcomingCount(ctx context.Context, userID string) (int64, error) {
	return c.countCategory(ctx, userID, store.CategoryUpcoming)
}

// PastCount counts completed appointments visible to the actor.
func (c *Calendar) PastCount(ctx context.Context, userID string) (int64, error) {
	return c.countCategory(ctx, userID, store.CategoryPast)
}

func (c *Calendar) countCategory(ctx context.Context, userID string, category store.Category) (int64, error) {
	act, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		return 0, err
	}
	count, err := c.store.Appointments().Count(ctx, store.AppointmentQuery{
		Scope:    scopeFor(act, category == store.CategoryMissed),
		Category: category,
		Now:      c.clock.Now(),
	})
	if err != nil {
		return 0, apperr.Internal("counting appointments", err)
	}
	return count, nil
}

// MissedCalendar returns the missed-slot slice for a window, with reserved
// starts subtracted before presentation.
func (c *Calendar) MissedCalendar(ctx context.Context, userID string, from, to time.Time) ([]models.Appointment, error) {
	act, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := c.store.Appointments().List(ctx, store.AppointmentQuery{
		Scope:    scopeFor(act, true),
		Category: store.CategoryMissed,
		Now:      c.clock.Now(),
		From:     &from,
		To:       &to,
		Preload:  true,
	})
	if err != nil {
		return nil, apperr.Internal("listing missed appointments", err)
	}

	if !act.IsDoctor() {
		return candidates, nil
	}
	reserved, err := c.store.Appointments().ReservedStarts(ctx, act.ID, &from, &to)
	if err != nil {
		return nil, apperr.Internal("loading reserved starts", err)
	}
	return ExcludeReserved(candidates, reserved), nil
}

// TodayAppointments returns the actor's appointments starting today.
func (c *Calendar) TodayAppointments(ctx context.Context, userID string) ([]models.Appointment, error) {
	act, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	appts, err := c.store.Appointments().List(ctx, store.AppointmentQuery{
		Scope:    scopeFor(act, false),
		Category: store.CategoryToday,
		Now:      c.clock.Now(),
		Preload:  true,
	})
	if err != nil {
		return nil, apperr.Internal("listing today's appointments", err)
	}
	return appts, nil
}

// CountTotalHoursToday sums the booked time of the actor's appointments
// today and renders it as "H h M min", or "-" when the set is empty.
func (c *Calendar) CountTotalHoursToday(ctx context.Context, userID string) (string, error) {
	appts, err := c.TodayAppointments(ctx, userID)
	if err != nil {
		return "", err
	}
	var total time.Duration
	for _, appt := range appts {
		total += appt.Duration()
	}
	return FormatTotalHours(total, len(appts) == 0), nil
}

// NowAppointment returns the doctor's appointment whose interval contains
// the current instant, excluding non-patient blocks. Nil when there is none.
func (c *Calendar) NowAppointment(ctx context.Context, userID string) (*models.Appointment, error) {
	act, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !act.IsDoctor() {
		return nil, apperr.Unauthorized()
	}

	now := c.clock.Now()
	appts, err := c.store.Appointments().List(ctx, store.AppointmentQuery{
		Scope:    scopeFor(act, false),
		Category: store.CategoryToday,
		Now:      now,
		Preload:  true,
	})
	if err != nil {
		return nil, apperr.Internal("listing today's appointments", err)
	}
	for i := range appts {
		if appts[i].PatientID != nil && appts[i].InProgress(now) {
			return &appts[i], nil
		}
	}
	return nil, nil
}

// NextAppointmentView is the read-only convenience view around a doctor's
// next appointment: the appointment itself plus context from the most recent
// previous visit of the same patient/doctor pair.
type NextAppointmentView struct {
	Appointment       *models.Appointment `json:"appointment"`
	PreviousStart     *time.Time          `json:"previousStart,omitempty"`
	PreviousRecordIDs []string            `json:"previousRecordIds,omitempty"`
}

// NextAppointment returns the doctor's next accepted appointment together
// with the previous visit's start time and the ids of records written
// against that visit. Nil view when nothing is upcoming.
func (c *Calendar) NextAppointment(ctx context.Context, userID string) (*NextAppointmentView, error) {
	act, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !act.IsDoctor() {
		return nil, apperr.Unauthorized()
	}

	appts, err := c.store.Appointments().List(ctx, store.AppointmentQuery{
		Scope:    scopeFor(act, false),
		Category: store.CategoryUpcoming,
		Now:      c.clock.Now(),
		Limit:    1,
		Preload:  true,
	})
	if err != nil {
		return nil, apperr.Internal("listing upcoming appointments", err)
	}
	if len(appts) == 0 {
		return nil, nil
	}

	next := appts[0]
	view := &NextAppointmentView{Appointment: &next}
	if next.PatientID == nil {
		return view, nil
	}

	prev, err := c.store.Appointments().PreviousForPair(ctx, *next.PatientID, act.ID, next.StartTime)
	if err != nil {
		return nil, apperr.Internal("loading previous appointment", err)
	}
	if prev != nil {
		start := prev.StartTime
		view.PreviousStart = &start
		recordIDs, err := c.store.Records().IDsByAppointmentID(ctx, prev.ID)
		if err != nil {
			return nil, apperr.Internal("loading previous records", err)
		}
		view.PreviousRecordIDs = recordIDs
	}
	return view, nil
}

// JustCreatedAppointment returns the most recently created appointment for a
// patient, used to re-fetch a just-submitted booking. Any resolved identity
// may call it.
func (c *Calendar) JustCreatedAppointment(ctx context.Context, userID, patientID string) (*models.Appointment, error) {
	if _, err := c.resolver.Resolve(ctx, userID); err != nil {
		return nil, err
	}
	return c.store.Appointments().LatestForPatient(ctx, patientID)
}
