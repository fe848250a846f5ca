package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"clinic-app-server/internal/clock"
	"clinic-app-server/internal/notify"
	"clinic-app-server/internal/store"
)

// Reminders sends a daily reminder for every accepted appointment that
// starts tomorrow.
type Reminders struct {
	store    store.Store
	clock    clock.Clock
	notifier notify.Notifier
	log      zerolog.Logger
}

// NewReminders wires the reminder job.
func NewReminders(st store.Store, clk clock.Clock, notifier notify.Notifier, log zerolog.Logger) *Reminders {
	return &Reminders{store: st, clock: clk, notifier: notifier, log: log}
}

// Start schedules the job to run every day at 00:05 and returns the cron
// runner so the caller can stop it on shutdown.
func (r *Reminders) Start() *cron.Cron {
	c := cron.New()
	c.AddFunc("5 0 * * *", func() {
		r.log.Info().Msg("running daily appointment reminders")
		if err := r.Run(context.Background()); err != nil {
			r.log.Error().Err(err).Msg("daily reminder run failed")
		}
	})
	c.Start()
	return c
}

// Run sends reminders for tomorrow's accepted appointments. Dispatch
// failures are logged per appointment and do not abort the run.
func (r *Reminders) Run(ctx context.Context) error {
	// DayBounds returns an exclusive end, so the next midnight stays out.
	dayStart, dayEnd := clock.DayBounds(r.clock.Now().Add(24 * time.Hour))
	appts, err := r.store.Appointments().List(ctx, store.AppointmentQuery{
		Scope:   store.AdminScope(),
		From:    &dayStart,
		Before:  &dayEnd,
		Preload: true,
	})
	if err != nil {
		return err
	}

	for i := range appts {
		if !appts[i].Accepted() || appts[i].PatientID == nil {
			continue
		}
		if err := r.notifier.Notify(ctx, notify.KindAppointmentReminder, notify.ForPatient(&appts[i])); err != nil {
			r.log.Warn().Err(err).Str("appointmentId", appts[i].ID).Msg("reminder dispatch failed")
		}
	}
	return nil
}
