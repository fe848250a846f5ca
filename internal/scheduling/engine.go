// Package scheduling owns the appointment lifecycle: creation, reschedule,
// claim and cancellation, plus the role-scoped calendar views built on the
// same visibility rules. All state transitions are synchronous
// read-modify-write sequences against the persistence port; notification and
// broadcast dispatch is a side channel that never fails a mutation.
package scheduling

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"clinic-app-server/internal/actor"
	"clinic-app-server/internal/apperr"
	"clinic-app-server/internal/clock"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/notify"
	"clinic-app-server/internal/realtime"
	"clinic-app-server/internal/store"
)

// Broadcast event names.
const (
	EventAppointmentNew  = "appointment:new"
	EventCalendarRefresh = "calendar:refresh"
	EventMissedChanged   = "missed:changed"
	EventRecordAvailable = "record:available"
)

// SlotInput describes a requested time slot.
type SlotInput struct {
	Start     time.Time
	End       time.Time
	AllDay    bool
	PatientID string // patient to book for (doctor- and admin-authored slots)
	Message   string // free text attached by the authoring role
}

// Engine implements the appointment state machine and its transition
// legality checks.
type Engine struct {
	resolver  *actor.Resolver
	store     store.Store
	clock     clock.Clock
	notifier  notify.Notifier
	broadcast realtime.Broadcaster
	log       zerolog.Logger
}

// NewEngine wires the scheduling engine to its collaborator ports.
func NewEngine(resolver *actor.Resolver, st store.Store, clk clock.Clock, notifier notify.Notifier, broadcast realtime.Broadcaster, log zerolog.Logger) *Engine {
	return &Engine{
		resolver:  resolver,
		store:     st,
		clock:     clk,
		notifier:  notifier,
		broadcast: broadcast,
		log:       log,
	}
}

// dispatch sends a notification on the side channel. Failures are logged and
// swallowed; they must never roll back or fail the primary mutation.
func (e *Engine) dispatch(ctx context.Context, kind notify.Kind, payload notify.Payload) {
	if err := e.notifier.Notify(ctx, kind, payload); err != nil {
		e.log.Warn().Err(err).Str("kind", string(kind)).Msg("notification dispatch failed")
	}
}

// signalCalendarRefresh emits the two-phase refresh signal (true, then
// false) so consumers can debounce.
func (e *Engine) signalCalendarRefresh() {
	e.broadcast.Emit(EventCalendarRefresh, true)
	e.broadcast.Emit(EventCalendarRefresh, false)
}

func validateSlot(slot SlotInput) error {
	if slot.Start.IsZero() || slot.End.IsZero() {
		return apperr.Invalid("Start and end times are required")
	}
	if !slot.Start.Before(slot.End) {
		return apperr.Invalid("Appointment start must be before its end")
	}
	return nil
}

// CreateAppointment books a new slot. Patients self-book, doctors create
// pre-accepted slots for a patient, admins book on behalf of a patient or
// place all-day calendar blocks. Returns the new appointment id.
func (e *Engine) CreateAppointment(ctx context.Context, userID string, slot SlotInput) (string, error) {
	act, err := e.resolver.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := validateSlot(slot); err != nil {
		return "", err
	}

	// Idempotent-creation guard against duplicate submits.
	existing, err := e.store.Appointments().ByStart(ctx, slot.Start)
	if err != nil {
		return "", apperr.Internal("checking for existing appointment", err)
	}
	if existing != nil {
		return "", apperr.Conflict("An appointment with the same start time already exists")
	}

	appt := models.Appointment{
		StartTime: slot.Start,
		EndTime:   slot.End,
		AllDay:    slot.AllDay,
	}

	switch {
	case act.IsPatient():
		if slot.AllDay {
			return "", apperr.Unauthorized()
		}
		id := act.ID
		appt.PatientID = &id
		if slot.Message != "" {
			msg := slot.Message
			appt.PatientMessage = &msg
		}
	case act.IsDoctor():
		id := act.ID
		appt.DoctorID = &id
		if slot.PatientID == "" {
			return "", apperr.Invalid("A patient is required for a doctor-authored appointment")
		}
		patientID := slot.PatientID
		appt.PatientID = &patientID
		if slot.Message != "" {
			msg := slot.Message
			appt.DoctorMessage = &msg
		}
	default: // admin
		if slot.AllDay {
			// All-day blocks are non-patient calendar entries and carry
			// neither patient nor doctor.
			break
		}
		if slot.PatientID == "" {
			return "", apperr.Invalid("A patient is required when booking on behalf")
		}
		patientID := slot.PatientID
		appt.PatientID = &patientID
		if slot.Message != "" {
			msg := slot.Message
			appt.PatientMessage = &msg
		}
	}

	// A fresh appointment has never been rescheduled.
	appt.UpdatedAt = nil

	if err := e.store.Appointments().Create(ctx, &appt); err != nil {
		return "", apperr.Internal("creating appointment", err)
	}

	if !appt.AllDay {
		e.broadcast.Emit(EventAppointmentNew, map[string]string{"id": appt.ID})
		e.signalCalendarRefresh()
	}
	return appt.ID, nil
}

// UpdateAppointment reschedules an appointment. A patient may not move a
// slot a doctor has already accepted; they must cancel and rebook.
func (e *Engine) UpdateAppointment(ctx context.Context, userID, id string, slot SlotInput) error {
	act, err := e.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if err := validateSlot(slot); err != nil {
		return err
	}

	appt, err := e.store.Appointments().ByID(ctx, id)
	if err != nil {
		return err
	}

	if act.IsPatient() {
		if !appt.OwnedByPatient(act.ID) {
			return apperr.Unauthorized()
		}
		if appt.Accepted() {
			return apperr.Forbidden("Appointment has already been accepted by a doctor; cancel it and book a new one")
		}
	}

	timeChanged := !appt.StartTime.Equal(slot.Start) || !appt.EndTime.Equal(slot.End)

	appt.StartTime = slot.Start
	appt.EndTime = slot.End
	now := e.clock.Now()
	appt.UpdatedAt = &now

	if err := e.store.Appointments().Save(ctx, appt); err != nil {
		return apperr.Internal("updating appointment", err)
	}

	if timeChanged {
		switch {
		case act.IsDoctor():
			e.dispatch(ctx, notify.KindAppointmentUpdated, notify.ForPatient(appt))
		case act.IsAdmin():
			// Admin moves are corrective; signal the views instead of
			// emailing the patient.
			e.broadcast.Emit(EventMissedChanged, map[string]string{"id": appt.ID})
		}
	}
	return nil
}

// AcceptAppointment lets a doctor claim a pending appointment. The claim is
// a conditional update, so a concurrent second accept loses cleanly.
func (e *Engine) AcceptAppointment(ctx context.Context, userID, id string) error {
	act, err := e.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if !act.IsDoctor() {
		return apperr.Unauthorized()
	}

	if _, err := e.store.Appointments().ByID(ctx, id); err != nil {
		return err
	}

	claimed, err := e.store.Appointments().Claim(ctx, id, act.ID)
	if err != nil {
		return apperr.Internal("accepting appointment", err)
	}
	if !claimed {
		return apperr.Conflict("Appointment has already been accepted")
	}

	appt, err := e.store.Appointments().ByID(ctx, id)
	if err != nil {
		return err
	}
	e.dispatch(ctx, notify.KindAppointmentAccepted, notify.ForPatient(appt))
	return nil
}

// AcceptAppointmentsByIDs claims a batch of appointments in one transaction
// and notifies per appointment after commit, best-effort.
func (e *Engine) AcceptAppointmentsByIDs(ctx context.Context, userID string, ids []string) (int, error) {
	act, err := e.resolver.Resolve(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !act.IsDoctor() {
		return 0, apperr.Unauthorized()
	}

	appts, err := e.store.Appointments().ByIDs(ctx, ids)
	if err != nil {
		return 0, apperr.Internal("loading appointments", err)
	}
	if len(appts) == 0 {
		return 0, apperr.NotFound("Appointments")
	}

	err = e.store.Transaction(ctx, func(tx store.Store) error {
		for i := range appts {
			doctorID := act.ID
			appts[i].DoctorID = &doctorID
			if err := tx.Appointments().Save(ctx, &appts[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperr.Internal("accepting appointments", err)
	}

	for i := range appts {
		e.dispatch(ctx, notify.KindAppointmentAccepted, notify.ForPatient(&appts[i]))
	}
	return len(appts), nil
}

// UnacceptAppointmentsByIDs releases a batch of claimed appointments. The
// "unaccepted" notifications go out before the save on purpose: a partial
// notification failure must stay visible as such, not masquerade as a save
// failure.
func (e *Engine) UnacceptAppointmentsByIDs(ctx context.Context, userID string, ids []string) (int, error) {
	act, err := e.resolver.Resolve(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !act.IsDoctor() {
		return 0, apperr.Unauthorized()
	}

	appts, err := e.store.Appointments().ByIDs(ctx, ids)
	if err != nil {
		return 0, apperr.Internal("loading appointments", err)
	}
	if len(appts) == 0 {
		return 0, apperr.NotFound("Appointments")
	}

	for i := range appts {
		e.dispatch(ctx, notify.KindAppointmentUnaccepted, notify.ForPatient(&appts[i]))
	}

	err = e.store.Transaction(ctx, func(tx store.Store) error {
		for i := range appts {
			appts[i].DoctorID = nil
			appts[i].DoctorMessage = nil
			if err := tx.Appointments().Save(ctx, &appts[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperr.Internal("unaccepting appointments", err)
	}
	return len(appts), nil
}

// DeleteAppointment hard-deletes an appointment, detaching any linked
// record first. The assigned doctor is notified only when the slot had a
// doctor, still lies in the future, and someone else cancelled it.
func (e *Engine) DeleteAppointment(ctx context.Context, userID, id string) error {
	act, err := e.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}

	// Fetch with detail before deleting; the notification payload needs it.
	appt, err := e.store.Appointments().ByID(ctx, id)
	if err != nil {
		return err
	}
	if act.IsPatient() && !appt.OwnedByPatient(act.ID) {
		return apperr.Unauthorized()
	}

	err = e.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.Records().DetachByAppointmentIDs(ctx, []string{id}); err != nil {
			return err
		}
		return tx.Appointments().Delete(ctx, id)
	})
	if err != nil {
		return apperr.Internal("deleting appointment", err)
	}

	now := e.clock.Now()
	if appt.DoctorID != nil && appt.StartTime.After(now) && *appt.DoctorID != act.ID {
		e.dispatch(ctx, notify.KindAppointmentCancelled, notify.ForDoctor(appt))
	}
	e.signalCalendarRefresh()
	return nil
}

// DeleteAppointmentsByIDs bulk-cancels appointments: linked records are
// detached first, then the appointments are removed. Returns the count and
// ids actually deleted.
func (e *Engine) DeleteAppointmentsByIDs(ctx context.Context, userID string, ids []string) (int64, []string, error) {
	act, err := e.resolver.Resolve(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	if act.IsPatient() {
		return 0, nil, apperr.Unauthorized()
	}

	appts, err := e.store.Appointments().ByIDs(ctx, ids)
	if err != nil {
		return 0, nil, apperr.Internal("loading appointments", err)
	}
	if len(appts) == 0 {
		return 0, nil, apperr.NotFound("Appointments")
	}

	deletedIDs := make([]string, len(appts))
	for i := range appts {
		deletedIDs[i] = appts[i].ID
	}

	var count int64
	err = e.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.Records().DetachByAppointmentIDs(ctx, deletedIDs); err != nil {
			return err
		}
		count, err = tx.Appointments().DeleteByIDs(ctx, deletedIDs)
		return err
	})
	if err != nil {
		return 0, nil, apperr.Internal("deleting appointments", err)
	}

	e.signalCalendarRefresh()
	return count, deletedIDs, nil
}

// messageField resolves which message field a role writes. Admins write the
// patient-message field.
func messageField(act actor.Actor, appt *models.Appointment, value *string) {
	if act.IsDoctor() {
		appt.DoctorMessage = value
	} else {
		appt.PatientMessage = value
	}
}

// SaveAppointmentMessage attaches free text to the caller's side of the
// appointment. Attaching a message is not an edit: a nil UpdatedAt stays
// nil, so the "never rescheduled" flag survives.
func (e *Engine) SaveAppointmentMessage(ctx context.Context, userID, id, message string) error {
	return e.writeAppointmentMessage(ctx, userID, id, &message)
}

// DeleteAppointmentMessage clears the caller's message field to null, never
// to an empty string.
func (e *Engine) DeleteAppointmentMessage(ctx context.Context, userID, id string) error {
	return e.writeAppointmentMessage(ctx, userID, id, nil)
}

func (e *Engine) writeAppointmentMessage(ctx context.Context, userID, id string, value *string) error {
	act, err := e.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}

	appt, err := e.store.Appointments().ByID(ctx, id)
	if err != nil {
		return err
	}
	if act.IsPatient() && !appt.OwnedByPatient(act.ID) {
		return apperr.Unauthorized()
	}

	messageField(act, appt, value)
	if err := e.store.Appointments().Save(ctx, appt); err != nil {
		return apperr.Internal("saving appointment message", err)
	}
	return nil
}

// AddMessageToAppointmentsByIDs attaches the message to every appointment in
// the batch and notifies the counterpart per appointment. Admins may not use
// the batch variants.
func (e *Engine) AddMessageToAppointmentsByIDs(ctx context.Context, userID string, ids []string, message string) (int, error) {
	return e.writeBatchMessages(ctx, userID, ids, &message, notify.KindMessageAdded)
}

// DeleteMessagesFromAppointmentsByIDs clears the caller's message field on
// every appointment in the batch and notifies the counterpart.
func (e *Engine) DeleteMessagesFromAppointmentsByIDs(ctx context.Context, userID string, ids []string) (int, error) {
	return e.writeBatchMessages(ctx, userID, ids, nil, notify.KindMessageRemoved)
}

func (e *Engine) writeBatchMessages(ctx context.Context, userID string, ids []string, value *string, kind notify.Kind) (int, error) {
	act, err := e.resolver.Resolve(ctx, userID)
	if err != nil {
		return 0, err
	}
	if act.IsAdmin() {
		return 0, apperr.Unauthorized()
	}

	appts, err := e.store.Appointments().ByIDs(ctx, ids)
	if err != nil {
		return 0, apperr.Internal("loading appointments", err)
	}
	if len(appts) == 0 {
		return 0, apperr.NotFound("Appointments")
	}

	err = e.store.Transaction(ctx, func(tx store.Store) error {
		for i := range appts {
			messageField(act, &appts[i], value)
			if err := tx.Appointments().Save(ctx, &appts[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperr.Internal("saving appointment messages", err)
	}

	for i := range appts {
		payload := counterpartPayload(act, &appts[i])
		if value != nil {
			payload.Message = *value
		}
		e.dispatch(ctx, kind, payload)
	}
	return len(appts), nil
}

// counterpartPayload addresses the notification to the other side of the
// appointment: doctors write to patients and patients to doctors.
func counterpartPayload(act actor.Actor, appt *models.Appointment) notify.Payload {
	if act.IsDoctor() {
		return notify.ForPatient(appt)
	}
	return notify.ForDoctor(appt)
}
