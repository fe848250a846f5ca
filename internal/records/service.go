// Package records owns the medical-record linkage: one record per
// appointment, drafted by the owning doctor and visible to the patient only
// once finalized.
package records

import (
	"context"

	"github.com/rs/zerolog"

	"clinic-app-server/internal/actor"
	"clinic-app-server/internal/apperr"
	"clinic-app-server/internal/clock"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/notify"
	"clinic-app-server/internal/realtime"
	"clinic-app-server/internal/scheduling"
	"clinic-app-server/internal/store"
)

// Input describes a record save. A present ID selects the update path.
type Input struct {
	ID            string
	AppointmentID string
	Title         string
	Text          string
	Draft         bool
}

// Service implements record creation, finalization and deletion with the
// appointment back-reference kept in sync.
type Service struct {
	resolver  *actor.Resolver
	store     store.Store
	clock     clock.Clock
	notifier  notify.Notifier
	broadcast realtime.Broadcaster
	log       zerolog.Logger
}

// NewService wires the record service to its collaborator ports.
func NewService(resolver *actor.Resolver, st store.Store, clk clock.Clock, notifier notify.Notifier, broadcast realtime.Broadcaster, log zerolog.Logger) *Service {
	return &Service{
		resolver:  resolver,
		store:     st,
		clock:     clk,
		notifier:  notifier,
		broadcast: broadcast,
		log:       log,
	}
}

func (s *Service) dispatch(ctx context.Context, kind notify.Kind, payload notify.Payload) {
	if err := s.notifier.Notify(ctx, kind, payload); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("notification dispatch failed")
	}
}

// announceFinal notifies the patient and pushes the record-available event
// to that patient's room.
func (s *Service) announceFinal(ctx context.Context, rec *models.MedicalRecord) {
	payload := notify.Payload{
		RecordID:    rec.ID,
		RecordTitle: rec.Title,
	}
	if rec.Patient != nil {
		payload.To = rec.Patient.Email
		payload.RecipientName = rec.Patient.FullName()
	}
	if rec.Doctor != nil {
		payload.DoctorName = rec.Doctor.FullName()
	}
	s.dispatch(ctx, notify.KindRecordAvailable, payload)
	s.broadcast.EmitToRoom(realtime.UserRoom(rec.PatientID), scheduling.EventRecordAvailable, map[string]string{
		"recordId": rec.ID,
		"title":    rec.Title,
	})
}

// SaveRecord creates or updates a record. Only the doctor role may write
// records; creation requires an existing linked appointment and inherits the
// patient from it. Finalizing a draft notifies the patient.
func (s *Service) SaveRecord(ctx context.Context, userID string, input Input) (string, error) {
	act, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}
	if !act.IsDoctor() {
		return "", apperr.Unauthorized()
	}
	if input.Title == "" {
		return "", apperr.Invalid("A record title is required")
	}

	if input.ID != "" {
		return s.updateRecord(ctx, input)
	}
	return s.createRecord(ctx, act, input)
}

func (s *Service) updateRecord(ctx context.Context, input Input) (string, error) {
	rec, err := s.store.Records().ByID(ctx, input.ID)
	if err != nil {
		return "", err
	}

	finalized := rec.Draft && !input.Draft

	rec.Title = input.Title
	rec.Text = input.Text
	rec.Draft = input.Draft
	now := s.clock.Now()
	rec.UpdatedAt = &now

	if err := s.store.Records().Save(ctx, rec); err != nil {
		return "", apperr.Internal("updating record", err)
	}

	if finalized {
		s.announceFinal(ctx, rec)
	}
	return rec.ID, nil
}

func (s *Service) createRecord(ctx context.Context, act actor.Actor, input Input) (string, error) {
	appt, err := s.store.Appointments().ByID(ctx, input.AppointmentID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", apperr.NotFound("Linked appointment")
		}
		return "", err
	}
	if appt.PatientID == nil {
		return "", apperr.Invalid("Appointment has no patient to write a record for")
	}
	if !appt.OwnedByDoctor(act.ID) {
		return "", apperr.Unauthorized()
	}

	rec := models.MedicalRecord{
		AppointmentID: &appt.ID,
		PatientID:     *appt.PatientID,
		DoctorID:      act.ID,
		Title:         input.Title,
		Text:          input.Text,
		Draft:         input.Draft,
	}
	rec.UpdatedAt = nil

	// Record insert and back-reference update are one transaction; a crash
	// between them must not leave the pair out of sync.
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.Records().Create(ctx, &rec); err != nil {
			return err
		}
		return tx.Appointments().SetRecordID(ctx, appt.ID, &rec.ID)
	})
	if err != nil {
		return "", apperr.Internal("creating record", err)
	}

	if !rec.Draft {
		rec.Patient = appt.Patient
		rec.Doctor = appt.Doctor
		s.announceFinal(ctx, &rec)
	}
	return rec.ID, nil
}

// DeleteRecord hard-deletes a record, detaching the appointment
// back-reference first.
func (s *Service) DeleteRecord(ctx context.Context, userID, id string) error {
	act, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if !act.IsDoctor() {
		return apperr.Unauthorized()
	}

	rec, err := s.store.Records().ByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if rec.AppointmentID != nil {
			if err := tx.Appointments().SetRecordID(ctx, *rec.AppointmentID, nil); err != nil {
				return err
			}
		}
		return tx.Records().Delete(ctx, rec.ID)
	})
	if err != nil {
		return apperr.Internal("deleting record", err)
	}
	return nil
}

// DeleteRecordsByIDs removes a batch of records, clearing appointment
// back-references before the delete. Returns the number removed.
func (s *Service) DeleteRecordsByIDs(ctx context.Context, userID string, ids []string) (int64, error) {
	act, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !act.IsDoctor() {
		return 0, apperr.Unauthorized()
	}

	recs, err := s.store.Records().ByIDs(ctx, ids)
	if err != nil {
		return 0, apperr.Internal("loading records", err)
	}
	if len(recs) == 0 {
		return 0, apperr.NotFound("Records")
	}

	var count int64
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		for i := range recs {
			if recs[i].AppointmentID != nil {
				if err := tx.Appointments().SetRecordID(ctx, *recs[i].AppointmentID, nil); err != nil {
					return err
				}
			}
		}
		count, err = tx.Records().DeleteByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return 0, apperr.Internal("deleting records", err)
	}
	return count, nil
}

// SaveRecordsAsFinalByIDs bulk-flips drafts to final for the calling doctor.
// The bulk publish is silent; only the singular finalize path notifies.
func (s *Service) SaveRecordsAsFinalByIDs(ctx context.Context, userID string, ids []string) (int64, error) {
	act, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !act.IsDoctor() {
		return 0, apperr.Unauthorized()
	}

	count, err := s.store.Records().MarkFinalByIDs(ctx, ids, act.ID)
	if err != nil {
		return 0, apperr.Internal("finalizing records", err)
	}
	if count == 0 {
		return 0, apperr.NotFound("Records")
	}
	return count, nil
}

// ListRecords returns the records the actor may see: admins everything,
// doctors their own authored records, patients only their finalized ones.
func (s *Service) ListRecords(ctx context.Context, userID, patientID string) ([]models.MedicalRecord, error) {
	act, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	q := store.RecordQuery{
		Scope:   store.Scope{Role: act.Role, ActorID: act.ID},
		Preload: true,
	}
	if act.IsPatient() {
		// Drafts stay invisible to the patient until finalized.
		q.FinalOnly = true
	} else {
		q.PatientID = patientID
	}

	recs, err := s.store.Records().List(ctx, q)
	if err != nil {
		return nil, apperr.Internal("listing records", err)
	}
	return recs, nil
}
