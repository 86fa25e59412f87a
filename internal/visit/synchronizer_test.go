package visit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/virtualcare/scheduling-engine/internal/appointment"
	"github.com/virtualcare/scheduling-engine/internal/availability"
)

// ---------- Fakes ----------

type fakeRepo struct {
	records  map[uuid.UUID]*Record        // by appointment ID
	sessions map[uuid.UUID]*RemoteSession // by visit record ID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records:  make(map[uuid.UUID]*Record),
		sessions: make(map[uuid.UUID]*RemoteSession),
	}
}

func (f *fakeRepo) GetByAppointmentID(_ context.Context, appointmentID uuid.UUID) (*Record, error) {
	if r, ok := f.records[appointmentID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, ErrVisitNotFound
}

func (f *fakeRepo) CreateRecord(_ context.Context, r *Record) (*Record, error) {
	cp := *r
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.records[cp.AppointmentID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) UpdateRecordStatus(_ context.Context, id uuid.UUID, status VisitStatus) error {
	for _, r := range f.records {
		if r.ID == id {
			r.Status = status
			r.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrVisitNotFound
}

func (f *fakeRepo) UpdateRecordTiming(_ context.Context, id uuid.UUID, date time.Time, startTime string) error {
	for _, r := range f.records {
		if r.ID == id {
			parsed, err := availability.ParseTimeOfDay(startTime)
			if err != nil {
				return err
			}
			r.Date = date
			r.Time = parsed
			r.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrVisitNotFound
}

func (f *fakeRepo) GetSessionByVisitID(_ context.Context, visitID uuid.UUID) (*RemoteSession, error) {
	if s, ok := f.sessions[visitID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, ErrSessionNotFound
}

func (f *fakeRepo) CreateSession(_ context.Context, s *RemoteSession) (*RemoteSession, error) {
	cp := *s
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	f.sessions[cp.VisitRecordID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) EndSession(_ context.Context, id uuid.UUID, endedAt time.Time) error {
	for _, s := range f.sessions {
		if s.ID == id && s.EndedAt == nil {
			t := endedAt
			s.EndedAt = &t
			return nil
		}
	}
	return nil
}

// ---------- Fixture ----------

var syncNow = time.Date(2026, 9, 14, 11, 0, 0, 0, time.UTC)

func newTestSynchronizer(repo *fakeRepo) *Synchronizer {
	return NewSynchronizer(repo, zerolog.Nop()).
		WithClock(func() time.Time { return syncNow })
}

func statusEvent(apptID uuid.UUID, modality appointment.Modality, old, next appointment.Status) appointment.StatusChange {
	return appointment.StatusChange{
		AppointmentID:  apptID,
		PatientID:      uuid.New(),
		PractitionerID: uuid.New(),
		Date:           time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		Time:           availability.NewTimeOfDay(10, 0),
		Modality:       modality,
		OldStatus:      old,
		NewStatus:      next,
		OccurredAt:     syncNow,
	}
}

// ---------- Tests ----------

func TestHandleStatusChange_PendingIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSynchronizer(repo)

	ev := statusEvent(uuid.New(), appointment.ModalityInPerson, "", appointment.StatusPending)
	if err := s.HandleStatusChange(context.Background(), ev); err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(repo.records) != 0 {
		t.Errorf("pending must not create a visit record, got %d", len(repo.records))
	}
}

func TestHandleStatusChange_ConfirmCreatesRecord(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSynchronizer(repo)
	apptID := uuid.New()

	ev := statusEvent(apptID, appointment.ModalityInPerson, appointment.StatusPending, appointment.StatusConfirmed)
	if err := s.HandleStatusChange(context.Background(), ev); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	rec, ok := repo.records[apptID]
	if !ok {
		t.Fatal("expected a visit record after confirmation")
	}
	if rec.Status != VisitScheduled {
		t.Errorf("record status = %s, want scheduled", rec.Status)
	}
	if rec.Time != availability.NewTimeOfDay(10, 0) {
		t.Errorf("record time = %s, want 10:00", rec.Time)
	}
	if len(repo.sessions) != 0 {
		t.Errorf("in-person visit must not get a remote session, got %d", len(repo.sessions))
	}
}

func TestHandleStatusChange_ConfirmIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSynchronizer(repo)
	apptID := uuid.New()

	ev := statusEvent(apptID, appointment.ModalityInPerson, appointment.StatusPending, appointment.StatusConfirmed)
	for i := 0; i < 3; i++ {
		if err := s.HandleStatusChange(context.Background(), ev); err != nil {
			t.Fatalf("confirm replay %d: %v", i, err)
		}
	}
	if len(repo.records) != 1 {
		t.Fatalf("replayed confirmations must converge on one record, got %d", len(repo.records))
	}
}

func TestHandleStatusChange_RemoteConfirmOpensSession(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSynchronizer(repo)
	apptID := uuid.New()

	ev := statusEvent(apptID, appointment.ModalityRemote, appointment.StatusPending, appointment.StatusConfirmed)
	if err := s.HandleStatusChange(context.Background(), ev); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	rec := repo.records[apptID]
	session, ok := repo.sessions[rec.ID]
	if !ok {
		t.Fatal("expected a remote session for a remote visit")
	}
	if session.ChannelID == "" {
		t.Error("session must carry a channel ID")
	}
	if session.EndedAt != nil {
		t.Error("fresh session must not be ended")
	}

	// A second confirmation reuses the session instead of minting a new
	// channel.
	if err := s.HandleStatusChange(context.Background(), ev); err != nil {
		t.Fatalf("confirm replay: %v", err)
	}
	if got := repo.sessions[rec.ID]; got.ChannelID != session.ChannelID {
		t.Errorf("channel changed on replay: %s -> %s", session.ChannelID, got.ChannelID)
	}
}

func TestHandleStatusChange_RescheduleMovesRecord(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSynchronizer(repo)
	apptID := uuid.New()

	confirm := statusEvent(apptID, appointment.ModalityInPerson, appointment.StatusPending, appointment.StatusConfirmed)
	if err := s.HandleStatusChange(context.Background(), confirm); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	move := statusEvent(apptID, appointment.ModalityInPerson, appointment.StatusConfirmed, appointment.StatusRescheduled)
	move.Date = time.Date(2026, 9, 21, 0, 0, 0, 0, time.UTC)
	move.Time = availability.NewTimeOfDay(15, 30)
	if err := s.HandleStatusChange(context.Background(), move); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	rec := repo.records[apptID]
	if !rec.Date.Equal(move.Date) {
		t.Errorf("record date = %s, want %s", rec.Date, move.Date)
	}
	if rec.Time != move.Time {
		t.Errorf("record time = %s, want %s", rec.Time, move.Time)
	}
}

func TestHandleStatusChange_RescheduleBeforeConfirmIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSynchronizer(repo)

	move := statusEvent(uuid.New(), appointment.ModalityInPerson, appointment.StatusPending, appointment.StatusRescheduled)
	if err := s.HandleStatusChange(context.Background(), move); err != nil {
		t.Fatalf("reschedule without record: %v", err)
	}
	if len(repo.records) != 0 {
		t.Errorf("no record may appear before the first confirmation, got %d", len(repo.records))
	}
}

func TestHandleStatusChange_CompleteClosesVisitAndSession(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSynchronizer(repo)
	apptID := uuid.New()

	confirm := statusEvent(apptID, appointment.ModalityRemote, appointment.StatusPending, appointment.StatusConfirmed)
	if err := s.HandleStatusChange(context.Background(), confirm); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	complete := statusEvent(apptID, appointment.ModalityRemote, appointment.StatusConfirmed, appointment.StatusCompleted)
	if err := s.HandleStatusChange(context.Background(), complete); err != nil {
		t.Fatalf("complete: %v", err)
	}

	rec := repo.records[apptID]
	if rec.Status != VisitCompleted {
		t.Errorf("record status = %s, want completed", rec.Status)
	}
	session := repo.sessions[rec.ID]
	if session.EndedAt == nil {
		t.Fatal("session must be ended on completion")
	}
	if !session.EndedAt.Equal(syncNow) {
		t.Errorf("session ended at %s, want the synchronizer clock %s", session.EndedAt, syncNow)
	}
}

func TestHandleStatusChange_CancelWithoutPriorRecordConverges(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSynchronizer(repo)
	apptID := uuid.New()

	// The cancel event arrives before any confirmation was processed;
	// the synchronizer still materializes and closes the record.
	cancel := statusEvent(apptID, appointment.ModalityInPerson, appointment.StatusPending, appointment.StatusCancelled)
	if err := s.HandleStatusChange(context.Background(), cancel); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	rec, ok := repo.records[apptID]
	if !ok {
		t.Fatal("expected a visit record to be created for the cancellation")
	}
	if rec.Status != VisitCancelled {
		t.Errorf("record status = %s, want cancelled", rec.Status)
	}
}

func TestHandleStatusChange_UnknownStatus(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSynchronizer(repo)

	ev := statusEvent(uuid.New(), appointment.ModalityInPerson, "", appointment.Status("vaporized"))
	if err := s.HandleStatusChange(context.Background(), ev); err == nil {
		t.Fatal("expected an error for an unknown status")
	}
}
