package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/virtualcare/scheduling-engine/internal/appointment"
	"github.com/virtualcare/scheduling-engine/internal/availability"
)

const dateLayout = "2006-01-02"

type RuleRequest struct {
	ID          string `json:"id,omitempty"`
	Weekday     int    `json:"weekday"`
	OpenTime    string `json:"open_time"`
	CloseTime   string `json:"close_time"`
	SlotMinutes int    `json:"slot_minutes"`
	BreakStart  string `json:"break_start,omitempty"`
	BreakEnd    string `json:"break_end,omitempty"`
	Active      bool   `json:"active"`
}

type RuleResponse struct {
	ID          uuid.UUID `json:"id"`
	Weekday     string    `json:"weekday"`
	OpenTime    string    `json:"open_time"`
	CloseTime   string    `json:"close_time"`
	SlotMinutes int       `json:"slot_minutes"`
	BreakStart  *string   `json:"break_start,omitempty"`
	BreakEnd    *string   `json:"break_end,omitempty"`
	Active      bool      `json:"active"`
}

func toRuleResponse(r *availability.Rule) RuleResponse {
	resp := RuleResponse{
		ID:          r.ID,
		Weekday:     r.Weekday.String(),
		OpenTime:    r.OpenTime.String(),
		CloseTime:   r.CloseTime.String(),
		SlotMinutes: r.SlotMinutes,
		Active:      r.Active,
	}
	if r.BreakStart != nil {
		s := r.BreakStart.String()
		resp.BreakStart = &s
	}
	if r.BreakEnd != nil {
		s := r.BreakEnd.String()
		resp.BreakEnd = &s
	}
	return resp
}

type BlackoutRequest struct {
	ID        string `json:"id,omitempty"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Category  string `json:"category"`
	FullDay   bool   `json:"full_day"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Note      string `json:"note,omitempty"`
}

type BlackoutResponse struct {
	ID        uuid.UUID `json:"id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Category  string    `json:"category"`
	FullDay   bool      `json:"full_day"`
	StartTime *string   `json:"start_time,omitempty"`
	EndTime   *string   `json:"end_time,omitempty"`
	Note      string    `json:"note,omitempty"`
}

func toBlackoutResponse(b *availability.Blackout) BlackoutResponse {
	resp := BlackoutResponse{
		ID:        b.ID,
		StartDate: b.StartDate.Format(dateLayout),
		EndDate:   b.EndDate.Format(dateLayout),
		Category:  string(b.Category),
		FullDay:   b.FullDay,
		Note:      b.Note,
	}
	if b.StartTime != nil {
		s := b.StartTime.String()
		resp.StartTime = &s
	}
	if b.EndTime != nil {
		s := b.EndTime.String()
		resp.EndTime = &s
	}
	return resp
}

type SlotResponse struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Minutes   int    `json:"minutes"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

func toSlotResponse(s availability.Slot) SlotResponse {
	return SlotResponse{
		Date:      s.Date.Format(dateLayout),
		Time:      s.Time.String(),
		Minutes:   s.Minutes,
		Available: s.Available,
		Reason:    s.Reason,
	}
}

type CreateAppointmentRequest struct {
	PatientID      string `json:"patient_id"`
	PractitionerID string `json:"practitioner_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Modality       string `json:"modality,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Minutes        int       `json:"minutes"`
	Modality       string    `json:"modality"`
	Reason         string    `json:"reason,omitempty"`
	Status         string    `json:"status"`
	OriginalDate   *string   `json:"original_date,omitempty"`
	OriginalTime   *string   `json:"original_time,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		PractitionerID: a.PractitionerID,
		Date:           a.Date.Format(dateLayout),
		Time:           a.Time.String(),
		Minutes:        a.Minutes,
		Modality:       string(a.Modality),
		Reason:         a.Reason,
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if a.OriginalDate != nil {
		s := a.OriginalDate.Format(dateLayout)
		resp.OriginalDate = &s
	}
	if a.OriginalTime != nil {
		s := a.OriginalTime.String()
		resp.OriginalTime = &s
	}
	return resp
}
