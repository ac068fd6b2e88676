package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/Sudhaanshuu/Arogyam/internal/booking"
	"github.com/Sudhaanshuu/Arogyam/internal/calendar"
)

type CreateBookingRequest struct {
	PractitionerID string    `json:"practitioner_id" validate:"required,uuid"`
	PatientID      string    `json:"patient_id" validate:"required,uuid"`
	StartTime      time.Time `json:"start_time" validate:"required"`
	DurationMins   int       `json:"duration_minutes" validate:"required,min=5,max=480"`
}

type RescheduleBookingRequest struct {
	StartTime    time.Time `json:"start_time" validate:"required"`
	DurationMins int       `json:"duration_minutes" validate:"required,min=5,max=480"`
}

type WeeklyRuleRequest struct {
	Weekday   int    `json:"weekday" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required,len=5,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,len=5,datetime=15:04"`
}

type ReplaceScheduleRequest struct {
	Rules []WeeklyRuleRequest `json:"rules" validate:"required,dive"`
}

type CreateExceptionRequest struct {
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime *string `json:"start_time" validate:"omitempty,len=5,datetime=15:04"`
	EndTime   *string `json:"end_time" validate:"omitempty,len=5,datetime=15:04"`
	Reason    string  `json:"reason"`
}

type BookingResponse struct {
	ID             uuid.UUID  `json:"id"`
	PractitionerID uuid.UUID  `json:"practitioner_id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	DurationMins   int        `json:"duration_minutes"`
	Status         string     `json:"status"`
	Version        int64      `json:"version"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID,
		PractitionerID: b.PractitionerID,
		PatientID:      b.PatientID,
		StartTime:      b.StartTime,
		EndTime:        b.EndTime(),
		DurationMins:   b.DurationMins,
		Status:         string(b.Status),
		Version:        b.Version,
		ExpiresAt:      b.ExpiresAt,
	}
}

type SlotResponse struct {
	PractitionerID uuid.UUID `json:"practitioner_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
}

type AvailabilityResponse struct {
	PractitionerID uuid.UUID      `json:"practitioner_id"`
	Date           string         `json:"date"`
	DurationMins   int            `json:"duration_minutes"`
	Slots          []SlotResponse `json:"slots"`
}

type PractitionerResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty *string   `json:"specialty,omitempty"`
	Timezone  string    `json:"timezone"`
}

func toPractitionerResponse(p *calendar.Practitioner) PractitionerResponse {
	return PractitionerResponse{
		ID:        p.ID,
		Name:      p.Name,
		Specialty: p.Specialty,
		Timezone:  p.Timezone,
	}
}

type WeeklyRuleResponse struct {
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
