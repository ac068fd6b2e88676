package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Sudhaanshuu/Arogyam/internal/booking"
	"github.com/Sudhaanshuu/Arogyam/internal/calendar"
)

var validate = validator.New()

// helpers

func requireActor(w http.ResponseWriter, r *http.Request) (booking.Actor, bool) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-User-Id and X-User-Role headers are required")
		return booking.Actor{}, false
	}
	return actor, true
}

// ifMatchVersion reads the version token every mutating endpoint must carry.
// Omission is an error, per the optimistic-concurrency contract.
func ifMatchVersion(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.Trim(r.Header.Get("If-Match"), `"`)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_if_match", "If-Match header with the booking version is required")
		return 0, false
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_if_match", "If-Match must be the integer booking version")
		return 0, false
	}

	return v, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

// availability

func queryAvailabilityHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		practitionerID, err := uuid.Parse(q.Get("practitioner_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}

		date := q.Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date is required, format YYYY-MM-DD")
			return
		}

		durationMins, err := strconv.Atoi(q.Get("duration_minutes"))
		if err != nil || durationMins <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration_minutes must be a positive integer")
			return
		}

		slots, err := svc.QueryAvailability(r.Context(), practitionerID, date, durationMins)
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		resp := AvailabilityResponse{
			PractitionerID: practitionerID,
			Date:           date,
			DurationMins:   durationMins,
			Slots:          make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{
				PractitionerID: s.PractitionerID,
				StartTime:      s.Start,
				EndTime:        s.End,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// bookings

func createBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req CreateBookingRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		practitionerID, _ := uuid.Parse(req.PractitionerID)
		patientID, _ := uuid.Parse(req.PatientID)

		b, err := svc.BookSlot(r.Context(), actor, practitionerID, patientID, req.StartTime.UTC(), req.DurationMins)
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func getBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		b, err := svc.GetBooking(r.Context(), actor, id)
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		w.Header().Set("ETag", fmt.Sprintf(`"%d"`, b.Version))
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func listBookingsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		var (
			result []booking.Booking
			err    error
		)

		switch {
		case q.Get("patient_id") != "":
			var patientID uuid.UUID
			if patientID, err = uuid.Parse(q.Get("patient_id")); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			result, err = svc.ListBookingsByPatient(r.Context(), actor, patientID, limit, offset)
		case q.Get("practitioner_id") != "":
			var practitionerID uuid.UUID
			if practitionerID, err = uuid.Parse(q.Get("practitioner_id")); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
				return
			}
			result, err = svc.ListBookingsByPractitioner(r.Context(), actor, practitionerID, limit, offset)
		default:
			writeError(w, http.StatusBadRequest, "missing_filter", "patient_id or practitioner_id is required")
			return
		}

		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		resp := make([]BookingResponse, 0, len(result))
		for i := range result {
			resp = append(resp, toBookingResponse(&result[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func confirmBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		version, ok := ifMatchVersion(w, r)
		if !ok {
			return
		}

		b, err := svc.ConfirmBooking(r.Context(), actor, id, version)
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func cancelBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		version, ok := ifMatchVersion(w, r)
		if !ok {
			return
		}

		b, err := svc.CancelBooking(r.Context(), actor, id, version)
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func rescheduleBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		version, ok := ifMatchVersion(w, r)
		if !ok {
			return
		}

		var req RescheduleBookingRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		b, err := svc.RescheduleBooking(r.Context(), actor, id, req.StartTime.UTC(), req.DurationMins, version)
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

// practitioners

func listPractitionersHandler(repo calendar.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		if limit <= 0 || limit > 100 {
			limit = 50
		}
		if offset < 0 {
			offset = 0
		}

		practitioners, err := repo.ListPractitioners(r.Context(), q.Get("specialty"), limit, offset)
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		resp := make([]PractitionerResponse, 0, len(practitioners))
		for i := range practitioners {
			resp = append(resp, toPractitionerResponse(&practitioners[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getScheduleHandler(repo calendar.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		if _, err := repo.GetPractitionerByID(r.Context(), id); err != nil {
			handleSchedulerError(w, err)
			return
		}

		rules, err := repo.ListWeeklyRules(r.Context(), id)
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		resp := make([]WeeklyRuleResponse, 0, len(rules))
		for _, wr := range rules {
			resp = append(resp, WeeklyRuleResponse{
				Weekday:   int(wr.Weekday),
				StartTime: wr.StartTime,
				EndTime:   wr.EndTime,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func canEditSchedule(actor booking.Actor, practitionerID uuid.UUID) bool {
	return actor.Role == booking.RoleAdmin ||
		(actor.Role == booking.RolePractitioner && actor.ID == practitionerID)
}

func replaceScheduleHandler(repo calendar.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		if !canEditSchedule(actor, id) {
			writeError(w, http.StatusForbidden, "forbidden", "only the practitioner or an admin may edit the schedule")
			return
		}

		var req ReplaceScheduleRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		// Zero-padded HH:MM compares correctly as a string.
		for _, dto := range req.Rules {
			if dto.StartTime >= dto.EndTime {
				writeError(w, http.StatusBadRequest, "invalid_time_range",
					fmt.Sprintf("end_time %q must be after start_time %q", dto.EndTime, dto.StartTime))
				return
			}
		}

		if _, err := repo.GetPractitionerByID(r.Context(), id); err != nil {
			handleSchedulerError(w, err)
			return
		}

		rules := make([]calendar.WeeklyRule, 0, len(req.Rules))
		for _, dto := range req.Rules {
			rules = append(rules, calendar.WeeklyRule{
				PractitionerID: id,
				Weekday:        time.Weekday(dto.Weekday),
				StartTime:      dto.StartTime,
				EndTime:        dto.EndTime,
			})
		}

		// Existing bookings stay valid: a template change only shapes future
		// availability queries.
		if err := repo.ReplaceWeeklyRules(r.Context(), id, rules); err != nil {
			handleSchedulerError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func createExceptionHandler(repo calendar.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		if !canEditSchedule(actor, id) {
			writeError(w, http.StatusForbidden, "forbidden", "only the practitioner or an admin may edit the schedule")
			return
		}

		var req CreateExceptionRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		if (req.StartTime == nil) != (req.EndTime == nil) {
			writeError(w, http.StatusBadRequest, "invalid_exception", "start_time and end_time must both be set, or both omitted for a closure")
			return
		}
		if req.StartTime != nil && *req.StartTime >= *req.EndTime {
			writeError(w, http.StatusBadRequest, "invalid_time_range",
				fmt.Sprintf("end_time %q must be after start_time %q", *req.EndTime, *req.StartTime))
			return
		}

		if _, err := repo.GetPractitionerByID(r.Context(), id); err != nil {
			handleSchedulerError(w, err)
			return
		}

		date, err := time.Parse(calendar.DateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		ex, err := repo.CreateException(r.Context(), calendar.DateException{
			PractitionerID: id,
			Date:           date,
			StartTime:      req.StartTime,
			EndTime:        req.EndTime,
			Reason:         req.Reason,
		})
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, ex)
	}
}

// handleSchedulerError maps the scheduler's error taxonomy to HTTP statuses.
// Conflicts and version mismatches are recoverable: the client should
// re-fetch availability (or the booking) and retry with fresh data.
func handleSchedulerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calendar.ErrPractitionerNotFound):
		writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, booking.ErrVersionMismatch):
		writeError(w, http.StatusConflict, "version_mismatch", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrHoldExpired):
		writeError(w, http.StatusConflict, "hold_expired", err.Error())
	case errors.Is(err, booking.ErrScheduleContended):
		writeError(w, http.StatusConflict, "schedule_contended", "practitioner schedule is busy, please retry shortly")
	case errors.Is(err, booking.ErrInvalidDuration), errors.Is(err, booking.ErrOffGrid):
		writeError(w, http.StatusBadRequest, "invalid_slot", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
