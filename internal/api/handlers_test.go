package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Sudhaanshuu/Arogyam/internal/booking"
	"github.com/Sudhaanshuu/Arogyam/internal/calendar"
	"github.com/Sudhaanshuu/Arogyam/internal/config"
	"github.com/Sudhaanshuu/Arogyam/internal/metrics"
	"github.com/Sudhaanshuu/Arogyam/internal/notify"
)

type passthroughLocker struct{}

func (passthroughLocker) WithPractitionerLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type testServer struct {
	handler   http.Handler
	collector *metrics.Collector

	practitionerID uuid.UUID
	patientID      uuid.UUID
}

// 2026-03-02 is a Monday; the template opens 09:00-12:00 UTC.
const testDate = "2026-03-02"

func slotAt(h, m int) time.Time {
	return time.Date(2026, time.March, 2, h, m, 0, 0, time.UTC)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	calRepo := calendar.NewMemoryRepository()
	practitionerID := uuid.New()
	calRepo.AddPractitioner(calendar.Practitioner{
		ID:       practitionerID,
		Name:     "Dr. Meera Nair",
		Timezone: "UTC",
		Active:   true,
	})
	err := calRepo.ReplaceWeeklyRules(context.Background(), practitionerID, []calendar.WeeklyRule{
		{Weekday: time.Monday, StartTime: "09:00", EndTime: "12:00"},
	})
	assert.NoError(t, err)

	repo := booking.NewMemoryRepository()
	patientID := uuid.New()
	repo.AddPatient(booking.Patient{ID: patientID, Name: "Asha Rao"})

	collector := metrics.NewCollector(prometheus.NewRegistry())
	svc := booking.NewService(
		repo,
		calendar.NewCalendar(calRepo),
		passthroughLocker{},
		notify.Nop{},
		collector,
		zap.NewNop(),
		config.Config{
			BookingHoldTTL:  10 * time.Minute,
			MinDurationMins: 15,
			MaxDurationMins: 120,
		},
	)

	handler := NewRouter(RouterConfig{
		Service:      svc,
		CalendarRepo: calRepo,
		Log:          zap.NewNop(),
		Metrics:      collector,
		Env:          "test",
		Version:      "test",
	})

	return &testServer{
		handler:        handler,
		collector:      collector,
		practitionerID: practitionerID,
		patientID:      patientID,
	}
}

func (ts *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) asPatient() map[string]string {
	return map[string]string{
		"X-User-Id":   ts.patientID.String(),
		"X-User-Role": "patient",
	}
}

func (ts *testServer) asPractitioner() map[string]string {
	return map[string]string{
		"X-User-Id":   ts.practitionerID.String(),
		"X-User-Role": "practitioner",
	}
}

func withIfMatch(headers map[string]string, version int64) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out["If-Match"] = fmt.Sprintf(`"%d"`, version)
	return out
}

func (ts *testServer) createBooking(t *testing.T, start time.Time, durationMins int) BookingResponse {
	t.Helper()

	rec := ts.do(http.MethodPost, "/bookings", CreateBookingRequest{
		PractitionerID: ts.practitionerID.String(),
		PatientID:      ts.patientID.String(),
		StartTime:      start,
		DurationMins:   durationMins,
	}, ts.asPatient())
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp BookingResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp ErrorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestAvailabilityEndpoint(t *testing.T) {
	t.Run("returns the free slot grid", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodGet,
			"/availability?practitioner_id="+ts.practitionerID.String()+"&date="+testDate+"&duration_minutes=30",
			nil, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp AvailabilityResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Slots, 6)
		assert.Equal(t, slotAt(9, 0), resp.Slots[0].StartTime.UTC())
	})

	t.Run("works without identity headers", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodGet,
			"/availability?practitioner_id="+ts.practitionerID.String()+"&date="+testDate+"&duration_minutes=30",
			nil, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bad practitioner id", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodGet, "/availability?practitioner_id=nope&date="+testDate+"&duration_minutes=30", nil, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing date", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodGet, "/availability?practitioner_id="+ts.practitionerID.String()+"&duration_minutes=30", nil, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing_date", errorCode(t, rec))
	})

	t.Run("unknown practitioner maps to 404", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodGet,
			"/availability?practitioner_id="+uuid.NewString()+"&date="+testDate+"&duration_minutes=30",
			nil, nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "practitioner_not_found", errorCode(t, rec))
	})
}

func TestCreateBookingEndpoint(t *testing.T) {
	t.Run("creates a pending booking", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.createBooking(t, slotAt(9, 0), 30)

		assert.Equal(t, "pending", resp.Status)
		assert.Equal(t, int64(1), resp.Version)
		assert.NotNil(t, resp.ExpiresAt)
		assert.Equal(t, slotAt(9, 30), resp.EndTime.UTC())
	})

	t.Run("requires identity", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodPost, "/bookings", CreateBookingRequest{
			PractitionerID: ts.practitionerID.String(),
			PatientID:      ts.patientID.String(),
			StartTime:      slotAt(9, 0),
			DurationMins:   30,
		}, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "missing_identity", errorCode(t, rec))
	})

	t.Run("double booking maps to 409", func(t *testing.T) {
		ts := newTestServer(t)
		ts.createBooking(t, slotAt(9, 0), 30)

		rec := ts.do(http.MethodPost, "/bookings", CreateBookingRequest{
			PractitionerID: ts.practitionerID.String(),
			PatientID:      ts.patientID.String(),
			StartTime:      slotAt(9, 0),
			DurationMins:   30,
		}, ts.asPatient())

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "slot_taken", errorCode(t, rec))
	})

	t.Run("off-grid start maps to 400", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodPost, "/bookings", CreateBookingRequest{
			PractitionerID: ts.practitionerID.String(),
			PatientID:      ts.patientID.String(),
			StartTime:      slotAt(9, 10),
			DurationMins:   30,
		}, ts.asPatient())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_slot", errorCode(t, rec))
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		ts := newTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewBufferString("{not json"))
		for k, v := range ts.asPatient() {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation rejects missing fields", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodPost, "/bookings", map[string]any{
			"practitioner_id": ts.practitionerID.String(),
		}, ts.asPatient())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_failed", errorCode(t, rec))
	})
}

func TestGetBookingEndpoint(t *testing.T) {
	t.Run("returns the booking with an ETag", func(t *testing.T) {
		ts := newTestServer(t)
		created := ts.createBooking(t, slotAt(9, 0), 30)

		rec := ts.do(http.MethodGet, "/bookings/"+created.ID.String(), nil, ts.asPatient())

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `"1"`, rec.Header().Get("ETag"))
	})

	t.Run("stranger gets 403", func(t *testing.T) {
		ts := newTestServer(t)
		created := ts.createBooking(t, slotAt(9, 0), 30)

		rec := ts.do(http.MethodGet, "/bookings/"+created.ID.String(), nil, map[string]string{
			"X-User-Id":   uuid.NewString(),
			"X-User-Role": "patient",
		})

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown id gets 404", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodGet, "/bookings/"+uuid.NewString(), nil, ts.asPatient())

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-uuid path gets 400", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodGet, "/bookings/not-a-uuid", nil, ts.asPatient())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestConfirmBookingEndpoint(t *testing.T) {
	t.Run("confirms with the current version", func(t *testing.T) {
		ts := newTestServer(t)
		created := ts.createBooking(t, slotAt(9, 0), 30)

		rec := ts.do(http.MethodPost, "/bookings/"+created.ID.String()+"/confirm", nil,
			withIfMatch(ts.asPatient(), created.Version))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp BookingResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "confirmed", resp.Status)
		assert.Equal(t, created.Version+1, resp.Version)
		assert.Nil(t, resp.ExpiresAt)
	})

	t.Run("missing If-Match is 400", func(t *testing.T) {
		ts := newTestServer(t)
		created := ts.createBooking(t, slotAt(9, 0), 30)

		rec := ts.do(http.MethodPost, "/bookings/"+created.ID.String()+"/confirm", nil, ts.asPatient())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing_if_match", errorCode(t, rec))
	})

	t.Run("non-numeric If-Match is 400", func(t *testing.T) {
		ts := newTestServer(t)
		created := ts.createBooking(t, slotAt(9, 0), 30)

		headers := ts.asPatient()
		headers["If-Match"] = `"abc"`
		rec := ts.do(http.MethodPost, "/bookings/"+created.ID.String()+"/confirm", nil, headers)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_if_match", errorCode(t, rec))
	})

	t.Run("stale version is 409", func(t *testing.T) {
		ts := newTestServer(t)
		created := ts.createBooking(t, slotAt(9, 0), 30)

		rec := ts.do(http.MethodPost, "/bookings/"+created.ID.String()+"/confirm", nil,
			withIfMatch(ts.asPatient(), created.Version+3))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "version_mismatch", errorCode(t, rec))
	})

	t.Run("confirming twice is 409", func(t *testing.T) {
		ts := newTestServer(t)
		created := ts.createBooking(t, slotAt(9, 0), 30)
		first := ts.do(http.MethodPost, "/bookings/"+created.ID.String()+"/confirm", nil,
			withIfMatch(ts.asPatient(), created.Version))
		assert.Equal(t, http.StatusOK, first.Code)

		rec := ts.do(http.MethodPost, "/bookings/"+created.ID.String()+"/confirm", nil,
			withIfMatch(ts.asPatient(), created.Version+1))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "invalid_status_transition", errorCode(t, rec))
	})
}

func TestCancelBookingEndpoint(t *testing.T) {
	t.Run("cancels and frees the slot", func(t *testing.T) {
		ts := newTestServer(t)
		created := ts.createBooking(t, slotAt(9, 0), 30)

		rec := ts.do(http.MethodPost, "/bookings/"+created.ID.String()+"/cancel", nil,
			withIfMatch(ts.asPatient(), created.Version))
		assert.Equal(t, http.StatusOK, rec.Code)

		again := ts.createBooking(t, slotAt(9, 0), 30)
		assert.Equal(t, "pending", again.Status)
	})

	t.Run("practitioner may cancel too", func(t *testing.T) {
		ts := newTestServer(t)
		created := ts.createBooking(t, slotAt(9, 0), 30)

		rec := ts.do(http.MethodPost, "/bookings/"+created.ID.String()+"/cancel", nil,
			withIfMatch(ts.asPractitioner(), created.Version))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRescheduleBookingEndpoint(t *testing.T) {
	t.Run("moves the booking to a fresh hold", func(t *testing.T) {
		ts := newTestServer(t)
		created := ts.createBooking(t, slotAt(9, 0), 30)

		rec := ts.do(http.MethodPatch, "/bookings/"+created.ID.String(), RescheduleBookingRequest{
			StartTime:    slotAt(10, 0),
			DurationMins: 30,
		}, withIfMatch(ts.asPatient(), created.Version))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp BookingResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEqual(t, created.ID, resp.ID)
		assert.Equal(t, "pending", resp.Status)
		assert.Equal(t, int64(1), resp.Version)
		assert.Equal(t, slotAt(10, 0), resp.StartTime.UTC())
	})

	t.Run("conflict leaves the original booking readable", func(t *testing.T) {
		ts := newTestServer(t)
		ts.createBooking(t, slotAt(10, 0), 30)
		created := ts.createBooking(t, slotAt(9, 0), 30)

		rec := ts.do(http.MethodPatch, "/bookings/"+created.ID.String(), RescheduleBookingRequest{
			StartTime:    slotAt(10, 0),
			DurationMins: 30,
		}, withIfMatch(ts.asPatient(), created.Version))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "slot_taken", errorCode(t, rec))

		kept := ts.do(http.MethodGet, "/bookings/"+created.ID.String(), nil, ts.asPatient())
		assert.Equal(t, http.StatusOK, kept.Code)
		var resp BookingResponse
		assert.NoError(t, json.Unmarshal(kept.Body.Bytes(), &resp))
		assert.Equal(t, "pending", resp.Status)
		assert.Equal(t, created.Version, resp.Version)
	})
}

func TestListBookingsEndpoint(t *testing.T) {
	t.Run("filters by patient", func(t *testing.T) {
		ts := newTestServer(t)
		created := ts.createBooking(t, slotAt(9, 0), 30)

		rec := ts.do(http.MethodGet, "/bookings?patient_id="+ts.patientID.String(), nil, ts.asPatient())

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []BookingResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 1)
		assert.Equal(t, created.ID, resp[0].ID)
	})

	t.Run("missing filter is 400", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodGet, "/bookings", nil, ts.asPatient())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing_filter", errorCode(t, rec))
	})

	t.Run("patient cannot list a practitioner", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodGet, "/bookings?practitioner_id="+ts.practitionerID.String(), nil, ts.asPatient())

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestPractitionerEndpoints(t *testing.T) {
	t.Run("lists the directory", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodGet, "/practitioners", nil, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []PractitionerResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 1)
		assert.Equal(t, ts.practitionerID, resp[0].ID)
	})

	t.Run("returns the weekly schedule", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodGet, "/practitioners/"+ts.practitionerID.String()+"/schedule", nil, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []WeeklyRuleResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 1)
		assert.Equal(t, int(time.Monday), resp[0].Weekday)
	})

	t.Run("practitioner replaces their own schedule", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodPut, "/practitioners/"+ts.practitionerID.String()+"/schedule",
			ReplaceScheduleRequest{Rules: []WeeklyRuleRequest{
				{Weekday: int(time.Tuesday), StartTime: "10:00", EndTime: "13:00"},
			}}, ts.asPractitioner())
		assert.Equal(t, http.StatusNoContent, rec.Code)

		got := ts.do(http.MethodGet, "/practitioners/"+ts.practitionerID.String()+"/schedule", nil, nil)
		var resp []WeeklyRuleResponse
		assert.NoError(t, json.Unmarshal(got.Body.Bytes(), &resp))
		assert.Len(t, resp, 1)
		assert.Equal(t, int(time.Tuesday), resp[0].Weekday)
	})

	t.Run("template change does not disturb existing bookings", func(t *testing.T) {
		ts := newTestServer(t)
		created := ts.createBooking(t, slotAt(9, 0), 30)

		rec := ts.do(http.MethodPut, "/practitioners/"+ts.practitionerID.String()+"/schedule",
			ReplaceScheduleRequest{Rules: []WeeklyRuleRequest{
				{Weekday: int(time.Friday), StartTime: "10:00", EndTime: "13:00"},
			}}, ts.asPractitioner())
		assert.Equal(t, http.StatusNoContent, rec.Code)

		kept := ts.do(http.MethodGet, "/bookings/"+created.ID.String(), nil, ts.asPatient())
		assert.Equal(t, http.StatusOK, kept.Code)
		var resp BookingResponse
		assert.NoError(t, json.Unmarshal(kept.Body.Bytes(), &resp))
		assert.Equal(t, "pending", resp.Status)
	})

	t.Run("unparsable rule times are rejected, availability stays readable", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodPut, "/practitioners/"+ts.practitionerID.String()+"/schedule",
			ReplaceScheduleRequest{Rules: []WeeklyRuleRequest{
				{Weekday: int(time.Monday), StartTime: "ab:cd", EndTime: "12:00"},
			}}, ts.asPractitioner())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_failed", errorCode(t, rec))

		avail := ts.do(http.MethodGet,
			"/availability?practitioner_id="+ts.practitionerID.String()+"&date="+testDate+"&duration_minutes=30",
			nil, nil)
		assert.Equal(t, http.StatusOK, avail.Code)
		var resp AvailabilityResponse
		assert.NoError(t, json.Unmarshal(avail.Body.Bytes(), &resp))
		assert.Len(t, resp.Slots, 6)
	})

	t.Run("inverted rule interval is rejected", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodPut, "/practitioners/"+ts.practitionerID.String()+"/schedule",
			ReplaceScheduleRequest{Rules: []WeeklyRuleRequest{
				{Weekday: int(time.Monday), StartTime: "15:00", EndTime: "09:00"},
			}}, ts.asPractitioner())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_time_range", errorCode(t, rec))
	})

	t.Run("inverted exception interval is rejected, availability stays readable", func(t *testing.T) {
		ts := newTestServer(t)
		start, end := "15:00", "09:00"

		rec := ts.do(http.MethodPost, "/practitioners/"+ts.practitionerID.String()+"/exceptions",
			CreateExceptionRequest{Date: testDate, StartTime: &start, EndTime: &end}, ts.asPractitioner())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_time_range", errorCode(t, rec))

		avail := ts.do(http.MethodGet,
			"/availability?practitioner_id="+ts.practitionerID.String()+"&date="+testDate+"&duration_minutes=30",
			nil, nil)
		assert.Equal(t, http.StatusOK, avail.Code)
	})

	t.Run("unparsable exception times are rejected", func(t *testing.T) {
		ts := newTestServer(t)
		start, end := "zz:99", "17:00"

		rec := ts.do(http.MethodPost, "/practitioners/"+ts.practitionerID.String()+"/exceptions",
			CreateExceptionRequest{Date: testDate, StartTime: &start, EndTime: &end}, ts.asPractitioner())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_failed", errorCode(t, rec))
	})

	t.Run("patient cannot edit a schedule", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodPut, "/practitioners/"+ts.practitionerID.String()+"/schedule",
			ReplaceScheduleRequest{Rules: []WeeklyRuleRequest{
				{Weekday: int(time.Tuesday), StartTime: "10:00", EndTime: "13:00"},
			}}, ts.asPatient())

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("closure exception removes the day's availability", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(http.MethodPost, "/practitioners/"+ts.practitionerID.String()+"/exceptions",
			CreateExceptionRequest{Date: testDate, Reason: "public holiday"}, ts.asPractitioner())
		assert.Equal(t, http.StatusCreated, rec.Code)

		avail := ts.do(http.MethodGet,
			"/availability?practitioner_id="+ts.practitionerID.String()+"&date="+testDate+"&duration_minutes=30",
			nil, nil)
		assert.Equal(t, http.StatusOK, avail.Code)
		var resp AvailabilityResponse
		assert.NoError(t, json.Unmarshal(avail.Body.Bytes(), &resp))
		assert.Empty(t, resp.Slots)
	})

	t.Run("one-sided exception times are rejected", func(t *testing.T) {
		ts := newTestServer(t)
		start := "13:00"

		rec := ts.do(http.MethodPost, "/practitioners/"+ts.practitionerID.String()+"/exceptions",
			CreateExceptionRequest{Date: testDate, StartTime: &start}, ts.asPractitioner())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_exception", errorCode(t, rec))
	})
}

func TestRequestMetricsUseRoutePatterns(t *testing.T) {
	ts := newTestServer(t)
	first := ts.createBooking(t, slotAt(9, 0), 30)
	second := ts.createBooking(t, slotAt(10, 0), 30)

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		rec := ts.do(http.MethodGet, "/bookings/"+id.String(), nil, ts.asPatient())
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	// Both reads land on one label set, not one per booking id.
	got := testutil.ToFloat64(ts.collector.RequestsTotal.WithLabelValues("GET", "/bookings/{id}", "200"))
	assert.Equal(t, float64(2), got)
}

func TestHealthLiveEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health/live", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp LivenessResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}
