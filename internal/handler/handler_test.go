package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/timeslot-reservation/internal/booking"
	"github.com/iliyamo/timeslot-reservation/internal/model"
	"github.com/iliyamo/timeslot-reservation/internal/repository"
	"github.com/iliyamo/timeslot-reservation/internal/service"
	"github.com/iliyamo/timeslot-reservation/internal/utils"
)

type fakeBooker struct {
	bookErr   error
	cancelErr error
	gotName   string
	gotLabel  string
}

func (f *fakeBooker) Book(_ context.Context, name, label string) (*model.Reservation, error) {
	f.gotName, f.gotLabel = name, label
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &model.Reservation{ID: 1, Name: name, SlotLabel: label, OrderInSlot: 1}, nil
}

func (f *fakeBooker) Cancel(_ context.Context, name, label string) error {
	f.gotName, f.gotLabel = name, label
	return f.cancelErr
}

func (f *fakeBooker) Slots(context.Context) (service.SlotListing, error) {
	s := booking.DefaultSchedule()
	return service.SlotListing{Items: []booking.SlotView{s.SummarizeSlot(s.Start, 0, 1)}, Open: true}, nil
}

type fakePurger struct{ prefixes []string }

func (f *fakePurger) Purge(_ context.Context, prefix string) error {
	f.prefixes = append(f.prefixes, prefix)
	return nil
}

func do(t *testing.T, h echo.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestBookingCreate(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantPurge  bool
	}{
		{name: "accepted", wantStatus: http.StatusCreated, wantPurge: true},
		{name: "zone taken", err: &service.RejectedError{Reason: booking.ZoneAlreadyBooked}, wantStatus: http.StatusConflict, wantError: "zone_already_booked"},
		{name: "full", err: &service.RejectedError{Reason: booking.SlotFull}, wantStatus: http.StatusConflict, wantError: "slot_full"},
		{name: "morning inside", err: &service.RejectedError{Reason: booking.MorningInsideNotAllowed}, wantStatus: http.StatusConflict, wantError: "morning_inside_not_allowed"},
		{name: "bad slot", err: &service.RejectedError{Reason: booking.ParseError}, wantStatus: http.StatusBadRequest, wantError: "parse_error"},
		{name: "gate closed", err: &service.RejectedError{Reason: booking.NotYetOpen}, wantStatus: http.StatusForbidden, wantError: "not_yet_open"},
		{name: "empty name", err: service.ErrInvalidInput, wantStatus: http.StatusBadRequest},
		{name: "db down", err: assert.AnError, wantStatus: http.StatusInternalServerError, wantError: "failed to create reservation"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeBooker{bookErr: tc.err}
			cache := &fakePurger{}
			h := NewBookingHandler(svc, cache, "slots")

			rec := do(t, h.Create, http.MethodPost, "/v1/reservations", `{"name":"Kim","timeslot":"2025-05-25 14:00 (안)"}`)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, "Kim", svc.gotName)
			assert.Equal(t, "2025-05-25 14:00 (안)", svc.gotLabel)
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, decode(t, rec)["error"])
			}
			if tc.wantPurge {
				assert.Equal(t, []string{"slots"}, cache.prefixes)
			} else {
				assert.Empty(t, cache.prefixes)
			}
		})
	}
}

func TestBookingCreate_BadBody(t *testing.T) {
	h := NewBookingHandler(&fakeBooker{}, nil, "slots")
	rec := do(t, h.Create, http.MethodPost, "/v1/reservations", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingCancel(t *testing.T) {
	cache := &fakePurger{}
	h := NewBookingHandler(&fakeBooker{}, cache, "slots")
	rec := do(t, h.Cancel, http.MethodDelete, "/v1/reservations", `{"name":"Kim","timeslot":"2025-05-25 10:00"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, cache.prefixes, 1)

	h = NewBookingHandler(&fakeBooker{cancelErr: repository.ErrNotFound}, nil, "slots")
	rec = do(t, h.Cancel, http.MethodDelete, "/v1/reservations", `{"name":"Kim","timeslot":"2025-05-25 10:00"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingSlots(t *testing.T) {
	h := NewBookingHandler(&fakeBooker{}, nil, "slots")
	rec := do(t, h.Slots, http.MethodGet, "/v1/slots", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["open"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	first := items[0].(map[string]any)
	assert.Equal(t, "2025-05-25 10:00", first["time"])
	assert.Equal(t, float64(1), first["out"].(map[string]any)["reserved"])
}

type fakeAdmin struct {
	deleted []uint64
	setRaw  string
}

func (f *fakeAdmin) List(context.Context) ([]model.Reservation, error) {
	return []model.Reservation{{ID: 1, Name: "Kim", SlotLabel: "2025-05-25 10:00", OrderInSlot: 1}}, nil
}

func (f *fakeAdmin) Add(_ context.Context, name, label string) (*model.Reservation, error) {
	return &model.Reservation{ID: 2, Name: name, SlotLabel: label, OrderInSlot: 1}, nil
}

func (f *fakeAdmin) Delete(_ context.Context, id uint64) error {
	if id == 404 {
		return repository.ErrNotFound
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAdmin) ToggleUsed(_ context.Context, id uint64) (*model.Reservation, error) {
	return &model.Reservation{ID: id, Used: true}, nil
}

func (f *fakeAdmin) ResetUsed(context.Context) (int64, error) { return 4, nil }

func (f *fakeAdmin) OpenTime(context.Context) (service.OpenTimeView, error) {
	return service.OpenTimeView{Raw: f.setRaw, Open: f.setRaw == ""}, nil
}

func (f *fakeAdmin) SetOpenTime(ctx context.Context, raw string) (service.OpenTimeView, error) {
	if raw == "bogus" {
		return service.OpenTimeView{}, service.ErrInvalidInput
	}
	f.setRaw = raw
	return f.OpenTime(ctx)
}

func (f *fakeAdmin) Login(password string) (utils.AccessToken, error) {
	if password != "letmein" {
		return utils.AccessToken{}, service.ErrUnauthorized
	}
	return utils.AccessToken{Token: "tok", Exp: time.Date(2025, 5, 25, 12, 0, 0, 0, time.UTC)}, nil
}

func TestAdminLogin(t *testing.T) {
	h := NewAdminHandler(&fakeAdmin{}, nil, "slots")

	rec := do(t, h.Login, http.MethodPost, "/v1/admin/login", `{"password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h.Login, http.MethodPost, "/v1/admin/login", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h.Login, http.MethodPost, "/v1/admin/login", `{"password":"letmein"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	access := decode(t, rec)["access"].(map[string]any)
	assert.Equal(t, "tok", access["token"])
	assert.Equal(t, "2025-05-25T12:00:00Z", access["expires"])
}

func TestAdminDelete(t *testing.T) {
	svc := &fakeAdmin{}
	cache := &fakePurger{}
	h := NewAdminHandler(svc, cache, "slots")
	e := echo.New()

	call := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/v1/admin/reservations/"+id, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(id)
		require.NoError(t, h.Delete(c))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("7").Code)
	assert.Equal(t, []uint64{7}, svc.deleted)
	assert.Equal(t, []string{"slots"}, cache.prefixes)

	assert.Equal(t, http.StatusNotFound, call("404").Code)
	assert.Equal(t, http.StatusBadRequest, call("abc").Code)
	assert.Equal(t, http.StatusBadRequest, call("0").Code)
}

func TestAdminOpenTime(t *testing.T) {
	svc := &fakeAdmin{}
	cache := &fakePurger{}
	h := NewAdminHandler(svc, cache, "slots")

	rec := do(t, h.SetOpenTime, http.MethodPut, "/v1/admin/open-time", `{"open_time":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, cache.prefixes)

	rec = do(t, h.SetOpenTime, http.MethodPut, "/v1/admin/open-time", `{"open_time":"2025-05-25 09:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-05-25 09:00", decode(t, rec)["open_time"])
	assert.Len(t, cache.prefixes, 1)

	rec = do(t, h.OpenTime, http.MethodGet, "/v1/admin/open-time", "")
	assert.Equal(t, false, decode(t, rec)["open"])
}

func TestAdminListAddReset(t *testing.T) {
	h := NewAdminHandler(&fakeAdmin{}, &fakePurger{}, "slots")

	rec := do(t, h.List, http.MethodGet, "/v1/admin/reservations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)

	rec = do(t, h.Add, http.MethodPost, "/v1/admin/reservations", `{"name":"Lee","timeslot":"2025-05-25 10:05"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode(t, rec)["reservation"].(map[string]any)
	assert.Equal(t, "Lee", res["name"])

	rec = do(t, h.ResetUsed, http.MethodPost, "/v1/admin/reservations/reset-used", "")
	assert.Equal(t, float64(4), decode(t, rec)["reset"])
}

func TestHealth(t *testing.T) {
	rec := do(t, Health, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
