package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/dispatch"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/model"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/payload"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/repository"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/usecase"
	"github.com/vasapolrittideah/reminder-app/shared/auth"
	"github.com/vasapolrittideah/reminder-app/shared/mailer"
	"github.com/vasapolrittideah/reminder-app/shared/validation"
)

const (
	accessSecret  = "access-secret"
	serviceSecret = "service-secret"
)

type fakeUsecase struct {
	usecase.ReminderUsecase

	created    usecase.CreateReminderParams
	getErr     error
	deleteErr  error
	sendErr    error
	sentTo     string
	lastUserID string
}

func (f *fakeUsecase) CreateReminder(_ context.Context, userID string, params usecase.CreateReminderParams) (*model.Reminder, error) {
	f.lastUserID = userID
	f.created = params
	return &model.Reminder{ID: "r1", UserID: userID, Title: params.Title, ScheduledAt: params.ScheduledAt}, nil
}

func (f *fakeUsecase) ListReminders(_ context.Context, userID string, page usecase.Page) ([]*model.Reminder, error) {
	f.lastUserID = userID
	return []*model.Reminder{{ID: "r1", Title: "Dentist"}, {ID: "r2", Title: "Rent"}}, nil
}

func (f *fakeUsecase) GetReminder(_ context.Context, userID, id string) (*model.Reminder, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &model.Reminder{ID: id, UserID: userID, Title: "Dentist"}, nil
}

func (f *fakeUsecase) DeleteReminder(context.Context, string, string) error {
	return f.deleteErr
}

func (f *fakeUsecase) EmptyRecycleBin(context.Context, string) (int64, error) {
	return 3, nil
}

func (f *fakeUsecase) SendTestEmail(_ context.Context, _ string, recipient string) (mailer.Receipt, error) {
	f.sentTo = recipient
	if f.sendErr != nil {
		return mailer.Receipt{}, f.sendErr
	}
	return mailer.Receipt{Transport: mailer.TransportLog, Simulated: true}, nil
}

type fakeRunner struct {
	summary dispatch.Summary
	err     error
}

func (f *fakeRunner) RunScanCycle(context.Context) (dispatch.Summary, error) {
	return f.summary, f.err
}

func newTestRouter(t *testing.T, uc usecase.ReminderUsecase, runner DispatchRunner) http.Handler {
	t.Helper()

	v, err := validation.New()
	require.NoError(t, err)

	logger := zerolog.Nop()
	return NewRouter(uc, runner, v, &logger, RouterConfig{
		JWTAuth:       auth.NewJWTAuthenticator("reminder-app", "reminder-app"),
		AccessSecret:  accessSecret,
		ServiceSecret: serviceSecret,
	})
}

func bearer(t *testing.T, userID, secret string) string {
	t.Helper()

	jwtAuth := auth.NewJWTAuthenticator("reminder-app", "reminder-app")
	token, err := jwtAuth.GenerateToken(userID, "test", secret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, h http.Handler, method, path, body, authorization string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestRouter(t, &fakeUsecase{}, &fakeRunner{}), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReminderRoutes_RequireToken(t *testing.T) {
	h := newTestRouter(t, &fakeUsecase{}, &fakeRunner{})

	rec := do(t, h, http.MethodGet, "/v1/reminders", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/reminders", "", bearer(t, "u1", "wrong-secret"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/reminders", "", bearer(t, "", accessSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a token without user_id is not a user token")
}

func TestCreateReminder(t *testing.T) {
	uc := &fakeUsecase{}
	h := newTestRouter(t, uc, &fakeRunner{})

	rec := do(t, h, http.MethodPost, "/v1/reminders",
		`{"title":"Dentist","reminder_time":"2026-03-02 10:00:00","recipient_email":"friend@x.com"}`,
		bearer(t, "u1", accessSecret))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp payload.ReminderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "r1", resp.ID)
	assert.Equal(t, "u1", uc.lastUserID)
	require.NotNil(t, uc.created.RecipientEmail)
	assert.Equal(t, "friend@x.com", *uc.created.RecipientEmail)
}

func TestCreateReminder_ValidationErrors(t *testing.T) {
	h := newTestRouter(t, &fakeUsecase{}, &fakeRunner{})

	rec := do(t, h, http.MethodPost, "/v1/reminders",
		`{"title":"","reminder_time":"2026-03-02T10:00","recipient_email":"not-an-email"}`,
		bearer(t, "u1", accessSecret))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp payload.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "title")
	assert.Contains(t, resp.Fields, "reminder_time")
	assert.Contains(t, resp.Fields, "recipient_email")

	rec = do(t, h, http.MethodPost, "/v1/reminders", `{"title":`, bearer(t, "u1", accessSecret))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListReminders(t *testing.T) {
	h := newTestRouter(t, &fakeUsecase{}, &fakeRunner{})

	rec := do(t, h, http.MethodGet, "/v1/reminders?limit=10", "", bearer(t, "u1", accessSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp payload.ListRemindersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Reminders, 2)

	rec = do(t, h, http.MethodGet, "/v1/reminders?limit=abc", "", bearer(t, "u1", accessSecret))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsecaseErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"NotFound", repository.ErrReminderNotFound, http.StatusNotFound},
		{"NotOwned", usecase.ErrReminderNotOwned, http.StatusForbidden},
		{"Unexpected", errors.New("socket closed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, &fakeUsecase{getErr: tt.err}, &fakeRunner{})
			rec := do(t, h, http.MethodGet, "/v1/reminders/r1", "", bearer(t, "u1", accessSecret))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestTrashRoutes(t *testing.T) {
	h := newTestRouter(t, &fakeUsecase{}, &fakeRunner{})

	rec := do(t, h, http.MethodDelete, "/v1/reminders/trash", "", bearer(t, "u1", accessSecret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":3}`, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/v1/reminders/r1", "", bearer(t, "u1", accessSecret))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSendTestEmail(t *testing.T) {
	uc := &fakeUsecase{}
	h := newTestRouter(t, uc, &fakeRunner{})

	rec := do(t, h, http.MethodPost, "/v1/me/test-email", "", bearer(t, "u1", accessSecret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"transport":"log","simulated":true}`, rec.Body.String())
	assert.Empty(t, uc.sentTo)

	rec = do(t, h, http.MethodPost, "/v1/me/test-email", `{"recipient":"friend@x.com"}`, bearer(t, "u1", accessSecret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "friend@x.com", uc.sentTo)

	uc.sendErr = usecase.ErrNoEmailCredentials
	rec = do(t, h, http.MethodPost, "/v1/me/test-email", "", bearer(t, "u1", accessSecret))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	uc.sendErr = errors.New("535 authentication failed")
	rec = do(t, h, http.MethodPost, "/v1/me/test-email", "", bearer(t, "u1", accessSecret))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRunDispatch(t *testing.T) {
	runner := &fakeRunner{summary: dispatch.Summary{
		Dispatched: 1,
		Failed:     1,
		Outcomes: []dispatch.Outcome{
			{ReminderID: "r1", Status: dispatch.StatusDelivered},
			{ReminderID: "r2", Status: dispatch.StatusSendFailed, Err: errors.New("smtp down")},
		},
	}}
	h := newTestRouter(t, &fakeUsecase{}, runner)

	rec := do(t, h, http.MethodPost, "/v1/dispatch/run", "", bearer(t, "u1", accessSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "user tokens cannot trigger dispatch")

	rec = do(t, h, http.MethodPost, "/v1/dispatch/run", "", bearer(t, "", serviceSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp payload.DispatchSummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Dispatched)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Outcomes, 2)
	assert.Equal(t, "smtp down", resp.Outcomes[1].Error)

	runner.err = errors.New("store unreachable")
	rec = do(t, h, http.MethodPost, "/v1/dispatch/run", "", bearer(t, "", serviceSecret))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
