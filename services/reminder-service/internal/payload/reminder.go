package payload

import (
	"time"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/dispatch"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/model"
)

type CreateReminderRequest struct {
	Title          string  `json:"title"           validate:"required,max=200"`
	Description    string  `json:"description"     validate:"max=2000"`
	ReminderTime   string  `json:"reminder_time"   validate:"required,datetime=2006-01-02 15:04:05"`
	RecipientEmail *string `json:"recipient_email" validate:"omitempty,email"`
}

type UpdateReminderRequest struct {
	Title          *string `json:"title"           validate:"omitempty,min=1,max=200"`
	Description    *string `json:"description"     validate:"omitempty,max=2000"`
	ReminderTime   *string `json:"reminder_time"   validate:"omitempty,datetime=2006-01-02 15:04:05"`
	RecipientEmail *string `json:"recipient_email" validate:"omitempty,email"`
}

type ReminderResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ReminderTime   string    `json:"reminder_time"`
	RecipientEmail *string   `json:"recipient_email,omitempty"`
	IsCompleted    bool      `json:"is_completed"`
	IsDeleted      bool      `json:"is_deleted"`
	DeletedAt      *string   `json:"deleted_at,omitempty"`
	FailedAttempts int       `json:"failed_attempts"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ListRemindersResponse struct {
	Reminders []ReminderResponse `json:"reminders"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type TestEmailRequest struct {
	Recipient string `json:"recipient" validate:"omitempty,email"`
}

type TestEmailResponse struct {
	Transport string `json:"transport"`
	Simulated bool   `json:"simulated"`
}

type OutcomeResponse struct {
	ReminderID string `json:"reminder_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

type DispatchSummaryResponse struct {
	Dispatched int               `json:"dispatched"`
	Skipped    int               `json:"skipped"`
	Failed     int               `json:"failed"`
	Contended  int               `json:"contended"`
	Simulated  int               `json:"simulated"`
	Outcomes   []OutcomeResponse `json:"outcomes"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func NewReminderResponse(r *model.Reminder) ReminderResponse {
	return ReminderResponse{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		ReminderTime:   r.ScheduledAt,
		RecipientEmail: r.RecipientEmail,
		IsCompleted:    r.Completed,
		IsDeleted:      r.Deleted,
		DeletedAt:      r.DeletedAt,
		FailedAttempts: r.FailedAttempts,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func NewListRemindersResponse(reminders []*model.Reminder) ListRemindersResponse {
	resp := ListRemindersResponse{Reminders: make([]ReminderResponse, 0, len(reminders))}
	for _, r := range reminders {
		resp.Reminders = append(resp.Reminders, NewReminderResponse(r))
	}
	return resp
}

func NewDispatchSummaryResponse(s dispatch.Summary) DispatchSummaryResponse {
	resp := DispatchSummaryResponse{
		Dispatched: s.Dispatched,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
		Contended:  s.Contended,
		Simulated:  s.Simulated,
		Outcomes:   make([]OutcomeResponse, 0, len(s.Outcomes)),
	}
	for _, o := range s.Outcomes {
		out := OutcomeResponse{ReminderID: o.ReminderID, Status: string(o.Status)}
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
		resp.Outcomes = append(resp.Outcomes, out)
	}
	return resp
}
