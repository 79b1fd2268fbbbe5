package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/payload"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/repository"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/usecase"
)

func (h *reminderHTTPHandler) createReminder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req payload.CreateReminderRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	reminder, err := h.reminderUsecase.CreateReminder(r.Context(), uid, usecase.CreateReminderParams{
		Title:          req.Title,
		Description:    req.Description,
		ScheduledAt:    req.ReminderTime,
		RecipientEmail: req.RecipientEmail,
	})
	if err != nil {
		h.writeUsecaseError(w, err, "failed to create reminder")
		return
	}

	writeJSON(w, http.StatusCreated, payload.NewReminderResponse(reminder))
}

func (h *reminderHTTPHandler) listReminders(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reminders, err := h.reminderUsecase.ListReminders(r.Context(), uid, page)
	if err != nil {
		h.writeUsecaseError(w, err, "failed to list reminders")
		return
	}

	writeJSON(w, http.StatusOK, payload.NewListRemindersResponse(reminders))
}

func (h *reminderHTTPHandler) getReminder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	reminder, err := h.reminderUsecase.GetReminder(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		h.writeUsecaseError(w, err, "failed to get reminder")
		return
	}

	writeJSON(w, http.StatusOK, payload.NewReminderResponse(reminder))
}

func (h *reminderHTTPHandler) updateReminder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req payload.UpdateReminderRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	reminder, err := h.reminderUsecase.UpdateReminder(r.Context(), uid, chi.URLParam(r, "id"), usecase.UpdateReminderParams{
		Title:          req.Title,
		Description:    req.Description,
		ScheduledAt:    req.ReminderTime,
		RecipientEmail: req.RecipientEmail,
	})
	if err != nil {
		h.writeUsecaseError(w, err, "failed to update reminder")
		return
	}

	writeJSON(w, http.StatusOK, payload.NewReminderResponse(reminder))
}

func (h *reminderHTTPHandler) deleteReminder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.reminderUsecase.DeleteReminder(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		h.writeUsecaseError(w, err, "failed to delete reminder")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *reminderHTTPHandler) deleteAllReminders(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	n, err := h.reminderUsecase.DeleteAllReminders(r.Context(), uid)
	if err != nil {
		h.writeUsecaseError(w, err, "failed to delete reminders")
		return
	}

	writeJSON(w, http.StatusOK, payload.CountResponse{Count: n})
}

func (h *reminderHTTPHandler) listDeleted(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reminders, err := h.reminderUsecase.ListDeleted(r.Context(), uid, page)
	if err != nil {
		h.writeUsecaseError(w, err, "failed to list deleted reminders")
		return
	}

	writeJSON(w, http.StatusOK, payload.NewListRemindersResponse(reminders))
}

func (h *reminderHTTPHandler) restoreReminder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.reminderUsecase.RestoreReminder(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		h.writeUsecaseError(w, err, "failed to restore reminder")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *reminderHTTPHandler) permanentlyDeleteReminder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.reminderUsecase.PermanentlyDeleteReminder(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		h.writeUsecaseError(w, err, "failed to permanently delete reminder")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *reminderHTTPHandler) emptyRecycleBin(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	n, err := h.reminderUsecase.EmptyRecycleBin(r.Context(), uid)
	if err != nil {
		h.writeUsecaseError(w, err, "failed to empty recycle bin")
		return
	}

	writeJSON(w, http.StatusOK, payload.CountResponse{Count: n})
}

func (h *reminderHTTPHandler) sendTestEmail(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req payload.TestEmailRequest
	if r.ContentLength != 0 && !h.decodeAndValidate(w, r, &req) {
		return
	}

	receipt, err := h.reminderUsecase.SendTestEmail(r.Context(), uid, req.Recipient)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrNoEmailCredentials), errors.Is(err, repository.ErrUserNotFound):
			h.writeUsecaseError(w, err, "failed to send test email")
		default:
			h.logger.Error().Err(err).Str("user_id", uid).Msg("failed to send test email")
			writeError(w, http.StatusBadGateway, "failed to send test email")
		}
		return
	}

	writeJSON(w, http.StatusOK, payload.TestEmailResponse{Transport: receipt.Transport, Simulated: receipt.Simulated})
}

func (h *reminderHTTPHandler) writeUsecaseError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, repository.ErrReminderNotFound):
		writeError(w, http.StatusNotFound, "reminder not found")
	case errors.Is(err, usecase.ErrReminderNotOwned):
		writeError(w, http.StatusForbidden, "you cannot access this reminder")
	case errors.Is(err, usecase.ErrReminderNotInTrash):
		writeError(w, http.StatusConflict, "reminder is not in the recycle bin")
	case errors.Is(err, usecase.ErrInvalidScheduledAt):
		writeError(w, http.StatusBadRequest, "invalid date/time format")
	case errors.Is(err, usecase.ErrScheduledInPast):
		writeError(w, http.StatusUnprocessableEntity, "reminder time must be in the future")
	case errors.Is(err, repository.ErrNoReminderFields):
		writeError(w, http.StatusBadRequest, "no fields to update")
	case errors.Is(err, usecase.ErrNoEmailCredentials):
		writeError(w, http.StatusUnprocessableEntity, "email credentials are not configured")
	case errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		h.logger.Error().Err(err).Msg(msg)
		writeError(w, http.StatusInternalServerError, "something went wrong")
	}
}
