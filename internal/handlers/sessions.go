package handlers

import (
	"net/http"

	"github.com/lehigh-university-libraries/captioner/internal/models"
)

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.sessionStore.Create(h.newController)
	h.logger.Info("Session created", "session_id", session.ID)
	h.writeJSON(w, http.StatusCreated, h.view(session, false))
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.List()
	sessionList := make([]models.SessionView, 0, len(sessions))
	for _, session := range sessions {
		sessionList = append(sessionList, h.view(session, false))
	}
	h.writeJSON(w, http.StatusOK, sessionList)
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.view(session, true))
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionStore.Delete(r.PathValue("id"))
	if !ok {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	session.Controller.Close()
	h.logger.Info("Session closed", "session_id", session.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	session.Controller.Generate()
	h.writeJSON(w, http.StatusOK, h.view(session, false))
}

func (h *Handler) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	session.Controller.ToggleTranslation()
	h.writeJSON(w, http.StatusOK, h.view(session, false))
}
