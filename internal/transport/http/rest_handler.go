package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"quizsync-service/internal/app"
	"quizsync-service/internal/domain"
)

const maxSelfieBytes = 10 << 20

type RESTHandler struct {
	services Services
	logger   *zap.SugaredLogger
}

func NewRESTHandler(services Services, logger *zap.SugaredLogger) *RESTHandler {
	return &RESTHandler{services: services, logger: logger}
}

func (h *RESTHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

// JoinTeam accepts multipart fields "name" and "selfie".
func (h *RESTHandler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSelfieBytes+1<<20)
	if err := r.ParseMultipartForm(maxSelfieBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: codeValidation, Message: "invalid multipart form"})
		return
	}

	name := r.FormValue("name")
	var selfie []byte
	contentType := ""
	file, header, err := r.FormFile("selfie")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: codeValidation, Message: "invalid selfie upload"})
		return
	default:
		defer file.Close()
		if selfie, err = io.ReadAll(file); err != nil {
			writeJSON(w, http.StatusBadRequest, errorPayload{Code: codeValidation, Message: "invalid selfie upload"})
			return
		}
		contentType = header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(selfie)
		}
	}

	team, err := h.services.Teams.Join(r.Context(), name, selfie, contentType)
	if err != nil {
		if !domain.IsValidation(err) {
			h.logger.Errorw("join failed", "team", name, "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (h *RESTHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.services.Teams.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *RESTHandler) RemoveTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Teams.Remove(r.Context(), mux.Vars(r)["name"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RESTHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.services.Board.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// Session returns the participant view; correct answers are only revealed
// once the question's time is up.
func (h *RESTHandler) Session(w http.ResponseWriter, r *http.Request) {
	session, err := h.services.Sessions.GetSession(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := app.BuildSessionView(session, app.Expired(session) || session.State == domain.StateFinished)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) Results(w http.ResponseWriter, r *http.Request) {
	results, err := h.services.Results.ListResults(r.Context(), mux.Vars(r)["questionSet"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *RESTHandler) Blob(w http.ResponseWriter, r *http.Request) {
	blob, ok := h.services.Blobs.Get(strings.TrimPrefix(r.URL.Path, "/blobs/"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if blob.ContentType != "" {
		w.Header().Set("Content-Type", blob.ContentType)
	}
	w.Write(blob.Data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case codeNotFound:
		status = http.StatusNotFound
	case codeValidation:
		status = http.StatusBadRequest
	case codeNotReady:
		status = http.StatusServiceUnavailable
	case codeLocked, codeConflict:
		status = http.StatusConflict
	}
	message := err.Error()
	if code == codeInternal {
		message = "internal error"
	}
	writeJSON(w, status, errorPayload{Code: code, Message: message})
}
