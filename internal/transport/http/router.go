package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"quizsync-service/internal/app"
	"quizsync-service/internal/domain"
	"quizsync-service/internal/infra/memory"
)

// ResultLister reads archived standings.
type ResultLister interface {
	ListResults(ctx context.Context, questionSetID string) ([]domain.ArchivedResult, error)
}

// Services are the use cases the transport exposes.
type Services struct {
	SessionKey string
	Sessions   app.SessionStore
	Host       *app.Host
	Teams      *app.TeamService
	Answers    *app.AnswerService
	Board      *app.Scoreboard
	// Results is optional; without it /results is not routed.
	Results ResultLister
	// Blobs is set when assets live in memory and must be served by this process.
	Blobs *memory.BlobStore
}

// NewRouter wires the REST and websocket endpoints.
func NewRouter(services Services, logger *zap.SugaredLogger) *mux.Router {
	rest := NewRESTHandler(services, logger)
	ws := NewWSHandler(services, logger)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", rest.Health).Methods(http.MethodGet)
	r.HandleFunc("/teams", rest.JoinTeam).Methods(http.MethodPost)
	r.HandleFunc("/teams", rest.ListTeams).Methods(http.MethodGet)
	r.HandleFunc("/teams/{name}", rest.RemoveTeam).Methods(http.MethodDelete)
	r.HandleFunc("/leaderboard", rest.Leaderboard).Methods(http.MethodGet)
	r.HandleFunc("/session", rest.Session).Methods(http.MethodGet)
	if services.Results != nil {
		r.HandleFunc("/results/{questionSet}", rest.Results).Methods(http.MethodGet)
	}
	if services.Blobs != nil {
		r.PathPrefix("/blobs/").HandlerFunc(rest.Blob).Methods(http.MethodGet)
	}
	r.HandleFunc("/ws", ws.ServeWS)
	return r
}
