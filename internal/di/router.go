package di

import (
	"net/http"

	"github.com/gorilla/mux"

	chathandler "ecoshare/internal/chat/handler"
	"ecoshare/internal/common"
	"ecoshare/internal/metrics"
	"ecoshare/internal/prefs"
	"ecoshare/internal/realtime"
	"ecoshare/internal/user"
)

// NewRouter lays out the public API, the authenticated API, the websocket
// feed and the metrics endpoint.
func NewRouter(
	auth user.Authenticator,
	m *metrics.ChatMetrics,
	users *user.Handler,
	chats *chathandler.ChatHandler,
	preferences *prefs.Handler,
	ws *realtime.WSHandler,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(m.Instrument)

	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.Handle("/ws", ws).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	users.RegisterPublic(api)

	private := api.NewRoute().Subrouter()
	private.Use(user.AuthMiddleware(auth))
	users.RegisterPrivate(private)
	chats.Register(private)
	preferences.Register(private)

	return r
}
