package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"reelhouse/handlers"
	"reelhouse/internal/metrics"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Pages    *handlers.PagesHandler
	History  *handlers.HistoryHandler
	Progress *handlers.ProgressHandler
	Metadata *handlers.MetadataHandler
	Health   *handlers.HealthHandler
	Tasks    *handlers.ScheduledTasksHandler
}

// Register mounts HTML pages, the JSON API and operational endpoints onto r.
// Every page and API route goes through the Authenticator.
func Register(r *mux.Router, auth *Authenticator, h Handlers) {
	r.Use(requestLogger)
	r.Use(metrics.Middleware)

	r.HandleFunc("/healthz", h.Health.Healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Auth
	r.HandleFunc("/login", auth.Identify(h.Auth.LoginPage)).Methods(http.MethodGet)
	r.HandleFunc("/login", auth.Identify(h.Auth.LoginSubmit)).Methods(http.MethodPost)
	r.HandleFunc("/logout", auth.Identify(h.Auth.Logout)).Methods(http.MethodGet)

	// Browsing, open to anonymous viewers
	r.HandleFunc("/", auth.Identify(h.Pages.Home)).Methods(http.MethodGet)
	r.HandleFunc("/search", auth.Identify(h.Pages.Search)).Methods(http.MethodGet)
	r.HandleFunc("/movie/{id:[0-9]+}", auth.Identify(h.Pages.MovieDetail)).Methods(http.MethodGet)
	r.HandleFunc("/tv/{id:[0-9]+}", auth.Identify(h.Pages.TVDetail)).Methods(http.MethodGet)
	r.HandleFunc("/player/{mediaType:movie|tv}/{id:[0-9]+}", auth.Identify(h.Pages.Player)).Methods(http.MethodGet)

	// Watch history pages
	r.HandleFunc("/history", auth.RequirePage(h.History.Page)).Methods(http.MethodGet)
	r.HandleFunc("/history/clear", auth.RequirePage(h.History.Clear)).Methods(http.MethodPost)
	r.HandleFunc("/history/remove", auth.RequirePage(h.History.Remove)).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()

	// Watch progress
	api.HandleFunc("/progress", auth.RequireAPI(h.Progress.Save)).Methods(http.MethodPost)
	api.HandleFunc("/progress", auth.RequireAPI(h.Progress.List)).Methods(http.MethodGet)
	api.HandleFunc("/progress", auth.RequireAPI(h.Progress.Delete)).Methods(http.MethodDelete)

	// Administration
	if h.Tasks != nil {
		api.HandleFunc("/admin/tasks", auth.RequireAdmin(h.Tasks.ListTasks)).Methods(http.MethodGet)
		api.HandleFunc("/admin/tasks/{taskID}/run", auth.RequireAdmin(h.Tasks.RunTask)).Methods(http.MethodPost)
	}

	// Metadata and streams
	api.HandleFunc("/trending", auth.Identify(h.Metadata.Trending)).Methods(http.MethodGet)
	api.HandleFunc("/search", auth.Identify(h.Metadata.Search)).Methods(http.MethodGet)
	api.HandleFunc("/streams/{mediaType:movie|tv}/{id:[0-9]+}", auth.Identify(h.Metadata.Streams)).Methods(http.MethodGet)
	api.HandleFunc("/{mediaType:movie|tv}/popular", auth.Identify(h.Metadata.Popular)).Methods(http.MethodGet)
	api.HandleFunc("/{mediaType:movie|tv}/{id:[0-9]+}", auth.Identify(h.Metadata.Details)).Methods(http.MethodGet)
}
