package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"user-network/middleware"
	"user-network/services"
	"user-network/utils/errors"
)

// NewRouter wires every route of the API onto a gorilla/mux router
func NewRouter(userService *services.UserService, allowedOrigins []string, logger *zap.Logger) *mux.Router {
	userHandler := NewUserHandler(userService)
	graphHandler := NewGraphHandler(userService)

	r := mux.NewRouter()
	r.Use(middleware.ErrorMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.CORSMiddleware(allowedOrigins))

	// Unmatched requests skip r.Use middleware, so answer them in JSON here
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, errors.ErrNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, errors.ErrMethodNotAllowed)
	})

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "User Relationship Network API",
			"health":  "ok",
		})
	}).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// User routes
	api.HandleFunc("/users", userHandler.ListUsers).Methods("GET", "OPTIONS")
	api.HandleFunc("/users", userHandler.CreateUser).Methods("POST", "OPTIONS")
	api.HandleFunc("/users/{id}", userHandler.GetUser).Methods("GET", "OPTIONS")
	api.HandleFunc("/users/{id}", userHandler.UpdateUser).Methods("PUT", "OPTIONS")
	api.HandleFunc("/users/{id}", userHandler.DeleteUser).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/users/{id}/friends", userHandler.GetFriends).Methods("GET", "OPTIONS")
	api.HandleFunc("/users/{id}/link", userHandler.LinkUsers).Methods("POST", "OPTIONS")
	api.HandleFunc("/users/{id}/unlink", userHandler.UnlinkUsers).Methods("DELETE", "OPTIONS")

	// Graph routes
	api.HandleFunc("/graph", graphHandler.GetGraph).Methods("GET", "OPTIONS")

	return r
}
