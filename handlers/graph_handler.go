package handlers

import (
	"net/http"

	"user-network/middleware"
	"user-network/services"
)

type GraphHandler struct {
	userService *services.UserService
}

func NewGraphHandler(userService *services.UserService) *GraphHandler {
	return &GraphHandler{userService: userService}
}

func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := h.userService.GetGraph(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}
