package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"user-network/middleware"
	"user-network/models"
	"user-network/services"
	"user-network/utils/errors"
)

type UserHandler struct {
	userService *services.UserService
}

type MessageResponse struct {
	Message string `json:"message"`
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := h.userService.GetFriends(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, friends)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input models.UserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteError(w, errors.NewInvalidInput(err.Error()))
		return
	}

	user, err := h.userService.CreateUser(r.Context(), input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var patch models.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		middleware.WriteError(w, errors.NewInvalidInput(err.Error()))
		return
	}

	user, err := h.userService.UpdateUser(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.DeleteUser(r.Context(), mux.Vars(r)["id"]); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) LinkUsers(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeLinkRequest(w, r)
	if !ok {
		return
	}

	if err := h.userService.LinkUsers(r.Context(), mux.Vars(r)["id"], input.FriendID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Users linked successfully"})
}

func (h *UserHandler) UnlinkUsers(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeLinkRequest(w, r)
	if !ok {
		return
	}

	if err := h.userService.UnlinkUsers(r.Context(), mux.Vars(r)["id"], input.FriendID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Users unlinked successfully"})
}

func decodeLinkRequest(w http.ResponseWriter, r *http.Request) (models.LinkRequest, bool) {
	var input models.LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteError(w, errors.NewInvalidInput(err.Error()))
		return input, false
	}
	if input.FriendID == "" {
		middleware.WriteError(w, errors.NewValidationError("friend_id is required"))
		return input, false
	}
	return input, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
