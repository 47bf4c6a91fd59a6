package handler

import (
	"net/http"
	"strconv"

	"notebook-server/internal/domain"
	"notebook-server/internal/service"
	"notebook-server/pkg/response"

	"go.uber.org/zap"
)

type UserHandler struct {
	base
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService, logger *zap.SugaredLogger) *UserHandler {
	return &UserHandler{
		base:        newBase(logger),
		userService: userService,
	}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.userService.Create(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Created(w, domain.UserIDResponse{UserID: user.ID})
}

func (h *UserHandler) Modify(w http.ResponseWriter, r *http.Request) {
	var req domain.ModifyUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.userService.Modify(r.Context(), actor(r), req.Username, req.Modify)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, user.ToModifiedResponse())
}

func (h *UserHandler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	var req domain.SetAdminRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.userService.SetAdmin(r.Context(), actor(r), req.Username, req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, user.ToModifiedResponse())
}

// Get looks a user up by the "id" or the "username" query parameter.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	var (
		user *domain.User
		err  error
	)

	switch q := r.URL.Query(); {
	case q.Get("id") != "":
		id, convErr := strconv.ParseInt(q.Get("id"), 10, 64)
		if convErr != nil {
			response.BadRequest(w, "Invalid user id")
			return
		}
		user, err = h.userService.GetByID(r.Context(), actor(r), id)
	case q.Get("username") != "":
		user, err = h.userService.GetByUsername(r.Context(), actor(r), q.Get("username"))
	default:
		response.BadRequest(w, "Either id or username is required")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, user.ToResponse())
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req domain.DeleteUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.userService.Delete(r.Context(), actor(r), req.Username)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, domain.DeletedUserResponse{DeletedUserID: id})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := listQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page, err := h.userService.List(r.Context(), actor(r), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, page)
}
