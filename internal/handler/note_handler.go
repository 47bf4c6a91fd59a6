package handler

import (
	"net/http"

	"notebook-server/internal/domain"
	"notebook-server/internal/service"
	"notebook-server/pkg/response"

	"go.uber.org/zap"
)

type NoteHandler struct {
	base
	service *service.NoteService
}

func NewNoteHandler(service *service.NoteService, logger *zap.SugaredLogger) *NoteHandler {
	return &NoteHandler{
		base:    newBase(logger),
		service: service,
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	note, err := h.service.Create(r.Context(), actor(r), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Created(w, domain.NoteIDResponse{NoteID: note.ID})
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateNoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	note, err := h.service.Update(r.Context(), actor(r), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, domain.NoteIDResponse{NoteID: note.ID})
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, domain.ErrNoteNotFound.Error())
		return
	}

	note, err := h.service.Get(r.Context(), actor(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, domain.ErrNoteNotFound.Error())
		return
	}

	versions, err := h.service.Versions(r.Context(), actor(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if versions == nil {
		versions = []*domain.NoteVersion{}
	}

	response.Success(w, versions)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, domain.ErrNoteNotFound.Error())
		return
	}

	if err := h.service.Delete(r.Context(), actor(r), id); err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, domain.NoteIDResponse{NoteID: id})
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := listQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page, err := h.service.List(r.Context(), actor(r), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, page)
}
