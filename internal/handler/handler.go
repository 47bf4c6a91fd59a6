package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"notebook-server/internal/domain"
	"notebook-server/internal/middleware"
	"notebook-server/internal/service"
	"notebook-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const genericErrorMessage = "Internal server error"

// base carries what every handler needs to decode requests and answer.
type base struct {
	validator *validator.Validate
	logger    *zap.SugaredLogger
}

func newBase(logger *zap.SugaredLogger) base {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return base{
		validator: validator.New(),
		logger:    logger,
	}
}

// decode reads a JSON body into v and validates it. It answers the request
// and returns false on failure.
func (b base) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "Invalid request body")
		return false
	}
	if err := b.validator.Struct(v); err != nil {
		response.BadRequest(w, err.Error())
		return false
	}
	return true
}

// fail maps err to a status code. Unexpected errors are logged and answered
// with the operation's message only.
func (b base) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrBadCredentials):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, domain.ErrNoteNotFound), errors.Is(err, domain.ErrUserNotFound):
		response.NotFound(w, err.Error())
	case domain.IsUserCorrectable(err):
		response.BadRequest(w, err.Error())
	default:
		message := genericErrorMessage
		var opErr *service.OperationError
		if errors.As(err, &opErr) {
			message = opErr.Message
		}
		b.logger.Errorw("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		response.InternalError(w, message)
	}
}

// actor returns the authenticated caller. Routes using it sit behind the
// auth middleware.
func actor(r *http.Request) domain.Principal {
	p, _ := middleware.GetPrincipal(r)
	return p
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// listQuery reads the JSON document in the "filter" query parameter.
func listQuery(r *http.Request) (domain.ListQuery, error) {
	var q domain.ListQuery
	raw := r.URL.Query().Get("filter")
	if raw == "" {
		return q, nil
	}
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return q, domain.ErrInvalidQuery
	}
	return q, nil
}
