package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cratedig/cratedig/cratedig_errors"
)

type response struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func Success(ctx *gin.Context, data any) {
	ctx.JSON(http.StatusOK, response{Data: data})
}

func Error(ctx *gin.Context, status int, msg string) {
	ctx.JSON(status, response{Error: msg})
}

// Fail maps the core error taxonomy onto HTTP statuses: the caller's fault
// is 400, a miss is 404, everything storage-shaped is 500.
func Fail(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, cratedig_errors.ErrValidation),
		errors.Is(err, cratedig_errors.ErrExists),
		errors.Is(err, cratedig_errors.ErrBadResetToken):
		Error(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, cratedig_errors.ErrBadCredentials):
		Error(ctx, http.StatusUnauthorized, err.Error())
	case errors.Is(err, cratedig_errors.ErrNotFound):
		Error(ctx, http.StatusNotFound, "not found")
	default:
		Error(ctx, http.StatusInternalServerError, "something went wrong")
	}
}
