package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/citis/sapro/stores"
	"github.com/citis/sapro/utils"
)

// respondStoreError maps store errors onto HTTP responses. Anything that is
// neither a validation nor a not-found error is logged and hidden behind a 500.
func respondStoreError(ctx *gin.Context, err error, op, notFoundMsg string) {
	switch {
	case errors.Is(err, stores.ErrValidation):
		utils.Error(ctx, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, stores.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, notFoundMsg)
	default:
		utils.Sugar.Errorw(op+" failed", "error", err, "path", ctx.Request.URL.Path)
		utils.Error(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), stores.ErrValidation.Error()+": ")
}
