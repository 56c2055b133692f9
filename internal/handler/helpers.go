package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/solidguard/internal/knowledge"
	"github.com/xxxsen/solidguard/internal/middleware"
	"github.com/xxxsen/solidguard/internal/parser"
	"github.com/xxxsen/solidguard/internal/pkg/errcode"
	appErr "github.com/xxxsen/solidguard/internal/pkg/errors"
	"github.com/xxxsen/solidguard/internal/pkg/response"
	"github.com/xxxsen/solidguard/internal/service"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := c.GetString(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	var parseErr *parser.Error
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, knowledge.ErrNotInitialized):
		response.Error(c, errcode.ErrStoreNotReady, err.Error())
	case errors.Is(err, appErr.ErrParse), errors.Is(err, service.ErrGenerationExhausted), errors.As(err, &parseErr):
		response.Error(c, errcode.ErrParse, err.Error())
	case errors.Is(err, appErr.ErrUpstream):
		response.Error(c, errcode.ErrUpstream, err.Error())
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
