// Package handlers implements the fleet API endpoints on gin.  Every
// response uses the common.APIResponse envelope; error statuses come from
// errors.HTTPStatusForCode.
package handlers

import (
	stderrors "errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/TRAXX-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// respond writes data in a success envelope.
func respond[T any](c *gin.Context, status int, data T) {
	resp := common.NewSuccessResponse(data)
	resp.RequestID = middleware.GetRequestID(c)
	c.JSON(status, resp)
}

// respondError writes err in an error envelope.  Client errors carry their
// own message; server errors are masked behind the code's default message.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown || code == errors.CodeOK {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	msg := errors.DefaultMessageForCode(code)
	if status < http.StatusInternalServerError {
		var ae *errors.AppError
		if stderrors.As(err, &ae) && ae.Message != "" {
			msg = ae.Message
		}
	}
	_ = c.Error(err)

	resp := common.NewErrorResponse(string(code), msg)
	resp.RequestID = middleware.GetRequestID(c)
	c.AbortWithStatusJSON(status, resp)
}

// bindJSON decodes the request body into dst.
func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return errors.Wrap(err, errors.ErrCodeBadRequest, "malformed request body")
	}
	return nil
}

// parseKind reads an entity kind; singular and plural names are accepted.
func parseKind(s string) (common.EntityKind, error) {
	kind, err := common.ParseEntityKind(s)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidEntityKind, err.Error())
	}
	return kind, nil
}

// queryFloat reads a required float query parameter.
func queryFloat(c *gin.Context, name string) (float64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return 0, errors.Newf(errors.ErrCodeViewportInvalid, "query parameter %q is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Newf(errors.ErrCodeViewportInvalid, "query parameter %q is not a finite number", name)
	}
	return v, nil
}

// queryBool reads an optional boolean query parameter.
func queryBool(c *gin.Context, name string, fallback bool) bool {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

// queryInt reads an optional positive integer query parameter.
func queryInt(c *gin.Context, name string, fallback, max int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 1 {
		return fallback
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

//Personal.AI order the ending
