package response

import (
	"errors"
	"net/http"

	appErr "party-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

type Body struct {
	Code int         `json:"code"`
	Data interface{} `json:"data"`
	Msg  string      `json:"msg"`
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data, "")
}

func Error(c *gin.Context, status int, msg string) {
	JSON(c, status, gin.H{}, msg)
}

// Fail maps a domain error onto its HTTP status.
func Fail(c *gin.Context, err error) {
	Error(c, StatusOf(err), err.Error())
}

func StatusOf(err error) int {
	var e *appErr.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case appErr.CodeNotFound:
		return http.StatusNotFound
	case appErr.CodeAlreadyExists, appErr.CodeConflict, appErr.CodeIllegalAction:
		return http.StatusConflict
	case appErr.CodeInvalidArgument:
		return http.StatusBadRequest
	case appErr.CodeUnauthorized:
		return http.StatusForbidden
	case appErr.CodeRateLimited:
		return http.StatusTooManyRequests
	case appErr.CodeTimeout:
		return http.StatusGatewayTimeout
	case appErr.CodeIntegrity:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func JSON(c *gin.Context, status int, data interface{}, msg string) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, Body{
		Code: status,
		Data: data,
		Msg:  msg,
	})
}
