package global

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"NioBoard/logger"
	"NioBoard/tools/errs"
)

type Msg struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
	Data   any    `json:"data,omitempty"`
}

func Success(data any) *Msg {
	return &Msg{Code: 200, Data: data}
}

func httpStatus(code int) int {
	switch code {
	case errs.CodeValidation:
		return http.StatusBadRequest
	case errs.CodeToken:
		return http.StatusUnauthorized
	case errs.CodeAccess, errs.CodeAuthorization:
		return http.StatusForbidden
	case errs.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes the error envelope. Infrastructure causes are logged with
// their full chain but clients only ever see the generic message.
func Fail(c *gin.Context, err error) {
	ce := errs.Code(err)
	if ce == nil {
		ce = errs.ErrInfrastructure
	}
	if ce.Code == errs.CodeInfrastructure {
		logger.Errorf("[http] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		ce = errs.ErrInfrastructure // strip detail
	}
	c.AbortWithStatusJSON(httpStatus(ce.Code), &Msg{Code: ce.Code, Msg: ce.Msg, Detail: ce.Detail})
}
