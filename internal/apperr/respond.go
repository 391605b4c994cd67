package apperr

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type body struct {
	Error payload `json:"error"`
}

type payload struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Respond writes err as {"error":{code,message,fields}} and aborts the
// request. Internal errors are logged with their full cause chain.
func Respond(c *gin.Context, err error) {
	code, msg, fields := Public(err)
	if code == CodeInternal {
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).WithError(err).Error("request failed")
	}
	c.AbortWithStatusJSON(StatusOf(code), body{Error: payload{Code: code, Message: msg, Fields: fields}})
}
