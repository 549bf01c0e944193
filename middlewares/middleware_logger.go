package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-points/utils"
)

func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		status := c.Writer.Status()
		fields := logrus.Fields{
			"method":     c.Request.Method,
			"status":     status,
			"latency":    time.Since(start).String(),
			"ip":         c.ClientIP(),
			"path":       path,
			"request_id": c.GetString(ContextRequest),
		}
		if uid := CurrentUserID(c); uid != 0 {
			fields["user_id"] = uid
		}

		switch {
		case status >= 500:
			utils.ErrorLogger.WithFields(fields).WithField("errors", c.Errors.String()).Error("request failed")
		case status >= 400:
			utils.InfoLogger.WithFields(fields).Warn("request rejected")
		default:
			utils.InfoLogger.WithFields(fields).Info("request")
		}
	}
}
