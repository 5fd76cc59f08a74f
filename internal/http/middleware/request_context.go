package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/docquery/docquery-backend/internal/pkg/ctxutil"
)

func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(ctxutil.Default(c.Request.Context()))
		c.Next()
	}
}
