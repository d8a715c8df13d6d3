package handlers

import (
	"iamcore/internal/middleware"

	"github.com/gin-gonic/gin"
)

// operator 当前操作人ID
func operator(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}
