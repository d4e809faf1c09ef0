package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck — liveness-проба.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "lead-attribution",
	})
}
