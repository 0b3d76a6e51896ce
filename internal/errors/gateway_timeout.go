package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AbortWithGatewayTimeout sends a 504 Gateway Timeout response and aborts the request.
// Used when the upstream marketing service exceeds its per-call deadline.
func AbortWithGatewayTimeout(c *gin.Context, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusGatewayTimeout, NewAPIError(message, details))
}

// GatewayTimeout sends a 504 Gateway Timeout response without aborting.
func GatewayTimeout(c *gin.Context, message string, details map[string]interface{}) {
	c.JSON(http.StatusGatewayTimeout, NewAPIError(message, details))
}
