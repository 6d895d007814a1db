package handlers

import (
	"github.com/gin-gonic/gin"
)

// All endpoints answer with the same envelope: {success, message, data}.
// A degraded analysis additionally carries a note inside data.

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}
