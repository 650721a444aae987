package utils

import "github.com/gin-gonic/gin"

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// JSON writes data as-is with status 200. Used for collections and single records.
func JSON(ctx *gin.Context, data interface{}) {
	ctx.JSON(200, data)
}

// OK writes {"success": true} merged with the optional extra fields.
func OK(ctx *gin.Context, extra gin.H) {
	body := gin.H{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	ctx.JSON(200, body)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, ErrorResponse{Success: false, Error: message})
}
