package server

import "github.com/gin-gonic/gin"

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, apiResponse{
		Success: status < 400,
		Message: message,
		Data:    data,
	})
}
