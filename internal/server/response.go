package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func respondList(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}
