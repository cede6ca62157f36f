package storage

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.RouterGroup) {
	s := router.Group("/storage")
	{
		s.GET("/upload-credentials", GetUploadCredentials)
	}
}
