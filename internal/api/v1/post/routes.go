package post

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.RouterGroup) {
	posts := router.Group("/business/:id/posts/:postId")
	{
		posts.GET("/images", ListImages)
		posts.POST("/mark-used", MarkUsed)
	}
}
