package images

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.RouterGroup) {
	imgs := router.Group("/business/:id/posts/:postId/images")
	{
		imgs.POST("/candidates", GenerateCandidates)
		imgs.POST("/finalize", FinalizeImages)
	}
}
