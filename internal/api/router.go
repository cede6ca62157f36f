package api

import (
	"github.com/ambdigitalagency/hivepost/config"
	_ "github.com/ambdigitalagency/hivepost/docs"
	"github.com/ambdigitalagency/hivepost/internal/api/v1/images"
	postRoutes "github.com/ambdigitalagency/hivepost/internal/api/v1/post"
	storageRoutes "github.com/ambdigitalagency/hivepost/internal/api/v1/storage"
	"github.com/ambdigitalagency/hivepost/internal/database"
	"github.com/ambdigitalagency/hivepost/internal/middleware"
	"github.com/ambdigitalagency/hivepost/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter() (*gin.Engine, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	_, err = database.Connect(cfg.DSN())
	if err != nil {
		return nil, err
	}

	err = database.ConnectRedis(cfg)
	if err != nil {
		return nil, err
	}

	// Wire the pipeline's collaborators once
	batches := services.NewBatchService(cfg)
	images.Batches = batches
	postRoutes.Storage = batches.Storage

	router := gin.New()
	router.Use(middleware.Logger(), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1
	v1 := router.Group("/api/v1")
	{
		authorized := v1.Group("/")
		authorized.Use(middleware.AuthMiddleware())
		{
			images.RegisterRoutes(authorized)
			postRoutes.RegisterRoutes(authorized)
			storageRoutes.RegisterRoutes(authorized)
		}
	}

	return router, nil
}
