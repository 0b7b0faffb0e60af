package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	uuid "github.com/twinj/uuid"

	"posescope/controllers"
	"posescope/detector"
	"posescope/middlewares"
	"posescope/models"
	"posescope/notify"
	"posescope/storage"
	"posescope/utils"
	"posescope/workflow"
)

// corsMiddleware Use middleware for CORS (Cross-Origin Resource Sharing)
// TODO: This is too broad, cannot expose to the internet!
// CORS for * origins, allowing:
// - PUT, GET, POST and PATCH methods
// - Origin header
// - Credentials share
// - Preflight requests cached for 12 hours
func corsMiddleware() gin.HandlerFunc {
	_corsMiddleware := cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "GET", "POST", "PATCH"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"X-Requested-With, Content-Type, Origin, Authorization, Accept, Client-Security-Token, Accept-Encoding, x-access-token"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
	return _corsMiddleware
}

// requestIDMiddleware Generate a UUID and attach it to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		_uuid := uuid.NewV4()
		c.Writer.Header().Set("X-Request-Id", _uuid.String())
		c.Next()
	}
}

func main() {
	log.Info("Starting PoseScope...")

	// Generate our config based on the config supplied
	// by the user in the flags
	configPath, debugMode, err := utils.ParseFlags()
	if err != nil {
		log.Fatal(err)
	}
	config, err := utils.NewConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Debug mode enables gin-gonic debug mode
	if debugMode == false {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to the database
	models.ConnectDatabase(config.Database.Driver, config.Database.DSN)

	store, err := storage.NewDiskStore(config.Storage.Root)
	if err != nil {
		log.Fatal(err)
	}

	hub := notify.NewHub()

	det := detector.NewHTTPDetector(
		config.Detector.URL,
		config.Detector.ModelVersion,
		time.Duration(config.Detector.TimeoutSeconds)*time.Second,
	)

	svcConfig := workflow.DefaultConfig()
	if config.Detector.MaxRetries > 0 {
		svcConfig.MaxDetectRetries = config.Detector.MaxRetries
	}
	if config.Detector.BackoffSeconds > 0 {
		svcConfig.DetectBackoff = time.Duration(config.Detector.BackoffSeconds) * time.Second
	}
	if config.Detector.Workers > 0 {
		svcConfig.DetectWorkers = config.Detector.Workers
	}
	svc := workflow.NewService(models.DB, hub, det, svcConfig)

	maker := middlewares.NewTokenMaker(config.Auth.Secret, time.Duration(config.Auth.TokenHours)*time.Hour)

	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Version tag to test against
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "v0.1.0",
		})
	})

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.POST("/register", controllers.Register)
	v1.POST("/login", controllers.Login(maker))

	auth := v1.Group("")
	auth.Use(middlewares.JwtAuthMiddleware(maker))
	{
		auth.GET("/users/me", controllers.Me)

		auth.GET("/schemas", controllers.FindSchemas)
		auth.POST("/schemas", middlewares.RequireAdmin(), controllers.CreateSchema)

		auth.POST("/batches", controllers.CreateBatch(store))
		auth.GET("/batches", controllers.FindBatches)
		auth.GET("/batches/:id", controllers.FindBatch)
		auth.GET("/batches/:id/progress", controllers.BatchProgress(svc))
		auth.POST("/batches/:id/process", controllers.ProcessBatch(svc))
		auth.POST("/batches/:id/cancel", controllers.CancelBatch(svc))
		auth.POST("/batches/:id/archive", middlewares.RequireAdmin(), controllers.ArchiveBatch(svc))

		auth.GET("/images", controllers.FindImages)
		auth.GET("/images/:id", controllers.FindImage)
		auth.POST("/images/:id/retry-detection", controllers.RetryDetection(svc))
		auth.GET("/images/:id/annotations", controllers.ImageAnnotations(svc))

		auth.POST("/assignments", middlewares.RequireAdmin(), controllers.CreateAssignment(svc))
		auth.GET("/assignments", controllers.FindAssignments)
		auth.GET("/assignments/overdue", middlewares.RequireAdmin(), controllers.OverdueAssignments(svc))
		auth.POST("/assignments/:id/acknowledge", middlewares.RequireAnnotator(), controllers.AcknowledgeAssignment(svc))
		auth.POST("/assignments/:id/start", middlewares.RequireAnnotator(), controllers.StartAssignment(svc))
		auth.POST("/annotations", middlewares.RequireAnnotator(), controllers.SubmitAnnotation(svc))

		auth.POST("/verifications", middlewares.RequireVerifier(), controllers.CreateVerification(svc))
		auth.GET("/verifications/:id", controllers.FindVerification)
	}

	// Live progress updates per batch. The token is passed as a query
	// parameter because browsers cannot set headers on websocket upgrades.
	r.GET("/ws/batches/:id", func(c *gin.Context) {
		if _, err := maker.ExtractUserID(c); err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		hub.ServeWS(c.Param("id"), c.Writer, c.Request)
	})

	addr := fmt.Sprintf(":%s", config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with
	// a timeout of 5 seconds.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	// catching ctx.Done(). timeout of 1 seconds.
	select {
	case <-ctx.Done():
		log.Info("Timeout of 1 seconds.")
	}

	log.Info("Server exiting")
}
