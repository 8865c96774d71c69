package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"

	"github.com/Meekal-Jamil/travelbid/internal/api"
	"github.com/Meekal-Jamil/travelbid/internal/api/middleware"
	"github.com/Meekal-Jamil/travelbid/internal/cache"
	"github.com/Meekal-Jamil/travelbid/internal/config"
	"github.com/Meekal-Jamil/travelbid/internal/db"
	"github.com/Meekal-Jamil/travelbid/internal/email"
	"github.com/Meekal-Jamil/travelbid/internal/services"
	"github.com/Meekal-Jamil/travelbid/internal/storage"
	"github.com/Meekal-Jamil/travelbid/internal/tasks"
)

var runMode = flag.StringP("mode", "m", "all", "Run mode: 'api', 'bg' (background tasks) or 'all'")

const shutdownTimeout = 15 * time.Second

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 30*time.Second)
	if err := services.EnsureIndexes(setupCtx, mongoDb); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}

	settingsCtx, cancelSettings := context.WithCancel(context.Background())
	defer cancelSettings()
	settingsSvc := services.NewSettingsService(mongoDb, cfg, redisClient)
	if err := settingsSvc.Load(setupCtx); err != nil {
		log.Printf("WARNING: failed to load runtime settings, using defaults: %v", err)
	}
	go func() {
		if err := settingsSvc.SubscribeToChanges(settingsCtx); err != nil && settingsCtx.Err() == nil {
			log.Printf("Settings subscription ended: %v", err)
		}
	}()

	var store storage.IS3Storage
	if cfg.AwsS3Bucket != "" {
		s3Client, err := storage.NewS3Client(setupCtx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize S3 client: %v", err)
		}
		store = storage.NewS3Storage(cfg, s3Client)
	} else {
		log.Println("AWS_S3_BUCKET not set, trip photo uploads are disabled.")
	}
	cancelSetup()

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	// Service API runs in every mode
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(cfg, redisClient, shutdownChan),
	}
	serve(&wg, "Service API", serviceSrv)

	var (
		mainApiSrv *http.Server
		stopRouter func()
		taskSrv    *asynq.Server
		scheduler  *asynq.Scheduler
	)

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		var router *gin.Engine
		router, stopRouter = api.SetupRouter(cfg, mongoDb, taskClient, settingsSvc, store)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: middleware.WithCORS(router, cfg.CORSAllowedOrigins),
		}
		serve(&wg, "Main API", mainApiSrv)
	}

	bgMode := func() {
		sender := newEmailSender(cfg, redisClient)
		notifier := tasks.NewEmailNotifier(taskClient)
		processor := tasks.NewTaskProcessor(
			cfg,
			sender,
			store,
			services.NewUserService(mongoDb, cfg),
			services.NewTripService(mongoDb, notifier, store),
			services.NewBidService(mongoDb, notifier),
		)

		var mux *asynq.ServeMux
		taskSrv, mux = tasks.SetupServer(redisClient, processor)
		if err := taskSrv.Start(mux); err != nil {
			log.Fatalf("Background task server error: %v", err)
		}
		fmt.Println("Background task server started.")

		scheduler, err = tasks.NewScheduler(redisClient, cfg)
		if err != nil {
			log.Fatalf("Failed to configure scheduler: %v", err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Scheduler error: %v", err)
		}
		fmt.Println("Scheduler started.")
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		log.Fatalf("Invalid run mode specified: %s.", cfg.RunMode)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)
	case <-shutdownChan:
		fmt.Println("\nShutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if mainApiSrv != nil {
		fmt.Println("Shutting down Main API server...")
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
		stopRouter()
	}
	fmt.Println("Shutting down Service API server...")
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}
	if scheduler != nil {
		fmt.Println("Shutting down scheduler...")
		scheduler.Shutdown()
	}
	if taskSrv != nil {
		fmt.Println("Shutting down Background Task server...")
		taskSrv.Shutdown()
	}
	cancelSettings()

	wg.Wait()
	fmt.Println("Server gracefully stopped")
}

func serve(wg *sync.WaitGroup, name string, srv *http.Server) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Printf("%s listening on %s\n", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("%s ListenAndServe error: %v", name, err)
		}
		fmt.Printf("%s server stopped.\n", name)
	}()
}

// newEmailSender always includes the SMTP (or logging) sender, plus the Redis
// mock sender under MOCK_SERVICES and a file sender when LOG_EMAILS is set.
func newEmailSender(cfg *config.Config, rdb *redis.Client) email.Sender {
	composite := email.NewCompositeEmailSender(email.NewSMTPSender(cfg))
	if cfg.MockServices {
		log.Println("MOCK_SERVICES enabled: emails are also stored in Redis.")
		composite.AddSender(email.NewRedisSender(rdb, cfg))
	}
	if cfg.LogEmailsPath != "" {
		fileSender, err := email.NewFileEmailSender(cfg.LogEmailsPath)
		if err != nil {
			log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS='%s'): %v", cfg.LogEmailsPath, err)
		} else {
			composite.AddSender(fileSender)
		}
	}
	return composite
}
