package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"school-admin/internal/browser"
	"school-admin/internal/clients"
	"school-admin/internal/config"
	"school-admin/internal/domain"
	"school-admin/internal/repository"
	"school-admin/internal/service"
	"school-admin/internal/transport/auth"
	"school-admin/internal/transport/rest"
	"school-admin/internal/transport/websocket"
	"school-admin/pkg/database/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

// exportStorage is where finished workbooks go and how old ones are removed.
type exportStorage interface {
	service.FileStore
	CleanupOlderThan(ctx context.Context, d time.Duration) (int, error)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env or defaults")
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	db := mustInitPostgres(cfg.Postgres)
	defer postgres.Close(db)

	redisClient := mustInitRedis(cfg.Redis)
	defer redisClient.Close()

	storage, localFiles := mustInitStorage(cfg)

	wsHub := websocket.NewHub(cfg.AllowedOrigins...)
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	auditRepo := repository.NewAuditRepository(db)
	if err := auditRepo.EnsureSchema(ctx); err != nil {
		log.Fatalf("audit schema error: %v", err)
	}
	tokenRepo := repository.NewPersonalAccessTokenRepository(db, cfg.TokenableType)

	school := clients.NewSchoolAPIClient(clients.SchoolAPIConfig{
		BaseURL: cfg.SchoolAPI.URL,
		Timeout: time.Duration(cfg.SchoolAPI.Timeout) * time.Second,
	})

	exportSvc := service.NewExportService(redisClient, storage, wsClient)
	workspaces := service.NewWorkspaces(school,
		func(userID int64, prefix string) browser.Notifier {
			return clients.ToastNotifier{Client: wsClient, UserID: userID, Prefix: prefix}
		},
		auditRepo,
		exportSvc,
		service.WorkspaceConfig{
			Page:    domain.Page{Offset: cfg.Leads.PageOffset, PageSize: cfg.Leads.PageSize},
			Timeout: time.Duration(cfg.SchoolAPI.Timeout) * time.Second,
		},
	)

	deps := rest.Deps{
		Workspaces: workspaces,
		Exports:    exportSvc,
		Audit:      auditRepo,
		Sockets:    wsHub,
	}
	// s3 exports are downloaded through presigned links, not through us
	if localFiles != nil {
		deps.Files = localFiles
	}
	handler := rest.NewHandler(deps)
	router := handler.InitRouterWithAuth(auth.TokenMiddleware(tokenRepo))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withCORS(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run HTTP server in goroutine so we can listen for shutdown signals
	srvErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	go runCleanup(ctx, storage, time.Duration(cfg.ExportFileTTL)*time.Minute)

	// Listen for OS shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Shutdown signal received: %v", sig)

		// Give server up to 10 seconds to finish ongoing requests
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server Shutdown error: %v", err)
		}

		// in-flight school API loads, then the websocket hub
		workspaces.Close()
		cancel()

		postgres.Close(db)
		redisClient.Close()

		log.Println("Shutdown complete")
	}
}

// runCleanup deletes generated files older than ttl every five minutes.
func runCleanup(ctx context.Context, storage exportStorage, ttl time.Duration) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := storage.CleanupOlderThan(ctx, ttl)
			if err != nil {
				log.Printf("[EXPORT] storage cleanup error: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[EXPORT] removed %d expired files", n)
			}
		}
	}
}

func mustInitPostgres(cfg config.PostgresConfig) *sql.DB {
	db, err := postgres.NewPostgresConnection(postgres.ConnectionInfo{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
		Password: cfg.Password,
	})
	if err != nil {
		log.Fatalf("postgres init error: %v", err)
	}
	return db
}

func mustInitRedis(cfg config.RedisConfig) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	return client
}

// mustInitStorage returns the export storage and, in local mode, the same
// client for serving files under /files.
func mustInitStorage(cfg config.AppConfig) (exportStorage, *clients.StorageClient) {
	if cfg.ExportStorage == "s3" {
		s3, err := clients.NewS3Client(clients.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			URLTTL:          time.Duration(cfg.S3.URLTTL) * time.Minute,
		})
		if err != nil {
			log.Fatalf("s3 init error: %v", err)
		}
		return s3, nil
	}

	local, err := clients.NewLocalStorage(cfg.ExportDir, cfg.FilesPublicPrefix, cfg.ExternalURL)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}
	return local, local
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
