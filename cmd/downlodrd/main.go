package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/elsanchez/downlodr/internal/config"
	"github.com/elsanchez/downlodr/internal/cookies"
	"github.com/elsanchez/downlodr/internal/daemon"
	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/internal/downloader"
	"github.com/elsanchez/downlodr/internal/platform"
	"github.com/elsanchez/downlodr/internal/repository"
	"github.com/elsanchez/downlodr/internal/repository/blobstore"
	"github.com/elsanchez/downlodr/internal/repository/sqlite"
)

const (
	version = "0.2.0"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config.yaml")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("downlodrd v%s\n", version)
		return
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("downlodrd v%s starting...", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatalf("Invalid environment override: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Verificar dependencias
	if err := downloader.CheckYtDlpInstalled(cfg.YtDlpPath); err != nil {
		log.Fatalf("Dependency check failed: %v", err)
	}
	log.Println("✓ Dependencies check passed (yt-dlp)")

	// Crear directorios
	for _, dir := range []string{cfg.DataDir, cfg.OutputDir, cfg.CookiesDir()} {
		if err := platform.CreateDirectoryIfNotExists(dir); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Output directory: %s", cfg.OutputDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Estado persistente: SQLite por defecto, bucket si hay state_url
	var (
		stateRepo repository.StateRepository
		closeRepo func() error
	)
	if cfg.StateURL != "" {
		bucket, err := blobstore.Open(ctx, cfg.StateURL)
		if err != nil {
			log.Fatalf("Failed to open state bucket: %v", err)
		}
		stateRepo, closeRepo = bucket, bucket.Close
		log.Printf("✓ State bucket opened (%s)", cfg.StateURL)
	} else {
		db, err := sqlite.NewDatabase(cfg.DataDir)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		stateRepo, closeRepo = db.StateRepo, db.Close
		if n, err := db.StateRepo.CountHistory(ctx); err == nil {
			log.Printf("✓ Database initialized (%d history entries)", n)
		} else {
			log.Printf("✓ Database initialized (history count unavailable: %v)", err)
		}
	}
	defer closeRepo()

	// Cookies desde el browser o jars importados con "dlr cookies import"
	cookieSource := cookies.NewProvider(cookies.NewBrowserExtractor(), cfg.CookiesBrowser, cfg.CookiesDir())
	if cfg.CookiesBrowser != "" {
		log.Printf("✓ Cookies from %s enabled", cfg.CookiesBrowser)
	}

	ytdlp := downloader.NewYtDlp(cfg.YtDlpPath, cookieSource, cfg.KillTimeout)
	registry := downloader.NewRegistry(ytdlp, cfg.KillTimeout, cfg.ProgressInterval)
	defer registry.Close()

	notifiers := daemon.MultiNotifier{daemon.LogNotifier{}}
	if cfg.DesktopNotifications {
		notifiers = append(notifiers, daemon.DesktopNotifier{MinLevel: domain.NoticeInfo})
	}

	// Crear queue manager
	queueMgr := daemon.NewQueueManager(stateRepo, registry, ytdlp, platform.LocalFS{}, notifiers, daemon.Options{
		Ceiling:              cfg.Ceiling(),
		DefaultRateLimit:     cfg.DefaultRateLimit,
		OutputDir:            cfg.OutputDir,
		NeedsCleanupOnResume: daemon.CleanupByFormat(cfg.CleanupOnResumeFormats...),
		VerifyInterval:       cfg.VerifyInterval,
		VerifyTimeout:        cfg.VerifyTimeout,
	})
	if err := queueMgr.Start(ctx); err != nil {
		log.Fatalf("Failed to start queue manager: %v", err)
	}
	defer queueMgr.Stop()
	if cfg.Ceiling() == 0 {
		log.Println("✓ Queue manager started (unlimited)")
	} else {
		log.Printf("✓ Queue manager started (%d concurrent)", cfg.Ceiling())
	}

	// Crear servidor
	server := daemon.NewServer(cfg.SocketPath, daemon.NewHandlers(queueMgr, version))
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	log.Println("✓ Server started")
	log.Printf("Socket: %s", cfg.SocketPath)
	log.Println("downlodrd is ready")

	// Esperar señal de terminación
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Received signal: %v", sig)
	log.Println("Shutting down gracefully...")

	cancel()
}
