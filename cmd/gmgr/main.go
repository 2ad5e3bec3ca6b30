// Command gmgr runs the GPIO manager's HTTP control plane: it loads a JSON
// config, opens the configured backend (the real gpiocdev backend on linux,
// a software mock otherwise — selected at build time like
// internal/hal/gpio_gpiocdev.go vs. gpio_gpiocdev_stub.go), and serves the
// HTTP API over either a unix socket or a TCP listener.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/gmgr/gmgr/internal/api"
	"github.com/gmgr/gmgr/internal/config"
	"github.com/gmgr/gmgr/internal/gpio"
	"github.com/gmgr/gmgr/internal/logger"
)

// Version is set at release time; left as a plain default for local builds.
var Version = "0.1.0"

func main() {
	configPath := resolveConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", configPath, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log.ToLoggerConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	backend := newBackend(log)

	pinIDs := make([]gpio.PinId, 0, len(cfg.Gpios))
	for id := range cfg.Gpios {
		pinIDs = append(pinIDs, id)
	}
	dispatcher := gpio.NewDispatcher(pinIDs, cfg.EventHistoryCapacity, cfg.BroadcastCapacity)
	manager := gpio.NewManager(cfg.Gpios, backend, dispatcher)

	app := fiber.New(fiber.Config{
		AppName:      "gmgr v" + Version,
		JSONDecoder:  nil,
		ErrorHandler: fiberErrorHandler,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "version": Version})
	})

	server := api.NewServer(manager, log, cfg.HTTP.Path)
	server.Mount(app)

	if cfg.HTTP.UnixSocket != "" {
		listenUnix(app, cfg, log)
		return
	}

	addr := cfg.HTTP.Host
	if addr == "" {
		addr = "0.0.0.0:8080"
	}
	log.Info("starting gpio manager", zap.String("addr", addr), zap.String("path", cfg.HTTP.Path))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

// resolveConfigPath follows main.rs's precedence: positional arg, then
// GMGR_CONFIG, then "config.json".
func resolveConfigPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if v := os.Getenv("GMGR_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

func listenUnix(app *fiber.App, cfg *config.AppConfig, log *zap.Logger) {
	path := cfg.HTTP.UnixSocket
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Fatal("failed to remove stale unix socket", zap.String("path", path), zap.Error(err))
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		log.Fatal("failed to listen on unix socket", zap.String("path", path), zap.Error(err))
	}

	if mode, ok, err := cfg.HTTP.SocketMode(); err != nil {
		log.Fatal("invalid unix_socket_mode", zap.Error(err))
	} else if ok {
		if err := os.Chmod(path, os.FileMode(mode)); err != nil {
			log.Fatal("failed to chmod unix socket", zap.String("path", path), zap.Error(err))
		}
	}

	log.Info("starting gpio manager", zap.String("unix_socket", path), zap.String("path", cfg.HTTP.Path))
	if err := app.Listener(ln); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func fiberErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
