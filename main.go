package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftops/craftwatch/cmd"
	"github.com/craftops/craftwatch/internal/api"
	"github.com/craftops/craftwatch/internal/config"
	"github.com/craftops/craftwatch/internal/events"
	"github.com/craftops/craftwatch/internal/logging"
	"github.com/craftops/craftwatch/internal/logstream"
	"github.com/craftops/craftwatch/internal/metrics"
	"github.com/craftops/craftwatch/internal/probe"
	"github.com/craftops/craftwatch/internal/properties"
	"github.com/craftops/craftwatch/internal/rcon"
	"github.com/craftops/craftwatch/internal/startup"
	"github.com/craftops/craftwatch/internal/supervisor"
	"github.com/craftops/craftwatch/internal/updater"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// API server settings
	Port string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Game server settings
	WorkDir        string   `help:"Game server working directory" default:"." toml:"server.work_dir" env:"SERVER_WORK_DIR"`
	LaunchCommand  string   `help:"Command that starts the game server" default:"java -Xmx4G -jar server.jar nogui" toml:"server.launch_command" env:"SERVER_LAUNCH_COMMAND"`
	LogFile        string   `help:"Server log file, relative to the working directory" default:"logs/latest.log" toml:"server.log_file" env:"SERVER_LOG_FILE"`
	RequiredFiles  []string `help:"Files that must exist before launch" default:"server.jar" toml:"server.required_files" env:"SERVER_REQUIRED_FILES"`
	PropertiesFile string   `help:"Properties file, relative to the working directory" default:"server.properties" toml:"server.properties_file" env:"SERVER_PROPERTIES_FILE"`

	// RCON settings
	RconHost string `help:"RCON host" default:"localhost" toml:"rcon.host" env:"RCON_HOST"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Update settings
	UpdateRepo       string `help:"GitHub repository for self-updates" default:"craftops/craftwatch" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Allow prerelease updates" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingRcon       string `help:"RCON logging level" default:"info" toml:"logging.rcon" env:"LOGGING_RCON"`
	LoggingStartup    string `help:"Startup monitor logging level" default:"info" toml:"logging.startup" env:"LOGGING_STARTUP"`
	LoggingLogstream  string `help:"Log streamer logging level" default:"info" toml:"logging.logstream" env:"LOGGING_LOGSTREAM"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingUpdater    string `help:"Updater logging level" default:"info" toml:"logging.updater" env:"LOGGING_UPDATER"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.Load(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"supervisor": opts.LoggingSupervisor,
				"rcon":       opts.LoggingRcon,
				"startup":    opts.LoggingStartup,
				"logstream":  opts.LoggingLogstream,
				"api":        opts.LoggingAPI,
				"http":       opts.LoggingHTTP,
				"updater":    opts.LoggingUpdater,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()

		// Bridge application logs onto the bus for SSE subscribers.
		logging.SetCallback(func(entry logging.Entry) {
			eventBus.Publish(events.LogEntryEvent{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		resolve := func(path string) string {
			if filepath.IsAbs(path) {
				return path
			}
			return filepath.Join(opts.WorkDir, path)
		}

		// server.properties, reloaded live so RCON endpoint changes take
		// effect without a restart.
		var currentProps atomic.Pointer[properties.File]
		propsPath := resolve(opts.PropertiesFile)
		if props, err := properties.Load(propsPath); err == nil {
			currentProps.Store(props)
		} else {
			logger.Warn("Failed to read server.properties", "path", propsPath, "error", err)
		}

		propsWatcher := config.NewWatcher(propsPath, properties.Load, logging.GetLogger("config"))
		propsWatcher.OnReload(func(props *properties.File) {
			currentProps.Store(props)
		})

		endpoint := func() (rcon.Endpoint, error) {
			props := currentProps.Load()
			if props == nil {
				return rcon.Endpoint{}, errors.New("server.properties not loaded")
			}
			if !props.RconEnabled() {
				return rcon.Endpoint{}, errors.New("RCON is disabled in server.properties")
			}
			if props.RconPassword() == "" {
				return rcon.Endpoint{}, errors.New("rcon.password is not set")
			}
			return rcon.Endpoint{
				Host:     opts.RconHost,
				Port:     props.RconPort(),
				Password: props.RconPassword(),
			}, nil
		}

		// The prober reads the game port fresh on every probe.
		prober := probe.ProberFunc(func(ctx context.Context) (*probe.Status, error) {
			port := 25565
			if props := currentProps.Load(); props != nil {
				port = props.ServerPort()
			}
			return probe.NewPingProber(opts.RconHost, port).Probe(ctx)
		})

		rconManager := rcon.NewManager(nil)

		finder := supervisor.NewProcessFinder()
		markers := strings.Fields(opts.LaunchCommand)
		if len(markers) > 1 {
			markers = markers[:1]
		}

		monitor := startup.NewMonitor(startup.Options{
			CheckProcess: func() bool {
				_, ok := finder.Find(markers)
				return ok
			},
			Prober: prober,
			Bus:    eventBus,
		})

		sup := supervisor.New(supervisor.Options{
			WorkDir:       opts.WorkDir,
			LaunchCommand: opts.LaunchCommand,
			LogFile:       opts.LogFile,
			RequiredFiles: opts.RequiredFiles,
			Rcon:          rconManager,
			Endpoint:      endpoint,
			Prober:        prober,
			Bus:           eventBus,
			Monitor:       monitor,
			Finder:        finder,
		})

		streamer := logstream.NewStreamer(logstream.Options{})

		registry := prometheus.NewRegistry()
		registry.MustRegister(metrics.NewCollector(sup))

		var updateService updater.Service
		if svc, err := updater.NewService(&updater.Options{
			Repository: opts.UpdateRepo,
			Prerelease: opts.UpdatePrerelease,
		}); err != nil {
			logger.Warn("Self-update unavailable", "error", err)
		} else {
			updateService = svc
		}

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Supervisor:        sup,
			Rcon:              rconManager,
			Monitor:           monitor,
			Streamer:          streamer,
			Bus:               eventBus,
			Updater:           updateService,
			Endpoint:          endpoint,
			Properties:        currentProps.Load,
			ServerLogPath:     resolve(opts.LogFile),
			PrometheusHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		})

		samplerCtx, samplerCancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if watchErr := propsWatcher.Start(); watchErr != nil {
				logger.Warn("Properties watcher disabled", "path", propsPath, "error", watchErr)
			}

			go sup.RunSampler(samplerCtx)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			samplerCancel()
			monitor.StopMonitoring()
			rconManager.DisconnectAll()
			if stopErr := propsWatcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping properties watcher", "error", stopErr)
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateRconCmd())
	cli.Root().AddCommand(cmd.CreateValidateCmd())

	cli.Run()
}
