package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/audiocard/cmd"
	"github.com/smazurov/audiocard/internal/api"
	"github.com/smazurov/audiocard/internal/board"
	"github.com/smazurov/audiocard/internal/card"
	"github.com/smazurov/audiocard/internal/config"
	"github.com/smazurov/audiocard/internal/events"
	"github.com/smazurov/audiocard/internal/led"
	"github.com/smazurov/audiocard/internal/logging"
	"github.com/smazurov/audiocard/internal/metrics/collectors"
	"github.com/smazurov/audiocard/internal/metrics/exporters"
	"github.com/smazurov/audiocard/internal/systemd"
	"github.com/smazurov/audiocard/internal/updater"
	"github.com/smazurov/audiocard/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Card settings
	BoardFile      string `help:"Board profile (YAML); built-in Shuttle profile when empty" default:"" toml:"card.board" env:"CARD_BOARD"`
	ClockBackend   string `help:"Clock generator backend (sim, si5351)" default:"sim" toml:"card.clock_backend" env:"CARD_CLOCK_BACKEND"`
	JackBackend    string `help:"Jack sense backend (sim, gpio, alsa)" default:"sim" toml:"card.jack_backend" env:"CARD_JACK_BACKEND"`
	RoutingBackend string `help:"Routing backend (noop, alsa)" default:"noop" toml:"card.routing_backend" env:"CARD_ROUTING_BACKEND"`
	ALSACard       int    `name:"alsa-card" help:"ALSA card index for the alsa backends" default:"0" toml:"card.alsa_card" env:"CARD_ALSA_CARD"`
	JackControl    string `help:"ALSA jack control name" default:"Headphone Jack" toml:"card.jack_control" env:"CARD_JACK_CONTROL"`
	I2CBus         string `name:"i2c-bus" help:"I2C bus of the clock generator" default:"" toml:"card.i2c_bus" env:"CARD_I2C_BUS"`
	SettleDelay    string `help:"Codec supply settle time on resume" default:"100ms" toml:"card.settle_delay" env:"CARD_SETTLE_DELAY"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`
	CORSOrigin   string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Features settings
	FeaturesLEDControl bool   `help:"Drive the activity LED" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`
	FeaturesLED        string `help:"Activity LED sysfs name; board table when empty" default:"" toml:"features.led" env:"FEATURES_LED"`
	FeaturesSleepHook  bool   `help:"Suspend the card around host sleep" default:"false" toml:"features.sleep_hook" env:"FEATURES_SLEEP_HOOK"`
	FeaturesServices   string `help:"Comma separated systemd units exposed by the API" default:"bluetooth.service" toml:"features.services" env:"FEATURES_SERVICES"`

	// Update settings
	UpdateEnabled    bool   `help:"Expose self-update over the API" default:"true" toml:"update.enabled" env:"UPDATE_ENABLED"`
	UpdateRepository string `help:"GitHub repository for releases" default:"smazurov/audiocard" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Include prereleases" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingClock   string `help:"Clock logging level" default:"info" toml:"logging.clock" env:"LOGGING_CLOCK"`
	LoggingDAI     string `help:"DAI negotiation logging level" default:"info" toml:"logging.dai" env:"LOGGING_DAI"`
	LoggingJack    string `help:"Jack logging level" default:"info" toml:"logging.jack" env:"LOGGING_JACK"`
	LoggingRouting string `help:"Routing logging level" default:"info" toml:"logging.routing" env:"LOGGING_ROUTING"`
	LoggingCard    string `help:"Card lifecycle logging level" default:"info" toml:"logging.card" env:"LOGGING_CARD"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func splitUnits(s string) []string {
	var units []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			units = append(units, u)
		}
	}
	return units
}

// restartSelf stops the daemon so systemd brings up the new binary.
func restartSelf(logger *slog.Logger) func() {
	return func() {
		logger.Info("Sending SIGTERM to trigger restart")
		if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
			logger.Error("Failed to send SIGTERM", "error", err)
		}
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"clock":   opts.LoggingClock,
				"dai":     opts.LoggingDAI,
				"jack":    opts.LoggingJack,
				"routing": opts.LoggingRouting,
				"card":    opts.LoggingCard,
				"api":     opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		profile, err := board.Load(opts.BoardFile)
		if err != nil {
			logger.Error("Failed to load board profile", "path", opts.BoardFile, "error", err)
			os.Exit(1)
		}

		hw, releaseHW, err := cmd.BuildHardware(profile, cmd.Backends{
			Clock:       opts.ClockBackend,
			Jack:        opts.JackBackend,
			Routing:     opts.RoutingBackend,
			ALSACard:    uint(opts.ALSACard),
			JackControl: opts.JackControl,
			I2CBus:      opts.I2CBus,
		})
		if err != nil {
			logger.Error("Failed to open hardware backends", "error", err)
			os.Exit(1)
		}

		settle, err := time.ParseDuration(opts.SettleDelay)
		if err != nil {
			logger.Warn("Invalid settle delay, using default", "value", opts.SettleDelay, "error", err)
			settle = card.DefaultSettleDelay
		}

		audioCard, err := card.New(card.Config{
			Profile:     profile,
			Hardware:    hw,
			Bus:         eventBus,
			SettleDelay: settle,
		})
		if err != nil {
			logger.Error("Invalid card configuration", "board", profile.Name, "error", err)
			os.Exit(1)
		}

		metricsCollector := collectors.NewEventCollector(eventBus)

		var ledManager *led.Manager
		var ledController led.Controller
		if opts.FeaturesLEDControl {
			logger.Info("LED control enabled, initializing")
			ledController = led.New(logger, opts.FeaturesLED)
			ledManager = led.NewManager(ledController, eventBus, logging.GetLogger("led"))
		}

		ctx, cancel := context.WithCancel(context.Background())

		apiOpts := &api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			CORSOrigin:        opts.CORSOrigin,
			Card:              audioCard,
			EventBus:          eventBus,
			PrometheusHandler: exporters.HTTPHandler(),
			LEDController:     ledController,
		}

		var services *systemd.Manager
		if units := splitUnits(opts.FeaturesServices); len(units) > 0 {
			services, err = systemd.NewManager(ctx, units)
			if err != nil {
				logger.Warn("systemd unavailable, service routes disabled", "error", err)
			} else {
				apiOpts.Services = services
			}
		}

		if opts.UpdateEnabled {
			updateService, updateErr := updater.NewService(updater.Options{
				Repository: opts.UpdateRepository,
				Prerelease: opts.UpdatePrerelease,
				Restart:    restartSelf(logger),
			})
			if updateErr != nil {
				logger.Warn("Update service unavailable", "error", updateErr)
			} else {
				apiOpts.Updater = updateService
			}
		}

		server := api.NewServer(apiOpts)
		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		logWatcher := config.WatchLogging(opts.Config, logging.GetLogger("config"))
		logWatcher.OnReload(func(logging.Config) {
			notifier.Reloading()
			notifier.Ready()
		})

		var sleepMonitor *systemd.SleepMonitor
		if opts.FeaturesSleepHook {
			sleepMonitor, err = systemd.NewSleepMonitor(audioCard, logging.GetLogger("systemd"))
			if err != nil {
				logger.Warn("logind unavailable, sleep hook disabled", "error", err)
			}
		}

		hooks.OnStart(func() {
			// Collectors and the LED subscribe before probe so they see the initial state.
			metricsCollector.Start()
			if ledManager != nil {
				ledManager.Start()
			}

			if probeErr := audioCard.Probe(); probeErr != nil {
				logger.Error("Failed to probe card", "board", profile.Name, "error", probeErr)
				os.Exit(1)
			}

			if sleepMonitor != nil {
				if startErr := sleepMonitor.Start(ctx); startErr != nil {
					logger.Warn("Failed to start sleep hook", "error", startErr)
				}
			}
			if startErr := logWatcher.Start(ctx); startErr != nil {
				logger.Warn("Failed to watch config file", "path", opts.Config, "error", startErr)
			}

			notifier.Ready()
			go notifier.Watchdog(ctx)

			logger.Info("Starting HTTP server", "port", opts.Port, "version", version.String())
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if sleepMonitor != nil {
				sleepMonitor.Stop()
			}
			cancel()
			if stopErr := logWatcher.Stop(); stopErr != nil {
				logger.Debug("Config watcher stop", "error", stopErr)
			}

			// The card goes last so the LED and metrics see the removal.
			if removeErr := audioCard.Remove(); removeErr != nil {
				logger.Error("Error removing card", "error", removeErr)
			}
			if ledManager != nil {
				ledManager.Stop()
			}
			metricsCollector.Stop()
			if services != nil {
				services.Close()
			}
			if releaseErr := releaseHW(); releaseErr != nil {
				logger.Warn("Error releasing hardware", "error", releaseErr)
			}
		})
	})

	root := cli.Root()
	root.Use = version.Name
	root.Version = version.Long()
	root.AddCommand(cmd.CreateClocksCmd())
	root.AddCommand(cmd.CreateNegotiateCmd())
	root.AddCommand(cmd.CreateUpdateCmd())

	// Run the CLI
	cli.Run()
}
