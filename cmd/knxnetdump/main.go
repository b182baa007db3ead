// knxnetdump - KNXnet/IP tunnelling frame inspector
//
// knxnetdump reads captured KNXnet/IP datagrams (one hex line per datagram)
// from files, stdin or the graylogic/knxnet/raw MQTT topic, decodes them and
// fans the summaries out to the terminal, the SQLite capture store, MQTT,
// InfluxDB and the WebSocket feed of the HTTP API.
//
// Usage:
//
//	knxnetdump [--config path] [--format text|json] [--summary] [files...]
//	knxnetdump decode "06 10 04 21 00 0A 04 01 02 00"
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-knxnet/internal/api"
	"github.com/nerrad567/gray-logic-knxnet/internal/capture"
	"github.com/nerrad567/gray-logic-knxnet/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-knxnet/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-knxnet/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-knxnet/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-knxnet/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-knxnet/internal/metrics"
	"github.com/nerrad567/gray-logic-knxnet/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// stdinSource labels frames read from standard input.
const stdinSource = "stdin"

// options holds the root command flags.
type options struct {
	configPath string
	format     string
	quiet      bool
	sessionID  string

	// summary prints a per-service table to summaryOut once the inputs
	// are processed.
	summary    bool
	summaryOut io.Writer
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Input and output go through the
// command's streams so tests can substitute them.
func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "knxnetdump [files...]",
		Short: "Decode and record captured KNXnet/IP tunnelling datagrams",
		Long: `knxnetdump reads one hex datagram per line from the given files, or from
stdin when none are given ("-" also means stdin), and prints a summary of
every frame. Depending on the configuration frames are also stored in
SQLite, published to MQTT, written to InfluxDB and streamed over the API.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.summaryOut = cmd.ErrOrStderr()
			return run(cmd.Context(), opts, args, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	root.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (default $KNXNET_CONFIG or "+defaultConfigPath+")")
	root.Flags().StringVarP(&opts.format, "format", "f", capture.FormatText, "output format: text or json")
	root.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print frames")
	root.Flags().StringVar(&opts.sessionID, "session", "", "capture session id (default: random UUID)")
	root.Flags().BoolVarP(&opts.summary, "summary", "s", false, "print per-service counts to stderr when done")

	root.AddCommand(newDecodeCmd())
	return root
}

// newDecodeCmd decodes datagrams given on the command line without any
// configuration or side effects.
func newDecodeCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "decode <hex>...",
		Short: "Decode datagrams given as arguments, one per argument",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sink, err := capture.NewWriterSink(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			for i, arg := range args {
				raw, err := capture.ParseHex(arg)
				if err != nil {
					return &capture.LineError{Line: i + 1, Reason: err.Error()}
				}
				if raw == nil {
					continue
				}
				f := capture.Summarise(raw)
				f.Index = uint64(i + 1) //nolint:gosec // argument index
				if err := sink.HandleFrame(cmd.Context(), f); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", capture.FormatText, "output format: text or json")
	return cmd
}

// run is the capture pipeline, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts *options, files []string, stdin io.Reader, stdout io.Writer) error { //nolint:gocognit,gocyclo // sequential wiring of optional components
	log := logging.Default()

	cfg, configPath, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	if configPath == "" {
		log.Info("no config file found, using defaults")
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	inspector := capture.NewInspector(opts.sessionID)
	inspector.SetLogger(log)
	log = log.With("session_id", inspector.SessionID())
	log.Info("starting knxnetdump", "version", version, "commit", commit, "build_date", date)

	if !opts.quiet {
		sink, sinkErr := capture.NewWriterSink(stdout, opts.format)
		if sinkErr != nil {
			return sinkErr
		}
		inspector.AddSink("stdout", sink)
	}

	checks := make(map[string]api.HealthChecker)

	// Capture store
	var recorder *capture.FrameRecorder
	if cfg.Capture.Record {
		db, dbErr := database.Open(cfg.Database)
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Database.Path)

		recorder = capture.NewFrameRecorder(db.DB)
		recorder.SetLogger(log)
		if startErr := recorder.Start(); startErr != nil {
			return fmt.Errorf("starting frame recorder: %w", startErr)
		}
		defer recorder.Stop()

		inspector.AddSink("recorder", recorder)
		checks["database"] = db
	}

	// MQTT
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		if cfg.Capture.PublishFrames {
			inspector.AddSink("mqtt", capture.NewPublishSink(mqttClient))
		}
		if cfg.Capture.SubscribeRaw {
			topic := mqtt.Topics{}.Raw()
			//nolint:gosec // QoS validated to 0..2
			if subErr := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), rawHandler(ctx, inspector)); subErr != nil {
				return fmt.Errorf("subscribing to %s: %w", topic, subErr)
			}
			log.Info("consuming raw datagrams", "topic", topic)
		}
		checks["mqtt"] = mqttClient
	}

	// InfluxDB
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			stats := inspector.Stats()
			influxClient.WriteSessionSummary(stats.SessionID, stats.Processed, stats.Failed)
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		inspector.AddSink("influxdb", capture.NewMetricsSink(influxClient))
		checks["influxdb"] = influxClient
	}

	// HTTP API
	if cfg.API.Enabled {
		hub := api.NewHub(cfg.WebSocket, log)
		inspector.AddSink("websocket", hub)

		var m *metrics.Metrics
		if cfg.API.Metrics {
			m = metrics.New(inspector)
			inspector.AddSink("metrics", m)
		}

		srv, srvErr := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log,
			Inspector:   inspector,
			Recorder:    recorder,
			RecentLimit: cfg.Capture.RecentLimit,
			Checks:      checks,
			Hub:         hub,
			Metrics:     m,
			Version:     version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := inspectInputs(ctx, inspector, files, stdin); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("capture interrupted")
			return nil
		}
		return err
	}

	stats := inspector.Stats()
	log.Info("capture inputs processed",
		"processed", stats.Processed,
		"failed", stats.Failed,
		"invalid_lines", stats.InvalidLines,
		"sink_errors", stats.SinkErrors,
	)
	if opts.summary && opts.summaryOut != nil {
		if err := renderSummary(opts.summaryOut, stats); err != nil {
			log.Warn("failed to print summary", "error", err)
		}
	}

	if cfg.API.Enabled || cfg.Capture.SubscribeRaw {
		log.Info("serving, waiting for shutdown signal")
		<-ctx.Done()
		log.Info("shutdown signal received, cleaning up")
	}

	return nil
}

// loadConfig resolves the config path and loads it. An explicit path (flag
// or KNXNET_CONFIG) must exist; a missing default file falls back to the
// built-in defaults, in which case the returned path is empty.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path, explicit := getConfigPath(flagPath)

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, "", err
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("validating default config: %w", err)
	}
	return cfg, "", nil
}

// getConfigPath returns the configuration file path and whether it was
// chosen explicitly. The flag wins over KNXNET_CONFIG.
func getConfigPath(flagPath string) (string, bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if path := os.Getenv("KNXNET_CONFIG"); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

// inspectInputs runs the inspector over every file in order, or over stdin
// when files is empty. "-" names stdin explicitly.
func inspectInputs(ctx context.Context, inspector *capture.Inspector, files []string, stdin io.Reader) error {
	if len(files) == 0 {
		files = []string{"-"}
	}

	for _, name := range files {
		if name == "-" {
			if err := inspector.Run(ctx, stdinSource, capture.NewHexReader(stdin)); err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			continue
		}

		if err := inspectFile(ctx, inspector, name); err != nil {
			return err
		}
	}
	return nil
}

func inspectFile(ctx context.Context, inspector *capture.Inspector, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer f.Close()

	if err := inspector.Run(ctx, name, capture.NewHexReader(f)); err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	return nil
}

// rawHandler feeds hex datagrams published on the raw topic to the
// inspector. Each message holds one capture line.
func rawHandler(ctx context.Context, inspector *capture.Inspector) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		if _, _, err := inspector.HandleHex(ctx, "mqtt", strings.TrimSpace(string(payload))); err != nil {
			return fmt.Errorf("message on %s: %w", topic, err)
		}
		return nil
	}
}
