package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/wardsim/internal/activity"
	"github.com/ajitpratap0/wardsim/internal/config"
	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/simulation"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "wardsim",
		Short: "wardsim: predictive equipment preload simulator for hospital floors",
		Long:  "wardsim learns where staff and doctors go next and warms up the equipment there before they arrive, measuring wait time and energy against a reactive baseline.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		runCmd(),
		compareCmd(),
		reportCmd(),
		exportGraphCmd(),
		serveCmd(),
		mcpCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newSinks connects every enabled activity sink. A sink that cannot connect
// is logged and skipped.
func newSinks(logger *slog.Logger) []activity.Sink {
	var sinks []activity.Sink
	if cfg.Activity.Slog {
		sinks = append(sinks, activity.NewSlogSink(logger))
	}
	if cfg.NATS.Enabled {
		s, err := activity.NewNATSSink(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			logger.Warn("nats sink disabled", "error", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	if cfg.Kafka.Enabled {
		sinks = append(sinks, activity.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}
	if cfg.MQTT.Enabled {
		s, err := activity.NewMQTTSink(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.TopicPrefix,
			byte(cfg.MQTT.QoS), cfg.MQTT.ConnectTimeout)
		if err != nil {
			logger.Warn("mqtt sink disabled", "error", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	return sinks
}

// world is one wired simulation with its activity log and sink dispatcher.
type world struct {
	sim        *simulation.Simulation
	log        *activity.Log
	dispatcher *activity.Dispatcher
}

func (w *world) Close() error {
	return w.dispatcher.Close()
}

// newWorld builds a simulation from cfg, subscribes the activity log and
// sinks, and places the configured actors in the start room.
func newWorld(logger *slog.Logger, mode models.Mode, withSinks bool) (*world, error) {
	opts := cfg.SimulationOptions()
	opts.Mode = mode

	var sinks []activity.Sink
	if withSinks {
		sinks = newSinks(logger)
	}
	w := &world{
		log:        activity.NewLog(cfg.Activity.LogSize),
		dispatcher: activity.NewDispatcher(sinks, cfg.Activity.Buffer, cfg.Activity.WriteTimeout, logger),
	}
	opts.Listeners = []simulation.Listener{w.log, w.dispatcher}

	sim, err := simulation.New(opts, logger)
	if err != nil {
		_ = w.dispatcher.Close()
		return nil, fmt.Errorf("building simulation: %w", err)
	}
	w.sim = sim

	for _, group := range []struct {
		t models.ActorType
		n int
	}{
		{models.ActorStaff, cfg.Simulation.Staff},
		{models.ActorDoctor, cfg.Simulation.Doctors},
		{models.ActorPatient, cfg.Simulation.Patients},
	} {
		for i := 0; i < group.n; i++ {
			if _, err := sim.AddActor(group.t, cfg.Simulation.StartRoom); err != nil {
				_ = w.dispatcher.Close()
				return nil, fmt.Errorf("placing %s: %w", group.t, err)
			}
		}
	}
	return w, nil
}

// runHeadless ticks sim steps times, stopping early if ctx is cancelled.
func runHeadless(ctx context.Context, sim *simulation.Simulation, steps int, tick time.Duration) {
	for i := 0; i < steps; i++ {
		if ctx.Err() != nil {
			return
		}
		sim.Tick(tick)
	}
}

// modeFlags registers the shared --mode/--drive/--steps overrides.
type modeFlags struct {
	sim    string
	drive  string
	driver string
	steps  int
}

func (f *modeFlags) register(cmd *cobra.Command, withSim bool) {
	if withSim {
		cmd.Flags().StringVar(&f.sim, "mode", "", "Simulation mode: predictive or traditional (default from config)")
	}
	cmd.Flags().StringVar(&f.drive, "drive", "", "Drive mode: auto or manual (default from config)")
	cmd.Flags().StringVar(&f.driver, "driver", "", "Auto driver: script or patrol (default from config)")
	cmd.Flags().IntVar(&f.steps, "steps", 0, "Number of ticks to run (default from config)")
}

// apply folds the flag overrides into cfg and returns the resulting mode.
func (f *modeFlags) apply() (models.Mode, error) {
	m := models.Mode{Sim: cfg.Simulation.Mode, Drive: cfg.Simulation.Drive}
	if f.sim != "" {
		m.Sim = models.SimMode(f.sim)
		if !m.Sim.IsValid() {
			return m, fmt.Errorf("invalid --mode %q: must be predictive or traditional", f.sim)
		}
	}
	if f.drive != "" {
		m.Drive = models.DriveMode(f.drive)
		if !m.Drive.IsValid() {
			return m, fmt.Errorf("invalid --drive %q: must be auto or manual", f.drive)
		}
	}
	if f.driver != "" {
		k := simulation.DriverKind(f.driver)
		if !k.IsValid() {
			return m, fmt.Errorf("invalid --driver %q: must be script or patrol", f.driver)
		}
		cfg.Simulation.Driver.Kind = k
	}
	if f.steps > 0 {
		cfg.Simulation.Steps = f.steps
	}
	return m, nil
}
