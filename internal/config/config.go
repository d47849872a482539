package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/wardsim/internal/equipment"
	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/prediction"
	"github.com/ajitpratap0/wardsim/internal/simulation"
)

const (
	// DefaultTick is the simulated length of one tick.
	DefaultTick = time.Second

	// DefaultSteps is the number of ticks a headless run performs.
	DefaultSteps = 300
)

// Config holds all configuration for wardsim.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Equipment  equipment.Policy `mapstructure:"equipment"`
	Prediction PredictionConfig `mapstructure:"prediction"`
	Activity   ActivityConfig   `mapstructure:"activity"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Neo4j      Neo4jConfig      `mapstructure:"neo4j"`
	Claude     ClaudeConfig     `mapstructure:"claude"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	API        APIConfig        `mapstructure:"api"`
}

// SimulationConfig holds the run setup.
type SimulationConfig struct {
	Mode            models.SimMode           `mapstructure:"mode"`
	Drive           models.DriveMode         `mapstructure:"drive"`
	Tick            time.Duration            `mapstructure:"tick"`
	Steps           int                      `mapstructure:"steps"`
	Speed           float64                  `mapstructure:"speed"`
	HistorySize     int                      `mapstructure:"history_size"`
	MovementLogSize int                      `mapstructure:"movement_log_size"`
	StartRoom       string                   `mapstructure:"start_room"`
	Staff           int                      `mapstructure:"staff"`
	Doctors         int                      `mapstructure:"doctors"`
	Patients        int                      `mapstructure:"patients"`
	Layout          []simulation.RoomSpec    `mapstructure:"layout"`
	Driver          simulation.DriverOptions `mapstructure:"driver"`
}

// PredictionConfig holds prediction engine settings.
type PredictionConfig struct {
	Threshold   float64                `mapstructure:"threshold"`
	Granularity prediction.Granularity `mapstructure:"granularity"`
	RecentSize  int                    `mapstructure:"recent_size"`
}

// ActivityConfig holds activity log and dispatcher settings.
type ActivityConfig struct {
	LogSize      int           `mapstructure:"log_size"`
	Buffer       int           `mapstructure:"buffer"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Slog         bool          `mapstructure:"slog"`
}

// NATSConfig holds the NATS activity sink settings.
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// KafkaConfig holds the Kafka activity sink settings.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MQTTConfig holds the MQTT activity sink settings.
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	QoS            int           `mapstructure:"qos"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Neo4jConfig holds graph export connection settings.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// String returns a safe representation of Neo4jConfig with the password masked.
func (c Neo4jConfig) String() string {
	return fmt.Sprintf("Neo4jConfig{URI:%s, Username:%s, Password:%s, Database:%s}",
		c.URI, c.Username, maskAPIKey(c.Password), c.Database)
}

// ClaudeConfig holds Anthropic Claude API settings.
type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// String returns a safe representation of ClaudeConfig with the API key masked.
func (c ClaudeConfig) String() string {
	masked := maskAPIKey(c.APIKey)
	return fmt.Sprintf("ClaudeConfig{APIKey:%s, Model:%s}", masked, c.Model)
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// Load reads configuration from .env, the config file and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".wardsim"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("WARDSIM")
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("claude.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("simulation.mode", "WARDSIM_SIMULATION_MODE")
	_ = v.BindEnv("simulation.drive", "WARDSIM_SIMULATION_DRIVE")
	_ = v.BindEnv("nats.url", "WARDSIM_NATS_URL", "NATS_URL")
	_ = v.BindEnv("kafka.brokers", "WARDSIM_KAFKA_BROKERS")
	_ = v.BindEnv("mqtt.broker", "WARDSIM_MQTT_BROKER")
	_ = v.BindEnv("neo4j.uri", "WARDSIM_NEO4J_URI", "NEO4J_URI")
	_ = v.BindEnv("neo4j.password", "WARDSIM_NEO4J_PASSWORD", "NEO4J_PASSWORD")
	_ = v.BindEnv("api.listen_addr", "WARDSIM_API_LISTEN_ADDR")
	_ = v.BindEnv("api.auth_token", "WARDSIM_API_AUTH_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK: use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if len(cfg.Simulation.Layout) == 0 {
		cfg.Simulation.Layout = simulation.DefaultLayout()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	drv := simulation.DefaultDriverOptions()
	pol := equipment.DefaultPolicy()
	pred := prediction.DefaultOptions()

	v.SetDefault("simulation.mode", string(models.ModePredictive))
	v.SetDefault("simulation.drive", string(models.DriveAuto))
	v.SetDefault("simulation.tick", DefaultTick)
	v.SetDefault("simulation.steps", DefaultSteps)
	v.SetDefault("simulation.speed", 1.0)
	v.SetDefault("simulation.history_size", 100)
	v.SetDefault("simulation.movement_log_size", simulation.DefaultMovementLogSize)
	v.SetDefault("simulation.start_room", "lobby")
	v.SetDefault("simulation.staff", 1)
	v.SetDefault("simulation.doctors", 1)
	v.SetDefault("simulation.patients", 1)
	v.SetDefault("simulation.driver.kind", string(drv.Kind))
	v.SetDefault("simulation.driver.seed", drv.Seed)
	v.SetDefault("simulation.driver.dwell", drv.Dwell)
	v.SetDefault("simulation.driver.jitter", drv.Jitter)
	v.SetDefault("simulation.driver.restart_wait", drv.RestartWait)

	v.SetDefault("equipment.sleep_after", pol.SleepAfter)
	v.SetDefault("equipment.shutdown_after", pol.ShutdownAfter)
	v.SetDefault("equipment.shutdown_duration", pol.ShutdownDuration)
	v.SetDefault("equipment.sleep_fraction", pol.SleepFraction)

	v.SetDefault("prediction.threshold", pred.Threshold)
	v.SetDefault("prediction.granularity", string(pred.Granularity))
	v.SetDefault("prediction.recent_size", pred.RecentSize)

	v.SetDefault("activity.log_size", 200)
	v.SetDefault("activity.buffer", 256)
	v.SetDefault("activity.write_timeout", 5*time.Second)
	v.SetDefault("activity.slog", false)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "wardsim.events")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "wardsim.events")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "wardsim")
	v.SetDefault("mqtt.topic_prefix", "wardsim")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.connect_timeout", 5*time.Second)

	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.database", "neo4j")

	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	s := c.Simulation
	if !s.Mode.IsValid() {
		return fmt.Errorf("simulation.mode must be predictive or traditional, got %q", s.Mode)
	}
	if !s.Drive.IsValid() {
		return fmt.Errorf("simulation.drive must be auto or manual, got %q", s.Drive)
	}
	if s.Tick <= 0 {
		return fmt.Errorf("simulation.tick must be greater than 0")
	}
	if s.Steps <= 0 {
		return fmt.Errorf("simulation.steps must be greater than 0")
	}
	if s.Speed <= 0 {
		return fmt.Errorf("simulation.speed must be greater than 0")
	}
	if s.Staff < 0 || s.Doctors < 0 || s.Patients < 0 {
		return fmt.Errorf("simulation actor counts must be >= 0")
	}
	if !s.Driver.Kind.IsValid() {
		return fmt.Errorf("simulation.driver.kind must be script or patrol, got %q", s.Driver.Kind)
	}
	if s.Driver.Dwell <= 0 {
		return fmt.Errorf("simulation.driver.dwell must be greater than 0")
	}
	if s.Driver.Jitter < 0 || s.Driver.Jitter >= 1 {
		return fmt.Errorf("simulation.driver.jitter must be in [0, 1)")
	}
	if len(s.Layout) > 0 && !hasRoom(s.Layout, s.StartRoom) {
		return fmt.Errorf("simulation.start_room %q is not in the layout", s.StartRoom)
	}

	e := c.Equipment
	if e.SleepAfter <= 0 {
		return fmt.Errorf("equipment.sleep_after must be greater than 0")
	}
	if e.ShutdownAfter <= e.SleepAfter {
		return fmt.Errorf("equipment.shutdown_after (%s) must be greater than equipment.sleep_after (%s)", e.ShutdownAfter, e.SleepAfter)
	}
	if e.ShutdownDuration < 0 {
		return fmt.Errorf("equipment.shutdown_duration must be >= 0")
	}
	if e.SleepFraction < 0 || e.SleepFraction > 1 {
		return fmt.Errorf("equipment.sleep_fraction must be between 0 and 1")
	}

	if c.Prediction.Threshold <= 0 || c.Prediction.Threshold > 1 {
		return fmt.Errorf("prediction.threshold must be in (0, 1]")
	}
	if !c.Prediction.Granularity.IsValid() {
		return fmt.Errorf("prediction.granularity must be type or actor, got %q", c.Prediction.Granularity)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url must not be empty when nats is enabled")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic must be set when kafka is enabled")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must not be empty when mqtt is enabled")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

// SimulationOptions converts the configuration into simulation options.
func (c *Config) SimulationOptions() simulation.Options {
	layout := c.Simulation.Layout
	if len(layout) == 0 {
		layout = simulation.DefaultLayout()
	}
	return simulation.Options{
		Mode:   models.Mode{Sim: c.Simulation.Mode, Drive: c.Simulation.Drive},
		Layout: layout,
		Policy: c.Equipment,
		Prediction: prediction.Options{
			Threshold:   c.Prediction.Threshold,
			Granularity: c.Prediction.Granularity,
			RecentSize:  c.Prediction.RecentSize,
		},
		HistorySize:     c.Simulation.HistorySize,
		MovementLogSize: c.Simulation.MovementLogSize,
		Driver:          c.Simulation.Driver,
	}
}

func hasRoom(layout []simulation.RoomSpec, id string) bool {
	for _, rs := range layout {
		if rs.ID == id {
			return true
		}
	}
	return false
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
