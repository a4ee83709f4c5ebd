package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"todoservice/internal/activity"
	"todoservice/internal/api"
	"todoservice/internal/metrics"
	"todoservice/internal/todo"
	"todoservice/shared/configstore"
	"todoservice/shared/datastore"
	"todoservice/shared/logging"
	"todoservice/shared/messagebus"
	"todoservice/shared/utils"

	"gopkg.in/yaml.v3"
)

// RawConfig holds the application configuration
type RawConfig struct {
	Server    RawServerConfig    `yaml:"server"`
	Logging   RawLoggingConfig   `yaml:"logging"`
	Datastore RawDatastoreConfig `yaml:"datastore"`
	Events    RawEventsConfig    `yaml:"events"`
	Activity  RawActivityConfig  `yaml:"activity"`
	Metrics   RawMetricsConfig   `yaml:"metrics"`
}

// RawServerConfig holds server-related configuration
type RawServerConfig struct {
	Host             string   `yaml:"host"`
	Port             int      `yaml:"port"`
	ReadTimeout      int      `yaml:"readTimeout"`
	WriteTimeout     int      `yaml:"writeTimeout"`
	BasePath         string   `yaml:"basePath"`
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	ForwardHeaders   []string `yaml:"forwardHeaders"`
}

// RawLoggingConfig holds logging-related configuration
type RawLoggingConfig struct {
	Level       string `yaml:"level"`       // Log level: debug, info, warn, error, fatal, panic
	FileName    string `yaml:"fileName"`    // Path to the log file, or "stderr"
	LoggerName  string `yaml:"loggerName"`  // Name identifier for the logger
	ServiceName string `yaml:"serviceName"` // Service name for structured logging
}

// RawDatastoreConfig selects the document store and the todo index
type RawDatastoreConfig struct {
	Backend    string   `yaml:"backend"` // opensearch or local
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	Refresh    string   `yaml:"refresh"`
	Index      string   `yaml:"index"`
	SearchSize int      `yaml:"searchSize"`
	ScrollSize int      `yaml:"scrollSize"`
	TopTags    int      `yaml:"topTags"`
}

// RawEventsConfig holds the lifecycle event producer configuration
type RawEventsConfig struct {
	Backend         string `yaml:"backend"` // kafka or local
	KafkaConfigFile string `yaml:"kafkaConfigFile"`
	LocalDir        string `yaml:"localDir"`
	LocalRetention  int    `yaml:"localRetention"` // messages kept in memory per topic
	Topic           string `yaml:"topic"`
}

// RawActivityConfig holds the activity history store configuration
type RawActivityConfig struct {
	Backend    string `yaml:"backend"` // mongo or local
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	LocalFile  string `yaml:"localFile"`
	Collection string `yaml:"collection"`
}

// RawMetricsConfig holds the in-process metrics collector configuration
type RawMetricsConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RetentionPeriod   time.Duration `yaml:"retentionPeriod"`
	AggregationWindow time.Duration `yaml:"aggregationWindow"`
	MaxEvents         int           `yaml:"maxEvents"`
	DumpInterval      time.Duration `yaml:"dumpInterval"`
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() *RawConfig {
	defaults := metrics.DefaultMetricsConfig()
	config := &RawConfig{
		Server: RawServerConfig{
			Host:             utils.GetEnv("SERVER_HOST", "localhost"),
			Port:             utils.GetEnvInt("SERVER_PORT", 4477),
			ReadTimeout:      utils.GetEnvInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout:     utils.GetEnvInt("SERVER_WRITE_TIMEOUT", 10),
			BasePath:         utils.GetEnv("SERVER_BASE_PATH", api.DefaultBasePath),
			AllowedOrigins:   utils.GetEnvList("SERVER_ALLOWED_ORIGINS", []string{"*"}),
			AllowCredentials: utils.GetEnvBool("SERVER_ALLOW_CREDENTIALS", false),
			ForwardHeaders:   utils.GetEnvList("SERVER_FORWARD_HEADERS", []string{"Authorization"}),
		},
		Logging: RawLoggingConfig{
			Level:       utils.GetEnv("LOG_LEVEL", "info"),
			FileName:    utils.GetEnv("LOG_FILE_NAME", logging.StderrPath),
			LoggerName:  utils.GetEnv("LOG_LOGGER_NAME", "main"),
			ServiceName: utils.GetEnv("LOG_SERVICE_NAME", "todo-service"),
		},
		Datastore: RawDatastoreConfig{
			Backend:    utils.GetEnv("DATASTORE_BACKEND", datastore.BackendOpenSearch),
			URLs:       utils.GetEnvList("OPENSEARCH_URLS", []string{"http://localhost:9200"}),
			Username:   utils.GetEnv("OPENSEARCH_USERNAME", ""),
			Password:   utils.GetEnv("OPENSEARCH_PASSWORD", ""),
			Refresh:    utils.GetEnv("OPENSEARCH_REFRESH", datastore.DefaultRefresh),
			Index:      utils.GetEnv("TODO_INDEX_NAME", todo.DefaultIndex),
			SearchSize: utils.GetEnvInt("TODO_SEARCH_SIZE", todo.DefaultSearchSize),
			ScrollSize: utils.GetEnvInt("TODO_SCROLL_SIZE", todo.DefaultScrollSize),
			TopTags:    utils.GetEnvInt("TODO_TOP_TAGS", todo.DefaultTopTags),
		},
		Events: RawEventsConfig{
			Backend:         utils.GetEnv("EVENTS_BACKEND", messagebus.BackendLocal),
			KafkaConfigFile: utils.GetEnv("EVENTS_KAFKA_CONFIG_FILE", "kafka-producer.yaml"),
			LocalDir:        utils.GetEnv("EVENTS_LOCAL_DIR", ""),
			LocalRetention:  utils.GetEnvInt("EVENTS_LOCAL_RETENTION", messagebus.DefaultLocalRetention),
			Topic:           utils.GetEnv("EVENTS_TOPIC", activity.DefaultTopic),
		},
		Activity: RawActivityConfig{
			Backend:    utils.GetEnv("ACTIVITY_BACKEND", configstore.BackendLocal),
			URI:        utils.GetEnv("ACTIVITY_MONGO_URI", "mongodb://localhost:27017"),
			Database:   utils.GetEnv("ACTIVITY_MONGO_DATABASE", "todos"),
			LocalFile:  utils.GetEnv("ACTIVITY_LOCAL_FILE", ""),
			Collection: utils.GetEnv("ACTIVITY_COLLECTION", activity.DefaultCollection),
		},
		Metrics: RawMetricsConfig{
			Enabled:           utils.GetEnvBool("METRICS_ENABLED", true),
			RetentionPeriod:   time.Duration(utils.GetEnvInt("METRICS_RETENTION_SECONDS", int(defaults.RetentionPeriod.Seconds()))) * time.Second,
			AggregationWindow: time.Duration(utils.GetEnvInt("METRICS_AGGREGATION_WINDOW_SECONDS", int(defaults.AggregationWindow.Seconds()))) * time.Second,
			MaxEvents:         utils.GetEnvInt("METRICS_MAX_EVENTS", defaults.MaxEvents),
			DumpInterval:      time.Duration(utils.GetEnvInt("METRICS_DUMP_INTERVAL_SECONDS", int(defaults.DumpInterval.Seconds()))) * time.Second,
		},
	}

	return config
}

// LoadConfigFromFile loads configuration from a YAML file with optional environment variable overrides
func LoadConfigFromFile(configPath string) (*RawConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
	}

	// start from the env defaults so sections missing from the file stay usable
	config := LoadConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing YAML config file %s: %w", configPath, err)
	}

	overrideWithEnvVars(config)

	return config, nil
}

// LoadConfigWithDefaults loads configuration from file if it exists, falling back to environment variables and defaults
func LoadConfigWithDefaults(configPath string) *RawConfig {
	if config, err := LoadConfigFromFile(configPath); err == nil {
		return config
	}

	return LoadConfig()
}

// overrideWithEnvVars overrides config values with environment variables if they are set
func overrideWithEnvVars(config *RawConfig) {
	overrideServerConfig(&config.Server)
	overrideLoggingConfig(&config.Logging)
	overrideDatastoreConfig(&config.Datastore)
	overrideEventsConfig(&config.Events)
	overrideActivityConfig(&config.Activity)
	overrideMetricsConfig(&config.Metrics)
}

func overrideServerConfig(server *RawServerConfig) {
	if host := utils.GetEnv("SERVER_HOST", ""); host != "" {
		server.Host = host
	}
	if port := utils.GetEnvInt("SERVER_PORT", -1); port != -1 {
		server.Port = port
	}
	if readTimeout := utils.GetEnvInt("SERVER_READ_TIMEOUT", -1); readTimeout != -1 {
		server.ReadTimeout = readTimeout
	}
	if writeTimeout := utils.GetEnvInt("SERVER_WRITE_TIMEOUT", -1); writeTimeout != -1 {
		server.WriteTimeout = writeTimeout
	}
	if basePath := utils.GetEnv("SERVER_BASE_PATH", ""); basePath != "" {
		server.BasePath = basePath
	}
	if origins := utils.GetEnvList("SERVER_ALLOWED_ORIGINS", nil); origins != nil {
		server.AllowedOrigins = origins
	}
	if v := os.Getenv("SERVER_ALLOW_CREDENTIALS"); v != "" {
		server.AllowCredentials = utils.GetEnvBool("SERVER_ALLOW_CREDENTIALS", server.AllowCredentials)
	}
	if headers := utils.GetEnvList("SERVER_FORWARD_HEADERS", nil); headers != nil {
		server.ForwardHeaders = headers
	}
}

func overrideLoggingConfig(logging *RawLoggingConfig) {
	if level := utils.GetEnv("LOG_LEVEL", ""); level != "" {
		logging.Level = level
	}
	if fileName := utils.GetEnv("LOG_FILE_NAME", ""); fileName != "" {
		logging.FileName = fileName
	}
	if loggerName := utils.GetEnv("LOG_LOGGER_NAME", ""); loggerName != "" {
		logging.LoggerName = loggerName
	}
	if serviceName := utils.GetEnv("LOG_SERVICE_NAME", ""); serviceName != "" {
		logging.ServiceName = serviceName
	}
}

func overrideDatastoreConfig(ds *RawDatastoreConfig) {
	if backend := utils.GetEnv("DATASTORE_BACKEND", ""); backend != "" {
		ds.Backend = backend
	}
	if urls := utils.GetEnvList("OPENSEARCH_URLS", nil); urls != nil {
		ds.URLs = urls
	}
	if username := utils.GetEnv("OPENSEARCH_USERNAME", ""); username != "" {
		ds.Username = username
	}
	if password := utils.GetEnv("OPENSEARCH_PASSWORD", ""); password != "" {
		ds.Password = password
	}
	if refresh := utils.GetEnv("OPENSEARCH_REFRESH", ""); refresh != "" {
		ds.Refresh = refresh
	}
	if index := utils.GetEnv("TODO_INDEX_NAME", ""); index != "" {
		ds.Index = index
	}
	if size := utils.GetEnvInt("TODO_SEARCH_SIZE", -1); size != -1 {
		ds.SearchSize = size
	}
	if size := utils.GetEnvInt("TODO_SCROLL_SIZE", -1); size != -1 {
		ds.ScrollSize = size
	}
	if n := utils.GetEnvInt("TODO_TOP_TAGS", -1); n != -1 {
		ds.TopTags = n
	}
}

func overrideEventsConfig(events *RawEventsConfig) {
	if backend := utils.GetEnv("EVENTS_BACKEND", ""); backend != "" {
		events.Backend = backend
	}
	if file := utils.GetEnv("EVENTS_KAFKA_CONFIG_FILE", ""); file != "" {
		events.KafkaConfigFile = file
	}
	if dir := utils.GetEnv("EVENTS_LOCAL_DIR", ""); dir != "" {
		events.LocalDir = dir
	}
	if n := utils.GetEnvInt("EVENTS_LOCAL_RETENTION", -1); n != -1 {
		events.LocalRetention = n
	}
	if topic := utils.GetEnv("EVENTS_TOPIC", ""); topic != "" {
		events.Topic = topic
	}
}

func overrideActivityConfig(act *RawActivityConfig) {
	if backend := utils.GetEnv("ACTIVITY_BACKEND", ""); backend != "" {
		act.Backend = backend
	}
	if uri := utils.GetEnv("ACTIVITY_MONGO_URI", ""); uri != "" {
		act.URI = uri
	}
	if db := utils.GetEnv("ACTIVITY_MONGO_DATABASE", ""); db != "" {
		act.Database = db
	}
	if file := utils.GetEnv("ACTIVITY_LOCAL_FILE", ""); file != "" {
		act.LocalFile = file
	}
	if coll := utils.GetEnv("ACTIVITY_COLLECTION", ""); coll != "" {
		act.Collection = coll
	}
}

func overrideMetricsConfig(m *RawMetricsConfig) {
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		m.Enabled = utils.GetEnvBool("METRICS_ENABLED", m.Enabled)
	}
	if secs := utils.GetEnvInt("METRICS_RETENTION_SECONDS", -1); secs != -1 {
		m.RetentionPeriod = time.Duration(secs) * time.Second
	}
	if secs := utils.GetEnvInt("METRICS_AGGREGATION_WINDOW_SECONDS", -1); secs != -1 {
		m.AggregationWindow = time.Duration(secs) * time.Second
	}
	if n := utils.GetEnvInt("METRICS_MAX_EVENTS", -1); n != -1 {
		m.MaxEvents = n
	}
	if secs := utils.GetEnvInt("METRICS_DUMP_INTERVAL_SECONDS", -1); secs != -1 {
		m.DumpInterval = time.Duration(secs) * time.Second
	}
}

// Address returns the host:port the HTTP server listens on
func (cfg RawServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// CORS converts the origin settings to the api middleware config
func (cfg RawServerConfig) CORS() api.CORSConfig {
	return api.CORSConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: cfg.AllowCredentials,
	}
}

// ConvertToLoggerConfig converts RawLoggingConfig to logging.LoggerConfig
func (cfg RawLoggingConfig) ConvertToLoggerConfig() logging.LoggerConfig {
	return logging.LoggerConfig{
		Level:       logging.ParseLevel(cfg.Level),
		FilePath:    cfg.FileName,
		LoggerName:  cfg.LoggerName,
		ServiceName: cfg.ServiceName,
	}
}

// ConvertToDatastoreConfig converts RawDatastoreConfig to datastore.Config
func (cfg RawDatastoreConfig) ConvertToDatastoreConfig() datastore.Config {
	return datastore.Config{
		Backend:  strings.ToLower(cfg.Backend),
		URLs:     cfg.URLs,
		Username: cfg.Username,
		Password: cfg.Password,
		Refresh:  cfg.Refresh,
	}
}

// ConvertToTodoConfig converts RawDatastoreConfig to todo.Config. The index
// name gets the deployment prefix.
func (cfg RawDatastoreConfig) ConvertToTodoConfig() todo.Config {
	index := cfg.Index
	if index == "" {
		index = todo.DefaultIndex
	}
	return todo.Config{
		Index:      datastore.PrefixedIndex(index),
		SearchSize: cfg.SearchSize,
		ScrollSize: cfg.ScrollSize,
		TopTags:    cfg.TopTags,
	}
}

// ConvertToProducerConfig converts RawEventsConfig to messagebus.ProducerConfig
func (cfg RawEventsConfig) ConvertToProducerConfig() messagebus.ProducerConfig {
	return messagebus.ProducerConfig{
		Backend:        cfg.Backend,
		ConfigFile:     utils.ResolveConfFilePath(cfg.KafkaConfigFile),
		LocalDir:       cfg.LocalDir,
		LocalRetention: cfg.LocalRetention,
	}
}

// ConvertToStoreConfig converts RawActivityConfig to configstore.Config
func (cfg RawActivityConfig) ConvertToStoreConfig() configstore.Config {
	return configstore.Config{
		Backend:   cfg.Backend,
		URI:       cfg.URI,
		Database:  cfg.Database,
		LocalFile: cfg.LocalFile,
	}
}

// ConvertToMetricsConfig converts RawMetricsConfig to metrics.MetricsConfig,
// keeping defaults for unset values
func (cfg RawMetricsConfig) ConvertToMetricsConfig() metrics.MetricsConfig {
	out := metrics.DefaultMetricsConfig()
	if cfg.RetentionPeriod > 0 {
		out.RetentionPeriod = cfg.RetentionPeriod
	}
	if cfg.AggregationWindow > 0 {
		out.AggregationWindow = cfg.AggregationWindow
	}
	if cfg.MaxEvents > 0 {
		out.MaxEvents = cfg.MaxEvents
	}
	if cfg.DumpInterval > 0 {
		out.DumpInterval = cfg.DumpInterval
	}
	return out
}
