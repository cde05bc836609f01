package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"watchtrail/internal/clustering"
)

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	Embedding  Embedding  `mapstructure:"embedding"`
	Clustering Clustering `mapstructure:"clustering"`
	Cache      Cache      `mapstructure:"cache"`
	Output     Output     `mapstructure:"output"`
	Server     Server     `mapstructure:"server"`
	Logging    Logging    `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// Embedding selects and tunes the text embedding backend
type Embedding struct {
	Provider   string `mapstructure:"provider"` // gemini or ollama
	Model      string `mapstructure:"model"`
	Dimensions int32  `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
	Timeout    string `mapstructure:"timeout"`
	MaxRetries int    `mapstructure:"max_retries"`
	APIKey     string `mapstructure:"api_key"`
	OllamaURL  string `mapstructure:"ollama_url"`
}

// Clustering holds both stage configurations
type Clustering struct {
	Content StageOptions `mapstructure:"content"`
	Time    StageOptions `mapstructure:"time"`
	Workers int          `mapstructure:"workers"`
}

// StageOptions mirrors the tunable options of one clustering run
type StageOptions struct {
	MinClusterSize     int     `mapstructure:"min_cluster_size"`
	MinSamples         int     `mapstructure:"min_samples"`
	Metric             string  `mapstructure:"metric"`
	Normalize          bool    `mapstructure:"normalize"`
	SelectionMethod    string  `mapstructure:"cluster_selection_method"`
	SelectionEpsilon   float64 `mapstructure:"cluster_selection_epsilon"`
	AllowSingleCluster bool    `mapstructure:"allow_single_cluster"`
}

// Cache holds embedding cache configuration
type Cache struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

// Output holds output configuration
type Output struct {
	Directory string `mapstructure:"directory"`
	File      string `mapstructure:"file"`
}

// Server holds the viewer HTTP server configuration
type Server struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  string   `mapstructure:"read_timeout"`
	WriteTimeout string   `mapstructure:"write_timeout"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".watchtrail")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.SetEnvPrefix("WATCHTRAIL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".watchtrail")

	// Embedding defaults
	viper.SetDefault("embedding.provider", "gemini")
	viper.SetDefault("embedding.model", "text-embedding-004")
	viper.SetDefault("embedding.dimensions", 768)
	viper.SetDefault("embedding.batch_size", 100)
	viper.SetDefault("embedding.timeout", "60s")
	viper.SetDefault("embedding.max_retries", 3)
	viper.SetDefault("embedding.ollama_url", "http://localhost:11434")

	// Clustering defaults
	content := clustering.DefaultHDBSCANConfig()
	setStageDefaults("clustering.content", content)
	timeStage := clustering.DefaultTimeHDBSCANConfig()
	setStageDefaults("clustering.time", timeStage)
	viper.SetDefault("clustering.workers", 0)

	// Cache defaults
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.directory", ".watchtrail")

	// Output defaults
	viper.SetDefault("output.directory", "data")
	viper.SetDefault("output.file", "watch_history_clustered.json")

	// Server defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

func setStageDefaults(prefix string, c clustering.HDBSCANConfig) {
	viper.SetDefault(prefix+".min_cluster_size", c.MinClusterSize)
	viper.SetDefault(prefix+".min_samples", c.MinSamples)
	viper.SetDefault(prefix+".metric", string(c.Metric))
	viper.SetDefault(prefix+".normalize", c.Normalize)
	viper.SetDefault(prefix+".cluster_selection_method", string(c.SelectionMethod))
	viper.SetDefault(prefix+".cluster_selection_epsilon", c.SelectionEpsilon)
	viper.SetDefault(prefix+".allow_single_cluster", c.AllowSingleCluster)
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	// Gemini API key - support multiple formats
	bindEnvKeys("embedding.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("embedding.ollama_url", []string{
		"OLLAMA_HOST",
		"OLLAMA_URL",
	})

	bindEnvKeys("embedding.provider", []string{
		"EMBEDDING_PROVIDER",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"WATCHTRAIL_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	config.App.DataDir = expandPath(config.App.DataDir)
	config.Cache.Directory = expandPath(config.Cache.Directory)
	config.Output.Directory = expandPath(config.Output.Directory)

	if config.App.Debug {
		config.Logging.Level = "debug"
	}

	durations := map[string]string{
		"embedding.timeout":    config.Embedding.Timeout,
		"server.read_timeout":  config.Server.ReadTimeout,
		"server.write_timeout": config.Server.WriteTimeout,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig checks values that do not depend on which command runs.
// Credentials are checked by RequireEmbedding, since parse and serve never embed.
func validateConfig(config *Config) error {
	var errors []string

	switch config.Embedding.Provider {
	case "gemini", "ollama":
	default:
		errors = append(errors, fmt.Sprintf("Unknown embedding provider: %s. Supported: gemini, ollama", config.Embedding.Provider))
	}
	if config.Embedding.BatchSize < 1 {
		errors = append(errors, "embedding.batch_size must be at least 1")
	}
	if config.Embedding.MaxRetries < 0 {
		errors = append(errors, "embedding.max_retries must not be negative")
	}

	if _, err := config.ClusteringConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if config.Server.Port < 0 || config.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("server.port out of range: %d", config.Server.Port))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RequireEmbedding reports missing credentials for the configured embedding provider
func (c *Config) RequireEmbedding() error {
	if c.Embedding.Provider == "gemini" && !isValidAPIKey(c.Embedding.APIKey) {
		return fmt.Errorf("Gemini API key is required. Set GEMINI_API_KEY environment variable or embedding.api_key in config file")
	}
	if c.Embedding.Provider == "ollama" && c.Embedding.OllamaURL == "" {
		return fmt.Errorf("Ollama URL is required. Set OLLAMA_HOST or embedding.ollama_url")
	}
	return nil
}

// ClusteringConfig converts the clustering section into the engine's
// configuration and validates both stages.
func (c *Config) ClusteringConfig() (clustering.TwoStageConfig, error) {
	content, err := c.Clustering.Content.toHDBSCAN()
	if err != nil {
		return clustering.TwoStageConfig{}, fmt.Errorf("clustering.content: %w", err)
	}
	timeStage, err := c.Clustering.Time.toHDBSCAN()
	if err != nil {
		return clustering.TwoStageConfig{}, fmt.Errorf("clustering.time: %w", err)
	}
	return clustering.TwoStageConfig{
		Content: content,
		Time:    timeStage,
		Workers: c.Clustering.Workers,
	}, nil
}

func (s StageOptions) toHDBSCAN() (clustering.HDBSCANConfig, error) {
	method, err := clustering.ParseSelectionMethod(s.SelectionMethod)
	if err != nil {
		return clustering.HDBSCANConfig{}, err
	}
	cfg := clustering.HDBSCANConfig{
		MinClusterSize:     s.MinClusterSize,
		MinSamples:         s.MinSamples,
		Metric:             clustering.Metric(strings.ToLower(s.Metric)),
		Normalize:          s.Normalize,
		SelectionMethod:    method,
		SelectionEpsilon:   s.SelectionEpsilon,
		AllowSingleCluster: s.AllowSingleCluster,
	}
	if err := cfg.Validate(); err != nil {
		return clustering.HDBSCANConfig{}, err
	}
	return cfg, nil
}

// TimeoutDuration returns the parsed embedding timeout
func (e Embedding) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// Addr returns host:port for the viewer server
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// OutputPath joins the output directory and file name
func (o Output) OutputPath() string {
	return filepath.Join(o.Directory, o.File)
}

// Convenience getters for the sections commands read directly
func GetCache() Cache   { return Get().Cache }
func GetOutput() Output { return Get().Output }
func GetServer() Server { return Get().Server }

// isValidAPIKey checks if an API key is valid (not empty and not a placeholder)
func isValidAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	placeholders := []string{
		"your-api-key", "your-gemini-key", "YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}
	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}

	return true
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
