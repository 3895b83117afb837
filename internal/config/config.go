package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Media     MediaConfig
	Queue     QueueConfig
	Engines   EnginesConfig
	Highlight HighlightConfig
	Reframe   ReframeConfig
	Render    RenderConfig
	ABTest    ABTestConfig
	Schedule  ScheduleConfig
	Publisher PublisherConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	APIKey          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage configuration. Storage is an
// optional mirror of the local media root.
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// MediaConfig holds the artifact layout configuration
type MediaConfig struct {
	RootDir string // rendered clips and thumbnails live here
	BaseURL string // externally servable mirror of RootDir
	TempDir string
}

// QueueConfig holds job queue configuration
type QueueConfig struct {
	Name       string
	PopTimeout time.Duration
}

// EnginesConfig holds the external collaborator engine endpoints
type EnginesConfig struct {
	FFmpegPath   string
	FFprobePath  string
	YTDLPPath    string
	WhisperBin   string
	WhisperModel string
	EmbedderURL  string
	DetectorURL  string
	TrackerURL   string
}

// HighlightConfig holds ranking engine parameters
type HighlightConfig struct {
	TargetLen    float64
	Stride       float64
	IOUThreshold float64
	MaxSegments  int
}

// ReframeConfig holds reframing engine parameters
type ReframeConfig struct {
	TargetHeight     int
	CropWidth        int
	SampleFPS        float64
	TrackFPS         float64
	SmoothWindow     int
	RedetectInterval float64
}

// RenderConfig holds render and caption parameters
type RenderConfig struct {
	MaxCueGap     float64
	FontName      string
	FontSize      int
	PrimaryColor  string
	EmphasisColor string
}

// ABTestConfig holds A/B controller parameters
type ABTestConfig struct {
	EvalDays   int
	SwitchHour int
	EvalHour   int
}

// ScheduleConfig holds the wall-clock scheduler parameters
type ScheduleConfig struct {
	PollInterval   time.Duration
	AutoRenderHour int
	AutoRenderTopK int
}

// PublisherConfig holds the outbound publisher webhook configuration
type PublisherConfig struct {
	URL    string
	Secret string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// MetricsConfig holds the metrics server configuration
type MetricsConfig struct {
	Port int
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.apiKey", "")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "clipforge")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Storage defaults
	viper.SetDefault("storage.enabled", false)
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.bucketName", "clips")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)

	// Media layout defaults
	viper.SetDefault("media.rootDir", "/data")
	viper.SetDefault("media.baseURL", "/static")
	viper.SetDefault("media.tempDir", "/tmp/clipforge")

	// Queue defaults
	viper.SetDefault("queue.name", "jobs")
	viper.SetDefault("queue.popTimeout", "5s")

	// Engine defaults
	viper.SetDefault("engines.ffmpegPath", "ffmpeg")
	viper.SetDefault("engines.ffprobePath", "ffprobe")
	viper.SetDefault("engines.ytdlpPath", "yt-dlp")
	viper.SetDefault("engines.whisperBin", "whisper-cli")
	viper.SetDefault("engines.whisperModel", "")
	viper.SetDefault("engines.embedderURL", "http://localhost:8100/embed")
	viper.SetDefault("engines.detectorURL", "http://localhost:8101/detect")
	viper.SetDefault("engines.trackerURL", "http://localhost:8101/track")

	// Highlight ranking defaults
	viper.SetDefault("highlight.targetLen", 30.0)
	viper.SetDefault("highlight.stride", 10.0)
	viper.SetDefault("highlight.iouThreshold", 0.3)
	viper.SetDefault("highlight.maxSegments", 12)

	// Reframe defaults
	viper.SetDefault("reframe.targetHeight", 1920)
	viper.SetDefault("reframe.cropWidth", 1080)
	viper.SetDefault("reframe.sampleFPS", 2.0)
	viper.SetDefault("reframe.trackFPS", 10.0)
	viper.SetDefault("reframe.smoothWindow", 9)
	viper.SetDefault("reframe.redetectInterval", 1.0)

	// Render defaults
	viper.SetDefault("render.maxCueGap", 0.6)
	viper.SetDefault("render.fontName", "Inter")
	viper.SetDefault("render.fontSize", 48)
	viper.SetDefault("render.primaryColor", "&H00FFFFFF")
	viper.SetDefault("render.emphasisColor", "&H0000FF00")

	// A/B test defaults
	viper.SetDefault("abtest.evalDays", 4)
	viper.SetDefault("abtest.switchHour", 6)
	viper.SetDefault("abtest.evalHour", 7)

	// Scheduler defaults
	viper.SetDefault("schedule.pollInterval", "1m")
	viper.SetDefault("schedule.autoRenderHour", 9)
	viper.SetDefault("schedule.autoRenderTopK", 3)

	// Publisher defaults
	viper.SetDefault("publisher.url", "")
	viper.SetDefault("publisher.secret", "")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Metrics defaults
	viper.SetDefault("metrics.port", 9090)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "clipforge")
	viper.SetDefault("tracing.jaegerEndpoint", "http://localhost:14268/api/traces")
}
