package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-converter/internal/convert"
	"media-converter/internal/logging"
	"media-converter/internal/memory"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Counter backends.
const (
	CounterSQLite = "sqlite"
	CounterRedis  = "redis"
	CounterMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	MediaDir        string
	DatabaseDir     string
	LogDir          string
	UploadDir       string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	Codec          string
	CounterBackend string
	RedisAddr      string
	RedisKey       string
	NATSURL        string
	EventSubject   string
	SweepSchedule  string
	SweepRate      float64
	UploadSettle   time.Duration
	AdminTokenHash string
	SettingsFile   string

	Settings convert.Settings

	// Derived paths
	DatabasePath string
	AuditLogPath string
}

// LoadConfig prints the startup banner, reads the configuration and logs it.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	config, err := ReadConfig()
	if err != nil {
		return nil, err
	}
	config.log()
	return config, nil
}

// ReadConfig reads the configuration without any banner output. Values come
// from a .env file (ENV_FILE, default ".env", optional), the environment,
// and finally the YAML settings file named by SETTINGS_FILE.
func ReadConfig() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Failed to load %s: %v", envFile, err)
	}

	defaults := convert.DefaultSettings()
	settings := convert.Settings{
		MaxDimension:    getEnvInt("MAX_DIMENSION", defaults.MaxDimension),
		Quality:         getEnvInt("QUALITY", defaults.Quality),
		DeleteOriginals: getEnvBool("DELETE_ORIGINALS", defaults.DeleteOriginals),
		EnableLogging:   getEnvBool("ENABLE_LOGGING", defaults.EnableLogging),
		FilePrefix:      getEnv("FILE_PREFIX", defaults.FilePrefix),
	}

	settingsFile := getEnv("SETTINGS_FILE", "")
	if settingsFile != "" {
		if err := applySettingsFile(settingsFile, &settings); err != nil {
			return nil, err
		}
	}

	sweepRate, err := strconv.ParseFloat(getEnv("SWEEP_RATE", "0"), 64)
	if err != nil || sweepRate < 0 {
		logging.Warn("Invalid SWEEP_RATE, sweeps will not be throttled")
		sweepRate = 0
	}

	settle, err := time.ParseDuration(getEnv("UPLOAD_SETTLE", "2s"))
	if err != nil {
		logging.Warn("Invalid UPLOAD_SETTLE, using default: 2s")
		settle = 2 * time.Second
	}

	config := &Config{
		MediaDir:        getEnv("MEDIA_DIR", "/media"),
		DatabaseDir:     getEnv("DATABASE_DIR", "/database"),
		LogDir:          getEnv("LOG_DIR", "/logs"),
		UploadDir:       getEnv("UPLOAD_DIR", ""),
		Port:            getEnv("PORT", "8080"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
		Codec:           strings.ToLower(getEnv("CODEC", "vips")),
		CounterBackend:  strings.ToLower(getEnv("COUNTER_BACKEND", CounterSQLite)),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisKey:        getEnv("REDIS_KEY", ""),
		NATSURL:         getEnv("NATS_URL", ""),
		EventSubject:    getEnv("EVENT_SUBJECT", ""),
		SweepSchedule:   getEnv("SWEEP_SCHEDULE", ""),
		SweepRate:       sweepRate,
		UploadSettle:    settle,
		AdminTokenHash:  getEnv("ADMIN_TOKEN_HASH", ""),
		SettingsFile:    settingsFile,
		Settings:        settings.Sanitize(),
	}

	switch config.CounterBackend {
	case CounterSQLite, CounterMemory:
	case CounterRedis:
		if config.RedisAddr == "" {
			return nil, fmt.Errorf("COUNTER_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return nil, fmt.Errorf("unknown COUNTER_BACKEND %q", config.CounterBackend)
	}

	for _, dir := range []*string{&config.MediaDir, &config.DatabaseDir, &config.LogDir, &config.UploadDir} {
		if *dir == "" {
			continue
		}
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %s: %w", *dir, err)
		}
		*dir = abs
	}

	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	if err := ensureDirectory(config.MediaDir, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	config.DatabasePath = filepath.Join(config.DatabaseDir, "media.db")
	config.AuditLogPath = filepath.Join(config.LogDir, "conversion.log")
	return config, nil
}

// applySettingsFile overlays the keys present in a YAML file onto settings.
func applySettingsFile(path string, settings *convert.Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	logging.Debug("  Loaded conversion settings from %s", path)
	return nil
}

func (c *Config) log() {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  MEDIA_DIR:           %s", c.MediaDir)
	logging.Info("  DATABASE_DIR:        %s", c.DatabaseDir)
	logging.Info("  LOG_DIR:             %s", c.LogDir)
	logging.Info("  UPLOAD_DIR:          %s", valueOr(c.UploadDir, "(watcher disabled)"))
	logging.Info("  PORT:                %s", c.Port)
	logging.Info("  METRICS_PORT:        %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", c.MetricsEnabled)
	logging.Info("  CODEC:               %s", c.Codec)
	logging.Info("  COUNTER_BACKEND:     %s", c.CounterBackend)
	logging.Info("  NATS_URL:            %s", valueOr(c.NATSURL, "(events disabled)"))
	logging.Info("  SWEEP_SCHEDULE:      %s", valueOr(c.SweepSchedule, "(disabled)"))
	logging.Info("  SWEEP_RATE:          %v", c.SweepRate)
	logging.Info("  ADMIN_TOKEN_HASH:    %s", enabledString(c.AdminTokenHash != ""))
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	logging.Info("")
	logging.Info("  Conversion settings:")
	logging.Info("    max_dimension:     %d", c.Settings.MaxDimension)
	logging.Info("    quality:           %d", c.Settings.Quality)
	logging.Info("    delete_originals:  %v", c.Settings.DeleteOriginals)
	logging.Info("    enable_logging:    %v", c.Settings.EnableLogging)
	logging.Info("    file_prefix:       %s", c.Settings.FilePrefix)
	if c.SettingsFile != "" {
		logging.Info("    (overlaid from %s)", c.SettingsFile)
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMemoryConfig logs how the Go memory limit was configured.
func LogMemoryConfig(result memory.ConfigResult) {
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if !result.Configured {
		logging.Info("  No memory limit configured (set MEMORY_LIMIT or GOMEMLIMIT)")
		return
	}
	logging.Info("  Source:          %s", result.Source)
	if result.ContainerLimit > 0 {
		logging.Info("  Container limit: %s", FormatBytes(result.ContainerLimit))
		logging.Info("  Ratio:           %.2f", result.Ratio)
	}
	logging.Info("  GOMEMLIMIT:      %s", FormatBytes(result.GoMemLimit))
	logging.Info("")
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogCodecInit logs which codec was selected and what it can decode.
func LogCodecInit(name string, formats map[string]bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CODEC INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Codec: %s", name)

	keys := make([]string, 0, len(formats))
	for k := range formats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		logging.Info("    %-6s %s", k, enabledString(formats[k]))
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., subrouter prefix)
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Admin API:     http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
   __  ___       ___         _____                         __
  /  |/  /__ ___/ (_)__ _   / ___/__  ___ _  _____ ____  / /____ ____
 / /|_/ / -_) _  / / _ '/  / /__/ _ \/ _ \ |/ / -_) __/ / __/ -_) __/
/_/  /_/\__/\_,_/_/\_,_/   \___/\___/_//_/___/\__/_/    \__/\__/_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
