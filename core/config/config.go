package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "SMARTSCHEDULE"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // development | production
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres | sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Backend    string        `mapstructure:"backend"` // memory | redis | tiered
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type GoogleAPIConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Endpoint     string `mapstructure:"endpoint"`
}

type CalendarConfig struct {
	Backend      string          `mapstructure:"backend"` // static | database | google
	StaticFile   string          `mapstructure:"static_file"`
	FetchTimeout time.Duration   `mapstructure:"fetch_timeout"`
	Google       GoogleAPIConfig `mapstructure:"google"`
}

type WeightsConfig struct {
	Coverage  float64 `mapstructure:"coverage"`
	TimeOfDay float64 `mapstructure:"time_of_day"`
	DayOfWeek float64 `mapstructure:"day_of_week"`
	Earliness float64 `mapstructure:"earliness"`
}

// EngineConfig tunes the slot engine. StrictInvariants defaults to true outside production
// mode. DayMultipliers overrides the day-of-week score per weekday name, e.g. friday: 0.5.
type EngineConfig struct {
	QueryTimeout     time.Duration      `mapstructure:"query_timeout"`
	Granularity      time.Duration      `mapstructure:"granularity"`
	Step             time.Duration      `mapstructure:"step"`
	MaxRangeDays     int                `mapstructure:"max_range_days"`
	StrictInvariants bool               `mapstructure:"strict_invariants"`
	Weights          WeightsConfig      `mapstructure:"weights"`
	PeakHour         float64            `mapstructure:"peak_hour"`
	SpreadHours      float64            `mapstructure:"spread_hours"`
	DayMultipliers   map[string]float64 `mapstructure:"day_multipliers"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Weekdays resolves DayMultipliers by weekday.
func (e EngineConfig) Weekdays() (map[time.Weekday]float64, error) {
	out := make(map[time.Weekday]float64, len(e.DayMultipliers))
	for name, m := range e.DayMultipliers {
		day, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("engine.day_multipliers: %q is not a weekday", name)
		}
		if m < 0 || m > 1 {
			return nil, fmt.Errorf("engine.day_multipliers.%s must be within [0, 1], got %g", name, m)
		}
		out[day] = m
	}
	return out, nil
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type WorkerConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

var (
	mu       sync.RWMutex
	instance *Config
)

// GetSafe returns the config installed by the last successful Load.
func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}

// Load reads defaults, an optional YAML file at path, .env and SMARTSCHEDULE_* variables,
// in increasing order of precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// no default is registered, so IsSet only sees the file and the environment
	if v.IsSet("engine.strict_invariants") {
		cfg.Engine.StrictInvariants = v.GetBool("engine.strict_invariants")
	} else {
		cfg.Engine.StrictInvariants = !cfg.IsProduction()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mu.Lock()
	instance = &cfg
	mu.Unlock()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7070)
	v.SetDefault("server.mode", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:smartschedule.db?_pragma=busy_timeout(5000)")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.ttl", 30*time.Minute)

	v.SetDefault("calendar.backend", "static")
	v.SetDefault("calendar.static_file", "")
	v.SetDefault("calendar.fetch_timeout", 5*time.Second)
	v.SetDefault("calendar.google.client_id", "")
	v.SetDefault("calendar.google.client_secret", "")
	v.SetDefault("calendar.google.endpoint", "https://www.googleapis.com/calendar/v3/freeBusy")

	v.SetDefault("engine.query_timeout", 20*time.Second)
	v.SetDefault("engine.granularity", 15*time.Minute)
	v.SetDefault("engine.step", 30*time.Minute)
	v.SetDefault("engine.max_range_days", 62)
	v.SetDefault("engine.weights.coverage", 0.5)
	v.SetDefault("engine.weights.time_of_day", 0.3)
	v.SetDefault("engine.weights.day_of_week", 0.1)
	v.SetDefault("engine.weights.earliness", 0.1)
	v.SetDefault("engine.peak_hour", 10.0)
	v.SetDefault("engine.spread_hours", 2.5)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("rate_limit.rps", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.concurrency", 5)
}

func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "redis", "tiered":
	default:
		return fmt.Errorf("cache.backend %q is not one of memory, redis, tiered", c.Cache.Backend)
	}
	if c.Cache.Backend != "memory" && c.Redis.Addr == "" {
		return fmt.Errorf("cache.backend %q requires redis.addr", c.Cache.Backend)
	}
	if c.Worker.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("worker.enabled requires redis.addr")
	}

	switch c.Calendar.Backend {
	case "static", "database", "google":
	default:
		return fmt.Errorf("calendar.backend %q is not one of static, database, google", c.Calendar.Backend)
	}

	if c.Engine.Granularity <= 0 || c.Engine.Step <= 0 || c.Engine.Step%c.Engine.Granularity != 0 {
		return fmt.Errorf("engine.step (%s) must be a positive multiple of engine.granularity (%s)", c.Engine.Step, c.Engine.Granularity)
	}
	w := c.Engine.Weights
	if w.Coverage < 0 || w.TimeOfDay < 0 || w.DayOfWeek < 0 || w.Earliness < 0 {
		return fmt.Errorf("engine.weights must be non-negative")
	}
	if w.Coverage+w.TimeOfDay+w.DayOfWeek+w.Earliness <= 0 {
		return fmt.Errorf("engine.weights must not all be zero")
	}
	if _, err := c.Engine.Weekdays(); err != nil {
		return err
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Mode == "production"
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
