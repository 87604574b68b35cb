package server

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"turnball/sim"
)

// Config 进程级配置：默认值 <- .env/环境变量 <- 命令行参数
type Config struct {
	Addr              string
	LogFile           string
	LogLevel          string
	WebDir            string
	TickInterval      time.Duration
	BroadcastInterval time.Duration
	PlanDuration      time.Duration
	ResolveDuration   time.Duration
	MaxMsgsPerSecond  int
	TickWorkers       int
	InboxSize         int
}

// DefaultConfig 默认配置：20ms Tick，50ms 广播间隔，PLAN 15s / RESOLVE 4s
func DefaultConfig() Config {
	t := sim.DefaultTuning()
	return Config{
		Addr:              ":8080",
		LogFile:           "turnball.log",
		LogLevel:          "debug",
		WebDir:            "web",
		TickInterval:      time.Second / sim.TicksPerSecond, // 20ms
		BroadcastInterval: 50 * time.Millisecond,
		PlanDuration:      t.PlanDuration,
		ResolveDuration:   t.ResolveDuration,
		MaxMsgsPerSecond:  20,
		TickWorkers:       1,
		InboxSize:         256,
	}
}

// LoadConfig 读取可选的 .env 文件与 TURNBALL_* 环境变量
func LoadConfig(envFile string) (Config, error) {
	cfg := DefaultConfig()
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	str("TURNBALL_ADDR", &cfg.Addr)
	str("TURNBALL_LOG_FILE", &cfg.LogFile)
	str("TURNBALL_LOG_LEVEL", &cfg.LogLevel)
	str("TURNBALL_WEB_DIR", &cfg.WebDir)
	dur("TURNBALL_TICK", &cfg.TickInterval)
	dur("TURNBALL_BROADCAST", &cfg.BroadcastInterval)
	dur("TURNBALL_PLAN", &cfg.PlanDuration)
	dur("TURNBALL_RESOLVE", &cfg.ResolveDuration)
	num("TURNBALL_MAX_MSGS", &cfg.MaxMsgsPerSecond)
	num("TURNBALL_TICK_WORKERS", &cfg.TickWorkers)
	num("TURNBALL_INBOX", &cfg.InboxSize)
	return cfg, errors.Join(errs...)
}

// BindFlags 命令行参数覆盖（默认值取当前配置）
func (c *Config) BindFlags(set *flag.FlagSet) {
	set.StringVar(&c.Addr, "addr", c.Addr, "server listen address, e.g. :8080")
	set.StringVar(&c.LogFile, "log", c.LogFile, "rolling log file path, \"-\" for stderr")
	set.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	set.StringVar(&c.WebDir, "web", c.WebDir, "static web directory")
	set.DurationVar(&c.TickInterval, "tick", c.TickInterval, "physics tick interval")
	set.DurationVar(&c.BroadcastInterval, "broadcast", c.BroadcastInterval, "minimum interval between state broadcasts")
	set.DurationVar(&c.PlanDuration, "plan", c.PlanDuration, "PLAN phase duration")
	set.DurationVar(&c.ResolveDuration, "resolve", c.ResolveDuration, "RESOLVE phase duration")
	set.IntVar(&c.MaxMsgsPerSecond, "max-msgs", c.MaxMsgsPerSecond, "max inbound messages per second per connection")
	set.IntVar(&c.TickWorkers, "tick-workers", c.TickWorkers, "goroutines stepping rooms in parallel")
}

// Validate 启动前检查配置取值
func (c Config) Validate() error {
	switch {
	case c.TickInterval <= 0:
		return fmt.Errorf("tick interval must be positive, got %v", c.TickInterval)
	case c.BroadcastInterval < 0:
		return fmt.Errorf("broadcast interval must not be negative, got %v", c.BroadcastInterval)
	case c.PlanDuration <= 0 || c.ResolveDuration <= 0:
		return fmt.Errorf("phase durations must be positive")
	case c.MaxMsgsPerSecond <= 0:
		return fmt.Errorf("max-msgs must be positive, got %d", c.MaxMsgsPerSecond)
	case c.InboxSize <= 0:
		return fmt.Errorf("inbox size must be positive, got %d", c.InboxSize)
	}
	return nil
}

// Tuning 新房间的初始参数；物理步长与调度间隔一致
func (c Config) Tuning() sim.Tuning {
	t := sim.DefaultTuning()
	t.PlanDuration = c.PlanDuration
	t.ResolveDuration = c.ResolveDuration
	t.Dt = c.TickInterval.Seconds()
	return t
}
