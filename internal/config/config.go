package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	// ChannelBase prefixes the activity stream key and NATS subject.
	ChannelBase string
	JWTSecret   string

	// WorkspaceRoot is where handins are unarchived, one directory per part and group.
	WorkspaceRoot string
	Shell         string
	Terminal      TerminalConfig
	Editor        string
	Printer       string

	SessionURL     string
	SessionProgram string
	SessionArgs    []string

	DockerHost       string
	ExecutionTimeout time.Duration
	SandboxMemoryMB  int
	SandboxCPUShares int

	ActionRateLimit  int
	ActionRateWindow time.Duration
}

// TerminalConfig names the terminal emulator used for visible actions.
type TerminalConfig struct {
	Program   string
	TitleFlag string
	ExecFlag  string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	SetDefaults(v)

	return FromViper(v)
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Grader API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("channel.base", "grader")
	v.SetDefault("workspace.root", "/tmp/grader")
	v.SetDefault("shell", "/bin/sh")
	v.SetDefault("terminal.program", "xterm")
	v.SetDefault("terminal.title_flag", "-T")
	v.SetDefault("terminal.exec_flag", "-e")
	v.SetDefault("editor", "xdg-open")
	v.SetDefault("execution_timeout_ms", 30000)
	v.SetDefault("sandbox.memory_mb", 256)
	v.SetDefault("sandbox.cpu_shares", 512)
	v.SetDefault("action_rate.limit", 30)
	v.SetDefault("action_rate.window", "1m")
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	window, err := time.ParseDuration(v.GetString("action_rate.window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid action rate window: %w", err)
	}

	timeoutMs := v.GetInt("execution_timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 30000
	}

	cfg := Config{
		AppName:       v.GetString("app.name"),
		AppEnv:        v.GetString("app.env"),
		AppPort:       v.GetString("app.port"),
		DatabaseURL:   v.GetString("database.url"),
		RedisURL:      v.GetString("redis.url"),
		NATSURL:       v.GetString("nats.url"),
		ChannelBase:   v.GetString("channel.base"),
		JWTSecret:     v.GetString("jwt.secret"),
		WorkspaceRoot: v.GetString("workspace.root"),
		Shell:         v.GetString("shell"),
		Terminal: TerminalConfig{
			Program:   v.GetString("terminal.program"),
			TitleFlag: v.GetString("terminal.title_flag"),
			ExecFlag:  v.GetString("terminal.exec_flag"),
		},
		Editor:           v.GetString("editor"),
		Printer:          v.GetString("printer"),
		SessionURL:       v.GetString("session.url"),
		SessionProgram:   v.GetString("session.program"),
		SessionArgs:      strings.Fields(v.GetString("session.args")),
		DockerHost:       v.GetString("docker_host"),
		ExecutionTimeout: time.Duration(timeoutMs) * time.Millisecond,
		SandboxMemoryMB:  v.GetInt("sandbox.memory_mb"),
		SandboxCPUShares: v.GetInt("sandbox.cpu_shares"),
		ActionRateLimit:  v.GetInt("action_rate.limit"),
		ActionRateWindow: window,
	}

	if cfg.WorkspaceRoot == "" {
		return Config{}, fmt.Errorf("workspace root must be provided")
	}

	if cfg.SandboxMemoryMB <= 0 {
		cfg.SandboxMemoryMB = 256
	}

	if cfg.SandboxCPUShares <= 0 {
		cfg.SandboxCPUShares = 512
	}

	return cfg, nil
}

// RequireServer checks the values only the HTTP server needs.
func (c Config) RequireServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be provided")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database url must be provided")
	}
	return nil
}
