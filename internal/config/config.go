package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Recorder holds settings for the batched event recorder client.
type Recorder struct {
	BatchSize  int    `yaml:"batch_size"`
	BufferPath string `yaml:"buffer_path"`
}

// Config holds the server configuration. Values come from, in increasing
// precedence: built-in defaults, an optional YAML file, environment variables,
// and command-line flags (applied by main).
type Config struct {
	Host        string `yaml:"host"`
	TCPPort     int    `yaml:"tcp_port"`
	HTTPPort    int    `yaml:"http_port"`
	DataDir     string `yaml:"data_dir"`
	DatabaseURL string `yaml:"database_url"`

	// WelcomeMessage is sent to every client on connect, on both transports.
	WelcomeMessage string `yaml:"welcome_message"`

	// StopOnLastDisconnect stops a running scenario when the last websocket
	// client disconnects, so a replay does not keep pacing for nobody.
	StopOnLastDisconnect bool `yaml:"stop_on_last_disconnect"`

	Recorder Recorder `yaml:"recorder"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Host:           "localhost",
		TCPPort:        5000,
		HTTPPort:       8092,
		DataDir:        "scenarios",
		DatabaseURL:    "scenarios.db",
		WelcomeMessage: "Connected to heartbeat server",
		Recorder: Recorder{
			BatchSize:  10,
			BufferPath: "biometric_buffer/pulse_temp.json",
		},
	}
}

// Load reads a YAML config file over the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("TCP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.TCPPort = p
		}
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.HTTPPort = p
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
}

// TCPAddr returns the listen address for the stream-socket transport.
func (c Config) TCPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.TCPPort)
}

// HTTPAddr returns the listen address for the websocket/API server.
func (c Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}
