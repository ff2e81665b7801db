// Package config loads the process settings from the environment and an
// optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Link backends
const (
	LinkSim    = "sim"
	LinkUDP    = "udp"
	LinkSerial = "serial"
)

// Config is the process configuration.
type Config struct {
	TickHz       int
	TaskInterval time.Duration
	Debounce     time.Duration
	HALTimeout   time.Duration
	HALMode      int32

	Link       string
	SerialPort string
	Baudrate   int
	DSListen   string
	DSTimeout  time.Duration

	GPIO   bool
	LEDPin int

	HealthAddr  string
	LogLevel    string
	AutoUpgrade bool
	GitHubToken string
}

// Default is the configuration with nothing set.
func Default() Config {
	return Config{
		TickHz:       250,
		TaskInterval: 4 * time.Millisecond,
		Debounce:     15 * time.Millisecond,
		HALTimeout:   500 * time.Millisecond,
		HALMode:      0,
		Link:         LinkSim,
		SerialPort:   "/dev/serial0",
		Baudrate:     460800,
		DSListen:     ":1110",
		DSTimeout:    100 * time.Millisecond,
		GPIO:         false,
		LEDPin:       17,
		HealthAddr:   ":9191",
		LogLevel:     "info",
		AutoUpgrade:  false,
	}
}

const prefix = "RACOON_"

// MaxHALMode is the highest HAL initialisation mode: 0 fails when another
// program holds the HAL, 1 kills it, 2 only warns.
const MaxHALMode = 2

// Load reads path into the environment, if it exists, then builds a Config
// from RACOON_* variables over the defaults. Variables already set in the
// environment win over the file.
func Load(path string) (Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return Config{}, errors.Wrapf(err, "load %s", path)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "stat %s", path)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	p := parser{lookup: lookup}

	p.intVar("TICK_HZ", &c.TickHz)
	p.durationVar("TASK_INTERVAL", &c.TaskInterval)
	p.durationVar("DEBOUNCE", &c.Debounce)
	p.durationVar("HAL_TIMEOUT", &c.HALTimeout)
	p.int32Var("HAL_MODE", &c.HALMode)
	p.strVar("LINK", &c.Link)
	p.strVar("SERIAL_PORT", &c.SerialPort)
	p.intVar("BAUDRATE", &c.Baudrate)
	p.strVar("DS_LISTEN", &c.DSListen)
	p.durationVar("DS_TIMEOUT", &c.DSTimeout)
	p.boolVar("GPIO", &c.GPIO)
	p.intVar("LED_PIN", &c.LEDPin)
	p.strVar("HEALTH_ADDR", &c.HealthAddr)
	p.strVar("LOG_LEVEL", &c.LogLevel)
	p.boolVar("AUTO_UPGRADE", &c.AutoUpgrade)
	p.strVar("GITHUB_TOKEN", &c.GitHubToken)

	if p.err != nil {
		return Config{}, p.err
	}
	return c, Validate(c)
}

// Validate checks every field.
func Validate(c Config) error {
	if c.TickHz < 1 || c.TickHz > 1000 {
		return errors.Errorf("invalid tick rate: %d", c.TickHz)
	}
	if c.TaskInterval < 0 || c.TaskInterval > time.Second {
		return errors.Errorf("invalid task interval: %s", c.TaskInterval)
	}
	if c.Debounce < 0 || c.Debounce > time.Second {
		return errors.Errorf("invalid debounce: %s", c.Debounce)
	}
	if c.HALTimeout <= 0 {
		return errors.Errorf("invalid hal timeout: %s", c.HALTimeout)
	}
	if c.HALMode < 0 || c.HALMode > MaxHALMode {
		return errors.Errorf("invalid hal mode: %d", c.HALMode)
	}
	switch c.Link {
	case LinkSim, LinkUDP, LinkSerial:
	default:
		return errors.Errorf("invalid link: %q", c.Link)
	}
	if c.Link == LinkSerial && c.SerialPort == "" {
		return errors.New("invalid serial port: empty")
	}
	if c.Baudrate <= 0 {
		return errors.Errorf("invalid baudrate: %d", c.Baudrate)
	}
	if c.DSTimeout <= 0 {
		return errors.Errorf("invalid ds timeout: %s", c.DSTimeout)
	}
	if c.LEDPin < 0 || c.LEDPin > 27 {
		return errors.Errorf("invalid led pin: %d", c.LEDPin)
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return errors.Errorf("invalid log level: %q", c.LogLevel)
	}
	return nil
}

// TickPeriod is the scheduler period.
func (c Config) TickPeriod() time.Duration {
	return time.Second / time.Duration(c.TickHz)
}

type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(prefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (p *parser) fail(key, v string, err error) {
	p.err = errors.Wrapf(err, "%s%s=%q", prefix, key, v)
}

func (p *parser) strVar(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) intVar(key string, dst *int) {
	if v, ok := p.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (p *parser) int32Var(key string, dst *int32) {
	if v, ok := p.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = int32(n)
	}
}

func (p *parser) boolVar(key string, dst *bool) {
	if v, ok := p.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (p *parser) durationVar(key string, dst *time.Duration) {
	if v, ok := p.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = d
	}
}
