package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func env(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	c, err := FromEnv(env(nil))
	if err != nil {
		t.Fatal(err)
	}
	if c != Default() {
		t.Fatalf("got %+v", c)
	}
	if c.TickPeriod() != 4*time.Millisecond {
		t.Fatalf("period %s", c.TickPeriod())
	}
}

func TestOverrides(t *testing.T) {
	c, err := FromEnv(env(map[string]string{
		"RACOON_TICK_HZ":    "50",
		"RACOON_LINK":       "udp",
		"RACOON_DS_TIMEOUT": "250ms",
		"RACOON_GPIO":       "true",
		"RACOON_HAL_MODE":   "1",
		"RACOON_LOG_LEVEL":  " debug ",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if c.TickHz != 50 || c.Link != LinkUDP || c.DSTimeout != 250*time.Millisecond || !c.GPIO || c.HALMode != 1 || c.LogLevel != "debug" {
		t.Fatalf("got %+v", c)
	}
}

func TestRejects(t *testing.T) {
	for key, val := range map[string]string{
		"RACOON_TICK_HZ":     "0",
		"RACOON_LINK":        "can",
		"RACOON_DEBOUNCE":    "soon",
		"RACOON_GPIO":        "maybe",
		"RACOON_BAUDRATE":    "-9600",
		"RACOON_LED_PIN":     "40",
		"RACOON_LOG_LEVEL":   "loud",
		"RACOON_HAL_TIMEOUT": "0s",
		"RACOON_HAL_MODE":    "3",
	} {
		if _, err := FromEnv(env(map[string]string{key: val})); err == nil {
			t.Errorf("%s=%s accepted", key, val)
		}
	}
}

func TestParseErrorNamesKey(t *testing.T) {
	_, err := FromEnv(env(map[string]string{"RACOON_BAUDRATE": "fast"}))
	if err == nil || !strings.Contains(err.Error(), "RACOON_BAUDRATE") {
		t.Fatalf("error %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("RACOON_TICK_HZ=100\nRACOON_SERIAL_PORT=/dev/ttyAMA0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RACOON_SERIAL_PORT", "/dev/ttyUSB0")
	// keys loaded from the file leak into the process environment
	t.Setenv("RACOON_TICK_HZ", "")
	os.Unsetenv("RACOON_TICK_HZ")

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.TickHz != 100 {
		t.Fatalf("tick %d", c.TickHz)
	}
	if c.SerialPort != "/dev/ttyUSB0" {
		t.Fatalf("environment did not win over the file: %s", c.SerialPort)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatal(err)
	}
}

func TestHALModeRange(t *testing.T) {
	for _, v := range []string{"-1", "4294967297", "2147483648"} {
		if _, err := FromEnv(env(map[string]string{"RACOON_HAL_MODE": v})); err == nil {
			t.Errorf("RACOON_HAL_MODE=%s accepted", v)
		}
	}
	c, err := FromEnv(env(map[string]string{"RACOON_HAL_MODE": "2"}))
	if err != nil || c.HALMode != 2 {
		t.Fatalf("mode %d err %v", c.HALMode, err)
	}
}
