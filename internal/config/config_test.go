package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/mcp23017-sensor/internal/gpio"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("pins:\n  5: Front Door\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Platform != PlatformMCP23017 {
		t.Errorf("Platform: got %q", cfg.Platform)
	}
	if cfg.I2CAddress != 0x20 {
		t.Errorf("I2CAddress: got 0x%x, want 0x20", cfg.I2CAddress)
	}
	if cfg.InvertLogic {
		t.Error("InvertLogic: got true, want false")
	}
	if cfg.PullMode != "UP" || cfg.Pull != gpio.PullUp {
		t.Errorf("pull: got %q/%v, want UP", cfg.PullMode, cfg.Pull)
	}
	if cfg.ScanInterval != DefaultScanInterval {
		t.Errorf("ScanInterval: got %v", cfg.ScanInterval)
	}
	if cfg.Heartbeat != DefaultHeartbeat {
		t.Errorf("Heartbeat: got %v", cfg.Heartbeat)
	}
	if cfg.MQTT.Broker != "" {
		t.Errorf("MQTT.Broker: got %q, want disabled", cfg.MQTT.Broker)
	}
	if cfg.MQTT.TopicPrefix != DefaultTopicPrefix || cfg.MQTT.DiscoveryPrefix != DefaultDiscoveryPrefix {
		t.Errorf("MQTT prefixes: %+v", cfg.MQTT)
	}
	if cfg.Pins[5] != "Front Door" {
		t.Errorf("Pins[5]: got %q", cfg.Pins[5])
	}
}

func TestParseFull(t *testing.T) {
	data := `
platform: mcp23017
i2c_bus: "1"
i2c_address: 0x21
pins:
  0: Kitchen Window
  5: Front Door
  15: Garage
invert_logic: true
pull_mode: none
scan_interval: 500ms
heartbeat: 0s
http: ""
mqtt:
  broker: tcp://192.168.1.200:1883
  client_id: hallway
  topic_prefix: house/inputs
  discovery_prefix: ""
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.I2CBus != "1" || cfg.I2CAddress != 0x21 {
		t.Errorf("bus: got %q/0x%x", cfg.I2CBus, cfg.I2CAddress)
	}
	if !cfg.InvertLogic {
		t.Error("InvertLogic: got false")
	}
	if cfg.Pull != gpio.PullNone {
		t.Errorf("Pull: got %v, want NONE", cfg.Pull)
	}
	if cfg.ScanInterval != 500*time.Millisecond {
		t.Errorf("ScanInterval: got %v", cfg.ScanInterval)
	}
	if cfg.Heartbeat != 0 {
		t.Errorf("Heartbeat: got %v, want 0", cfg.Heartbeat)
	}
	if cfg.HTTP != "" {
		t.Errorf("HTTP: got %q, want empty", cfg.HTTP)
	}
	if cfg.MQTT.Broker != "tcp://192.168.1.200:1883" || cfg.MQTT.ClientID != "hallway" {
		t.Errorf("MQTT: %+v", cfg.MQTT)
	}
	if cfg.MQTT.DiscoveryPrefix != "" {
		t.Errorf("DiscoveryPrefix: got %q, want empty", cfg.MQTT.DiscoveryPrefix)
	}

	got := cfg.PinIndexes()
	want := []int{0, 5, 15}
	if len(got) != len(want) {
		t.Fatalf("PinIndexes: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PinIndexes: got %v, want %v", got, want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"empty", "", "pins is required"},
		{"no pins", "invert_logic: true\n", "pins is required"},
		{"bad pull", "pins: {1: a}\npull_mode: SIDEWAYS\n", "pull_mode"},
		{"pin too high", "pins: {16: a}\n", "out of range"},
		{"negative pin", "pins: {-1: a}\n", "out of range"},
		{"address too low", "pins: {1: a}\ni2c_address: 0x1f\n", "i2c_address"},
		{"address too high", "pins: {1: a}\ni2c_address: 0x28\n", "i2c_address"},
		{"duplicate pin", "pins:\n  1: a\n  1: b\n", "already defined"},
		{"non-integer pin", "pins:\n  door: a\n", "parse config"},
		{"unknown key", "pins: {1: a}\nbogus: 1\n", "parse config"},
		{"unknown platform", "platform: arduino\npins: {1: a}\n", "unknown platform"},
		{"zero scan interval", "pins: {1: a}\nscan_interval: 0s\n", "scan_interval"},
		{"negative heartbeat", "pins: {1: a}\nheartbeat: -1s\n", "heartbeat"},
		{"gpiochip without chip", "platform: gpiochip\nchip: \"\"\npins: {1: a}\n", "chip is required"},
		{"gpiochip negative pin", "platform: gpiochip\npins: {-3: a}\n", "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseEmptyPinsAllowed(t *testing.T) {
	cfg, err := Parse([]byte("pins: {}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Pins) != 0 {
		t.Errorf("Pins: got %v, want empty", cfg.Pins)
	}
}

func TestParseEmptyNameKept(t *testing.T) {
	cfg, err := Parse([]byte("pins:\n  3:\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name, ok := cfg.Pins[3]; !ok || name != "" {
		t.Errorf("Pins[3]: got (%q, %v), want (\"\", true)", name, ok)
	}
}

func TestParseGPIOChipAllowsHighPins(t *testing.T) {
	cfg, err := Parse([]byte("platform: gpiochip\npins:\n  26: Doorbell\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chip != DefaultChip {
		t.Errorf("Chip: got %q, want %q", cfg.Chip, DefaultChip)
	}
	// i2c_address is not checked for gpiochip
	if cfg.Pins[26] != "Doorbell" {
		t.Errorf("Pins[26]: got %q", cfg.Pins[26])
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("pins:\n  5: Front Door\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pins[5] != "Front Door" {
		t.Errorf("Pins[5]: got %q", cfg.Pins[5])
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalidIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("pull_mode: UP\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("expected error mentioning %s, got %v", path, err)
	}
}
