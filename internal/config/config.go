package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicTouch string
	TopicPixel string
	TopicAux   string

	// Touch controller hardware
	TouchSPIDevice string
	TouchCSPin     string
	TouchIRQPin    string // empty: poll without PENIRQ
	TouchSPIHz     int64

	// Touch acquisition
	TouchRotation      int
	TouchFilter        string // "best2of3" or "pairwise"
	TouchZThreshold    int32
	TouchZThresholdIRQ int32
	TouchMinIntervalMS int

	// Timing
	TouchSampleInterval int // milliseconds
	AuxSampleInterval   int // milliseconds, 0 disables aux publishing

	// Display the panel is mounted on
	DisplayWidth  uint16
	DisplayHeight uint16

	// Calibration store
	CalibrationFile string
	CalibrationSlot string

	// Web Server
	WebServerPort int

	// Status display (SSD1306)
	StatusDisplayI2CAddr        uint16
	StatusDisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access; Get() takes the read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Defaults returns the values used for keys missing from the file.
func Defaults() *Config {
	return &Config{
		MQTTClientIDProducer: "touch-producer",
		MQTTClientIDConsole:  "touch-console-subscriber",
		MQTTClientIDWeb:      "touch-web-subscriber",
		MQTTClientIDDisplay:  "touch-display-subscriber",

		TopicTouch: "touch/event",
		TopicPixel: "touch/pixel",
		TopicAux:   "touch/aux",

		TouchSPIHz:         2_000_000,
		TouchRotation:      1,
		TouchFilter:        "best2of3",
		TouchZThreshold:    400,
		TouchZThresholdIRQ: 75,
		TouchMinIntervalMS: 3,

		TouchSampleInterval: 10,
		AuxSampleInterval:   5000,

		DisplayWidth:  320,
		DisplayHeight: 240,

		CalibrationFile: "calibration/touch.yaml",
		CalibrationSlot: "default",

		WebServerPort: 8080,

		StatusDisplayI2CAddr:        0x3C,
		StatusDisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Defaults()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_TOUCH":
		c.TopicTouch = value
	case "TOPIC_PIXEL":
		c.TopicPixel = value
	case "TOPIC_AUX":
		c.TopicAux = value

	// Touch controller hardware
	case "TOUCH_SPI_DEVICE":
		c.TouchSPIDevice = value
	case "TOUCH_CS_PIN":
		c.TouchCSPin = value
	case "TOUCH_IRQ_PIN":
		c.TouchIRQPin = value
	case "TOUCH_SPI_HZ":
		hz, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TOUCH_SPI_HZ %q: %w", value, err)
		}
		if hz <= 0 || hz > 2_500_000 {
			return fmt.Errorf("TOUCH_SPI_HZ must be 1-2500000, got %d", hz)
		}
		c.TouchSPIHz = hz

	// Touch acquisition
	case "TOUCH_ROTATION":
		rot, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TOUCH_ROTATION %q: %w", value, err)
		}
		c.TouchRotation = rot
	case "TOUCH_FILTER":
		if value != "best2of3" && value != "pairwise" {
			return fmt.Errorf("TOUCH_FILTER must be best2of3 or pairwise, got %q", value)
		}
		c.TouchFilter = value
	case "TOUCH_Z_THRESHOLD":
		z, err := parsePressure(key, value)
		if err != nil {
			return err
		}
		c.TouchZThreshold = z
	case "TOUCH_Z_THRESHOLD_IRQ":
		z, err := parsePressure(key, value)
		if err != nil {
			return err
		}
		c.TouchZThresholdIRQ = z
	case "TOUCH_MIN_INTERVAL_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TOUCH_MIN_INTERVAL_MS %q: %w", value, err)
		}
		if ms < 0 {
			return fmt.Errorf("TOUCH_MIN_INTERVAL_MS must not be negative, got %d", ms)
		}
		c.TouchMinIntervalMS = ms

	// Timing
	case "TOUCH_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TOUCH_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.TouchSampleInterval = interval
	case "AUX_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid AUX_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.AuxSampleInterval = interval

	// Display
	case "DISPLAY_WIDTH":
		w, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_WIDTH %q: %w", value, err)
		}
		c.DisplayWidth = uint16(w)
	case "DISPLAY_HEIGHT":
		h, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_HEIGHT %q: %w", value, err)
		}
		c.DisplayHeight = uint16(h)

	// Calibration
	case "CALIBRATION_FILE":
		c.CalibrationFile = value
	case "CALIBRATION_SLOT":
		c.CalibrationSlot = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Status display
	case "STATUS_DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid STATUS_DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.StatusDisplayI2CAddr = uint16(addr)
	case "STATUS_DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid STATUS_DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.StatusDisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parsePressure(key, value string) (int32, error) {
	z, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if z < 0 || z > 8190 {
		return 0, fmt.Errorf("%s must be 0-8190, got %d", key, z)
	}
	return int32(z), nil
}

// ssd1306Addr is the address periph's ssd1306.NewI2C talks to.
const ssd1306Addr = 0x3C

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TouchSPIDevice == "" {
		return fmt.Errorf("TOUCH_SPI_DEVICE is required")
	}
	if c.TouchCSPin == "" {
		return fmt.Errorf("TOUCH_CS_PIN is required")
	}
	if c.TouchSampleInterval <= 0 {
		return fmt.Errorf("TOUCH_SAMPLE_INTERVAL must be positive")
	}
	if c.TouchZThresholdIRQ >= c.TouchZThreshold {
		return fmt.Errorf("TOUCH_Z_THRESHOLD_IRQ (%d) must be below TOUCH_Z_THRESHOLD (%d)",
			c.TouchZThresholdIRQ, c.TouchZThreshold)
	}
	if c.StatusDisplayI2CAddr != ssd1306Addr {
		return fmt.Errorf("STATUS_DISPLAY_I2C_ADDR must be 0x%02X, the only address the ssd1306 driver supports, got 0x%02X",
			ssd1306Addr, c.StatusDisplayI2CAddr)
	}
	if c.DisplayWidth <= 2*20 || c.DisplayHeight <= 2*20 {
		return fmt.Errorf("DISPLAY_WIDTH and DISPLAY_HEIGHT must leave room for the calibration targets")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
