package statemap

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// LoadEnvFiles loads .env style files into the process environment. Missing
// files are skipped; variables already set are not overwritten.
func LoadEnvFiles(paths ...string) {
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// LoadConfig loads the configuration from a YAML file on top of the defaults,
// applies environment overrides and validates the result. An empty path
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, eris.Errorf("config file not found: %s", path)
			}
			return nil, eris.Wrap(err, "reading config file")
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, eris.Wrap(err, "parsing config YAML")
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return eris.Wrap(err, "marshaling config YAML")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return eris.Wrap(err, "writing config file")
	}

	return nil
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("STATEBOARD_GEOMETRY"); v != "" {
		c.Geometry.Path = v
	}
	if v := os.Getenv("STATEBOARD_ATTRIBUTES"); v != "" {
		c.Attributes.Path = v
	}
	if v := os.Getenv("STATEBOARD_MOTO"); v != "" {
		c.Moto.Path = v
	}
	if v := os.Getenv("STATEBOARD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("STATEBOARD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("MQTT_CLIENT_ID"); v != "" {
		c.MQTT.ClientID = v
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("MQTT_PUBLISH_PREFIX"); v != "" {
		c.MQTT.PublishPrefix = v
	}
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	if c.Geometry.Path == "" {
		return eris.New("geometry.path is required")
	}
	if c.Attributes.Path == "" {
		return eris.New("attributes.path is required")
	}
	switch c.Attributes.Format {
	case FormatCSV, FormatXLSX, FormatSQLite:
	default:
		return eris.Errorf("attributes.format %q must be one of csv, xlsx, sqlite", c.Attributes.Format)
	}
	if c.Attributes.Format == FormatSQLite && c.Attributes.Table == "" {
		return eris.New("attributes.table is required for sqlite sources")
	}
	if c.Attributes.IDColumn == "" || c.Attributes.NameColumn == "" {
		return eris.New("attributes.idColumn and attributes.nameColumn are required")
	}
	if c.Join.ExpectedRows <= 0 {
		return eris.Errorf("join.expectedRows must be positive, got %d", c.Join.ExpectedRows)
	}
	if c.Join.IDWidth <= 0 {
		return eris.Errorf("join.idWidth must be positive, got %d", c.Join.IDWidth)
	}
	if c.Labels.MinSeparation < 0 {
		return eris.Errorf("labels.minSeparation must not be negative, got %g", c.Labels.MinSeparation)
	}
	if c.Render.Width <= 0 {
		return eris.Errorf("render.width must be positive, got %g", c.Render.Width)
	}
	for _, hex := range []string{c.Render.EdgeColor, c.Render.MissingColor} {
		if !hexColorPattern.MatchString(hex) {
			return eris.Errorf("render color %q is not #RRGGBB", hex)
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return eris.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if _, err := c.InitiativeTable(); err != nil {
		return eris.Wrap(err, "initiatives")
	}
	return nil
}

// InitLogger builds the global zap logger from the log configuration.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
