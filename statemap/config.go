package statemap

// Config is the unified dashboard configuration.
type Config struct {
	Geometry    GeometryConfig  `yaml:"geometry" json:"geometry"`
	Attributes  AttributeConfig `yaml:"attributes" json:"attributes"`
	Moto        MotoConfig      `yaml:"moto" json:"moto"`
	Join        JoinConfig      `yaml:"join" json:"join"`
	Labels      LabelConfig     `yaml:"labels" json:"labels"`
	Render      RenderConfig    `yaml:"render" json:"render"`
	Server      ServerConfig    `yaml:"server" json:"server"`
	MQTT        MQTTConfig      `yaml:"mqtt" json:"mqtt"`
	Log         LogConfig       `yaml:"log" json:"log"`
	Initiatives []Initiative    `yaml:"initiatives,omitempty" json:"initiatives,omitempty"` // replaces the built-in table when set
}

// GeometryConfig locates the state polygons.
type GeometryConfig struct {
	Path         string `yaml:"path" json:"path"` // file path or http(s) URL
	IDProperty   string `yaml:"idProperty" json:"idProperty"`
	NameProperty string `yaml:"nameProperty" json:"nameProperty"`
}

// AttributeConfig locates the per-state initiative values.
type AttributeConfig struct {
	Path       string `yaml:"path" json:"path"`
	Format     string `yaml:"format" json:"format"`                         // csv, xlsx or sqlite
	Encoding   string `yaml:"encoding,omitempty" json:"encoding,omitempty"` // csv charset, e.g. latin1
	Sheet      string `yaml:"sheet,omitempty" json:"sheet,omitempty"`       // xlsx
	Table      string `yaml:"table,omitempty" json:"table,omitempty"`       // sqlite
	IDColumn   string `yaml:"idColumn" json:"idColumn"`
	NameColumn string `yaml:"nameColumn" json:"nameColumn"`
}

// Source returns the attribute source description for the loader.
func (a AttributeConfig) Source() AttributeSource {
	return AttributeSource{
		Path:     a.Path,
		Format:   a.Format,
		Encoding: a.Encoding,
		Sheet:    a.Sheet,
		Table:    a.Table,
	}
}

// MotoConfig locates the regulatory status table.
type MotoConfig struct {
	Path     string `yaml:"path" json:"path"`
	Encoding string `yaml:"encoding" json:"encoding"`
}

// JoinConfig holds the join invariants.
type JoinConfig struct {
	ExpectedRows int `yaml:"expectedRows" json:"expectedRows"`
	IDWidth      int `yaml:"idWidth" json:"idWidth"`
}

// LabelConfig controls label placement.
type LabelConfig struct {
	MinSeparation float64 `yaml:"minSeparation" json:"minSeparation"` // geometry units
	FontSize      float64 `yaml:"fontSize" json:"fontSize"`           // points
}

// RenderConfig controls the choropleth output.
type RenderConfig struct {
	Width        float64 `yaml:"width" json:"width"` // millimetres
	DPI          float64 `yaml:"dpi" json:"dpi"`
	EdgeColor    string  `yaml:"edgeColor" json:"edgeColor"`
	MissingColor string  `yaml:"missingColor" json:"missingColor"`
	StrokeWidth  float64 `yaml:"strokeWidth" json:"strokeWidth"` // points
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port int `yaml:"port" json:"port"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
	QoS           int    `yaml:"qos" json:"qos"`
	Retain        bool   `yaml:"retain" json:"retain"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json or console
}

// DefaultConfig returns the configuration used when a field is absent from
// the YAML file.
func DefaultConfig() *Config {
	return &Config{
		Geometry: GeometryConfig{
			Path:         "map/estados_mexico_limpio.geojson",
			IDProperty:   "ent",
			NameProperty: "entidad",
		},
		Attributes: AttributeConfig{
			Path:       "datos.csv",
			Format:     FormatCSV,
			IDColumn:   "ent",
			NameColumn: "entidad",
		},
		Moto: MotoConfig{
			Path:     "moto.csv",
			Encoding: "latin1",
		},
		Join: JoinConfig{
			ExpectedRows: 32,
			IDWidth:      DefaultIDWidth,
		},
		Labels: LabelConfig{
			MinSeparation: DefaultMinSeparation,
			FontSize:      7,
		},
		Render: RenderConfig{
			Width:        152.4, // 6in
			DPI:          300,
			EdgeColor:    "#808080",
			MissingColor: "#D3D3D3",
			StrokeWidth:  0.5,
		},
		Server: ServerConfig{Port: 8080},
		MQTT: MQTTConfig{
			PublishPrefix: "stateboard",
			ClientID:      "stateboard",
			Retain:        true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// InitiativeTable returns the configured table, or the built-in one.
func (c *Config) InitiativeTable() (*InitiativeTable, error) {
	if len(c.Initiatives) == 0 {
		return DefaultInitiatives(), nil
	}
	return NewInitiativeTable(c.Initiatives)
}
