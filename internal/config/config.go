package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete deathmoves configuration
type Config struct {
	Settings   Settings
	Media      Media
	Transport  Transport
	Identity   Identity
	Auth       Auth
	Records    Records
	Log        Log
	Flow       Flow
	Characters []Character
}

// Settings are the table-wide options read at the start of every flow
type Settings struct {
	CountdownDuration int
	DoubleRoll        bool
	ShowProbabilities bool
	BonusItemName     string
	Language          string
	BlazeMessage      string
}

// Media controls asset resolution
type Media struct {
	BaseDir   string
	Mode      string
	Overrides map[string]string
}

// Transport selects the broadcast channel
type Transport struct {
	Kind         string
	URL          string
	Listen       string
	RedisAddr    string
	RedisChannel string
}

// Identity is who this client is on the channel
type Identity struct {
	UserID string
	Name   string
	Token  string
}

// Auth configures how the hub validates peer tokens
type Auth struct {
	Kind   string
	Secret string
	URL    string
	Issuer string
}

// Records configures the durable result log
type Records struct {
	Path string
}

// Log configures logging
type Log struct {
	Level string
}

// Flow holds coordinator tuning
type Flow struct {
	GuardTimeout time.Duration
}

// Character binds a player character to a user
type Character struct {
	UserID string
	Name   string
	Level  int
	Items  []string
}

const (
	MaxCountdown = 10

	DefaultBonusItem    = "Phoenix Feather"
	DefaultBlazeMessage = "A hero falls, but their legend rises..."
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			CountdownDuration: 6,
			DoubleRoll:        false,
			ShowProbabilities: true,
			BonusItemName:     DefaultBonusItem,
			Language:          "en",
			BlazeMessage:      DefaultBlazeMessage,
		},
		Media: Media{
			BaseDir: "assets",
			Mode:    "language",
		},
		Transport: Transport{
			Kind:         "websocket",
			URL:          "ws://localhost:8080/ws",
			Listen:       "localhost:8080",
			RedisAddr:    "localhost:6379",
			RedisChannel: "deathmoves",
		},
		Auth: Auth{
			Kind:   "noop",
			Issuer: "deathmoves",
		},
		Records: Records{
			Path: "deathmoves.db",
		},
		Log: Log{
			Level: "info",
		},
		Flow: Flow{
			GuardTimeout: 2 * time.Minute,
		},
	}
}

type fileConfig struct {
	Settings   *settingsBlock   `hcl:"settings,block"`
	Media      *mediaBlock      `hcl:"media,block"`
	Transport  *transportBlock  `hcl:"transport,block"`
	Identity   *identityBlock   `hcl:"identity,block"`
	Auth       *authBlock       `hcl:"auth,block"`
	Records    *recordsBlock    `hcl:"records,block"`
	Log        *logBlock        `hcl:"log,block"`
	Flow       *flowBlock       `hcl:"flow,block"`
	Characters []characterBlock `hcl:"character,block"`
}

type settingsBlock struct {
	CountdownDuration *int    `hcl:"countdown_duration,optional"`
	DoubleRoll        *bool   `hcl:"double_roll,optional"`
	ShowProbabilities *bool   `hcl:"show_probabilities,optional"`
	BonusItemName     *string `hcl:"bonus_item_name,optional"`
	Language          *string `hcl:"language,optional"`
	BlazeMessage      *string `hcl:"blaze_message,optional"`
}

type mediaBlock struct {
	BaseDir   *string           `hcl:"base_dir,optional"`
	Mode      *string           `hcl:"mode,optional"`
	Overrides map[string]string `hcl:"overrides,optional"`
}

type transportBlock struct {
	Kind         *string `hcl:"kind,optional"`
	URL          *string `hcl:"url,optional"`
	Listen       *string `hcl:"listen,optional"`
	RedisAddr    *string `hcl:"redis_addr,optional"`
	RedisChannel *string `hcl:"redis_channel,optional"`
}

type identityBlock struct {
	UserID *string `hcl:"user_id,optional"`
	Name   *string `hcl:"name,optional"`
	Token  *string `hcl:"token,optional"`
}

type authBlock struct {
	Kind   *string `hcl:"kind,optional"`
	Secret *string `hcl:"secret,optional"`
	URL    *string `hcl:"url,optional"`
	Issuer *string `hcl:"issuer,optional"`
}

type recordsBlock struct {
	Path *string `hcl:"path,optional"`
}

type logBlock struct {
	Level *string `hcl:"level,optional"`
}

type flowBlock struct {
	GuardTimeout *string `hcl:"guard_timeout,optional"`
}

type characterBlock struct {
	UserID string   `hcl:"user_id,label"`
	Name   string   `hcl:"name"`
	Level  int      `hcl:"level"`
	Items  []string `hcl:"items,optional"`
}

// Load loads configuration from an HCL file. A missing file yields the
// defaults.
func Load(filename string) (*Config, error) {
	config := DefaultConfig()

	if filename == "" {
		return config, nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return config, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	if err := raw.apply(config); err != nil {
		return nil, err
	}
	return config, nil
}

func (f *fileConfig) apply(c *Config) error {
	if s := f.Settings; s != nil {
		setInt(&c.Settings.CountdownDuration, s.CountdownDuration)
		setBool(&c.Settings.DoubleRoll, s.DoubleRoll)
		setBool(&c.Settings.ShowProbabilities, s.ShowProbabilities)
		setString(&c.Settings.BonusItemName, s.BonusItemName)
		setString(&c.Settings.Language, s.Language)
		setString(&c.Settings.BlazeMessage, s.BlazeMessage)
	}
	if m := f.Media; m != nil {
		setString(&c.Media.BaseDir, m.BaseDir)
		setString(&c.Media.Mode, m.Mode)
		if len(m.Overrides) > 0 {
			c.Media.Overrides = m.Overrides
		}
	}
	if t := f.Transport; t != nil {
		setString(&c.Transport.Kind, t.Kind)
		setString(&c.Transport.URL, t.URL)
		setString(&c.Transport.Listen, t.Listen)
		setString(&c.Transport.RedisAddr, t.RedisAddr)
		setString(&c.Transport.RedisChannel, t.RedisChannel)
	}
	if i := f.Identity; i != nil {
		setString(&c.Identity.UserID, i.UserID)
		setString(&c.Identity.Name, i.Name)
		setString(&c.Identity.Token, i.Token)
	}
	if a := f.Auth; a != nil {
		setString(&c.Auth.Kind, a.Kind)
		setString(&c.Auth.Secret, a.Secret)
		setString(&c.Auth.URL, a.URL)
		setString(&c.Auth.Issuer, a.Issuer)
	}
	if r := f.Records; r != nil {
		setString(&c.Records.Path, r.Path)
	}
	if l := f.Log; l != nil {
		setString(&c.Log.Level, l.Level)
	}
	if fl := f.Flow; fl != nil && fl.GuardTimeout != nil {
		d, err := time.ParseDuration(*fl.GuardTimeout)
		if err != nil {
			return fmt.Errorf("flow: invalid guard_timeout %q: %w", *fl.GuardTimeout, err)
		}
		c.Flow.GuardTimeout = d
	}
	for _, ch := range f.Characters {
		c.Characters = append(c.Characters, Character(ch))
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}

	validModes := map[string]bool{"language": true, "custom": true}
	if !validModes[c.Media.Mode] {
		return fmt.Errorf("invalid media mode: %s", c.Media.Mode)
	}

	validTransports := map[string]bool{"websocket": true, "redis": true, "memory": true}
	if !validTransports[c.Transport.Kind] {
		return fmt.Errorf("invalid transport: %s", c.Transport.Kind)
	}
	if c.Transport.Kind == "redis" && c.Transport.RedisChannel == "" {
		return fmt.Errorf("redis transport requires a channel")
	}

	validAuth := map[string]bool{"noop": true, "jwt": true, "http": true}
	if !validAuth[c.Auth.Kind] {
		return fmt.Errorf("invalid auth kind: %s", c.Auth.Kind)
	}
	if c.Auth.Kind == "jwt" && c.Auth.Secret == "" {
		return fmt.Errorf("jwt auth requires a secret")
	}
	if c.Auth.Kind == "http" && c.Auth.URL == "" {
		return fmt.Errorf("http auth requires a url")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Flow.GuardTimeout < 0 {
		return fmt.Errorf("guard timeout cannot be negative")
	}

	seen := make(map[string]bool, len(c.Characters))
	for _, ch := range c.Characters {
		if ch.UserID == "" {
			return fmt.Errorf("character %q: user id is required", ch.Name)
		}
		if seen[ch.UserID] {
			return fmt.Errorf("character for user %s declared twice", ch.UserID)
		}
		seen[ch.UserID] = true
		if ch.Level < 0 {
			return fmt.Errorf("character %s: level cannot be negative", ch.Name)
		}
	}

	return nil
}

// Validate validates the flow settings
func (s Settings) Validate() error {
	if s.CountdownDuration < 0 || s.CountdownDuration > MaxCountdown {
		return fmt.Errorf("countdown duration must be between 0 and %d", MaxCountdown)
	}
	if s.Language == "" {
		return fmt.Errorf("language is required")
	}
	return nil
}
