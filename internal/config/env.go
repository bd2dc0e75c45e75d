// Package config loads deathmoves configuration from an HCL file with
// DEATHMOVES_* environment overrides, and serves the live flow settings.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists every value that may be set from the environment.
// Unset variables leave the file or default value in place.
type envOverrides struct {
	CountdownDuration *int           `env:"COUNTDOWN_DURATION"`
	DoubleRoll        *bool          `env:"DOUBLE_ROLL"`
	ShowProbabilities *bool          `env:"SHOW_PROBABILITIES"`
	BonusItemName     *string        `env:"BONUS_ITEM_NAME"`
	Language          *string        `env:"LANGUAGE"`
	BlazeMessage      *string        `env:"BLAZE_MESSAGE"`
	MediaDir          *string        `env:"MEDIA_DIR"`
	MediaMode         *string        `env:"MEDIA_MODE"`
	Transport         *string        `env:"TRANSPORT"`
	URL               *string        `env:"URL"`
	Listen            *string        `env:"LISTEN"`
	RedisAddr         *string        `env:"REDIS_ADDR"`
	RedisChannel      *string        `env:"REDIS_CHANNEL"`
	UserID            *string        `env:"USER_ID"`
	Name              *string        `env:"NAME"`
	Token             *string        `env:"TOKEN"`
	AuthKind          *string        `env:"AUTH"`
	AuthSecret        *string        `env:"AUTH_SECRET"`
	AuthURL           *string        `env:"AUTH_URL"`
	RecordsPath       *string        `env:"RECORDS_PATH"`
	LogLevel          *string        `env:"LOG_LEVEL"`
	GuardTimeout      *time.Duration `env:"GUARD_TIMEOUT"`
}

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "DEATHMOVES_"

// ApplyEnv overlays DEATHMOVES_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	setInt(&c.Settings.CountdownDuration, o.CountdownDuration)
	setBool(&c.Settings.DoubleRoll, o.DoubleRoll)
	setBool(&c.Settings.ShowProbabilities, o.ShowProbabilities)
	setString(&c.Settings.BonusItemName, o.BonusItemName)
	setString(&c.Settings.Language, o.Language)
	setString(&c.Settings.BlazeMessage, o.BlazeMessage)
	setString(&c.Media.BaseDir, o.MediaDir)
	setString(&c.Media.Mode, o.MediaMode)
	setString(&c.Transport.Kind, o.Transport)
	setString(&c.Transport.URL, o.URL)
	setString(&c.Transport.Listen, o.Listen)
	setString(&c.Transport.RedisAddr, o.RedisAddr)
	setString(&c.Transport.RedisChannel, o.RedisChannel)
	setString(&c.Identity.UserID, o.UserID)
	setString(&c.Identity.Name, o.Name)
	setString(&c.Identity.Token, o.Token)
	setString(&c.Auth.Kind, o.AuthKind)
	setString(&c.Auth.Secret, o.AuthSecret)
	setString(&c.Auth.URL, o.AuthURL)
	setString(&c.Records.Path, o.RecordsPath)
	setString(&c.Log.Level, o.LogLevel)
	if o.GuardTimeout != nil {
		c.Flow.GuardTimeout = *o.GuardTimeout
	}
	return nil
}
