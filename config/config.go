package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	AI   AIConfig   `mapstructure:"ai"`
	Chat ChatConfig `mapstructure:"chat"`
	JWT  JWTConfig  `mapstructure:"jwt"`
	OTP  OTPConfig  `mapstructure:"otp"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"cors"`
}

// AIConfig configures the Gemini client used for chat and speech.
type AIConfig struct {
	APIKey         string        `mapstructure:"apiKey"`
	Model          string        `mapstructure:"model"`
	TTSModel       string        `mapstructure:"ttsModel"`
	Voice          string        `mapstructure:"voice"`
	SampleRate     int           `mapstructure:"sampleRate"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
}

type ChatConfig struct {
	TurnTimeout        time.Duration `mapstructure:"turnTimeout"`
	SessionTTL         time.Duration `mapstructure:"sessionTTL"`
	AudioTTL           time.Duration `mapstructure:"audioTTL"`
	RateLimitPerMinute int           `mapstructure:"rateLimitPerMinute"`
	RateLimitBurst     int           `mapstructure:"rateLimitBurst"`
}

type JWTConfig struct {
	SecretKey      string        `mapstructure:"secretKey"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
}

// OTPConfig drives the mocked phone login. DevCode is the only code accepted.
type OTPConfig struct {
	DevCode string        `mapstructure:"devCode"`
	TTL     time.Duration `mapstructure:"ttl"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix("KHADAMAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.AI.APIKey == "" {
		config.AI.APIKey = os.Getenv("GOOGLE_GEMINI_API_KEY")
	}
	applyDefaults(&config)

	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

func applyDefaults(c *Config) {
	if c.Server.HTTPPort == "" {
		c.Server.HTTPPort = "8000"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 60 * time.Second
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-3-flash-preview"
	}
	if c.AI.TTSModel == "" {
		c.AI.TTSModel = "gemini-2.5-flash-preview-tts"
	}
	if c.AI.Voice == "" {
		c.AI.Voice = "Kore"
	}
	if c.AI.SampleRate == 0 {
		c.AI.SampleRate = 24000
	}
	if c.AI.RequestTimeout == 0 {
		c.AI.RequestTimeout = 20 * time.Second
	}
	if c.Chat.TurnTimeout == 0 {
		c.Chat.TurnTimeout = 45 * time.Second
	}
	if c.Chat.SessionTTL == 0 {
		c.Chat.SessionTTL = 30 * time.Minute
	}
	if c.Chat.AudioTTL == 0 {
		c.Chat.AudioTTL = 30 * time.Minute
	}
	if c.Chat.RateLimitPerMinute == 0 {
		c.Chat.RateLimitPerMinute = 20
	}
	if c.Chat.RateLimitBurst == 0 {
		c.Chat.RateLimitBurst = 5
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 24 * time.Hour
	}
	if c.OTP.TTL == 0 {
		c.OTP.TTL = 5 * time.Minute
	}
}
