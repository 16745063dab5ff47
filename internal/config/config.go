package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/ulule/limiter/v3"

	"github.com/dirtsid3r/cellflip/internal/adapters/storage"
	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/internal/domain/otp"
	"github.com/dirtsid3r/cellflip/internal/domain/settlement"
)

// Prefix of every environment variable, e.g. CELLFLIP_DB_URL.
const Prefix = "CELLFLIP"

type Config struct {
	HTTPAddr    string        `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr string        `envconfig:"METRICS_ADDR" default:":9090"`
	DBURL       string        `envconfig:"DB_URL" required:"true"`
	LockTimeout time.Duration `envconfig:"LOCK_TIMEOUT" default:"3s"`
	RabbitMQURL string        `envconfig:"RABBITMQ_URL" required:"true"`
	RedisURL    string        `envconfig:"REDIS_URL" required:"true"`

	Auth     AuthConfig     `envconfig:"AUTH"`
	OTP      OTPConfig      `envconfig:"OTP"`
	Bidding  BiddingConfig  `envconfig:"BIDDING"`
	Fees     FeeConfig      `envconfig:"FEES"`
	Outbox   OutboxConfig   `envconfig:"OUTBOX"`
	S3       S3Config       `envconfig:"S3"`
	WhatsApp WhatsAppConfig `envconfig:"WHATSAPP"`
}

// AuthConfig covers token signing and login. LoginRate limits the public login
// procedures per IP in limiter format ("5-M").
type AuthConfig struct {
	PrivateKeyPath string        `envconfig:"PRIVATE_KEY_PATH"`
	PublicKeyPath  string        `envconfig:"PUBLIC_KEY_PATH"`
	Issuer         string        `envconfig:"ISSUER" default:"cellflip"`
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	LoginRate      string        `envconfig:"LOGIN_RATE" default:"5-M"`
	AdminPhone     string        `envconfig:"ADMIN_PHONE"`
	AdminName      string        `envconfig:"ADMIN_NAME" default:"Cellflip Admin"`
}

type OTPConfig struct {
	TTL         time.Duration `envconfig:"TTL" default:"10m"`
	Cooldown    time.Duration `envconfig:"COOLDOWN" default:"30s"`
	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" default:"5"`
}

type BiddingConfig struct {
	Window      time.Duration `envconfig:"WINDOW" default:"24h"`
	SweepSpec   string        `envconfig:"SWEEP_SPEC" default:"@every 1m"`
	SweepSize   int           `envconfig:"SWEEP_SIZE" default:"50"`
	Concurrency int           `envconfig:"WORKER_CONCURRENCY" default:"10"`
}

type FeeConfig struct {
	AgentCommissionBps int64 `envconfig:"AGENT_COMMISSION_BPS" default:"500"`
	PlatformFeeBps     int64 `envconfig:"PLATFORM_FEE_BPS" default:"200"`
}

type OutboxConfig struct {
	BatchSize int           `envconfig:"BATCH_SIZE" default:"50"`
	Interval  time.Duration `envconfig:"INTERVAL" default:"1s"`
}

type S3Config struct {
	Region          string        `envconfig:"REGION" default:"ap-south-1"`
	Bucket          string        `envconfig:"BUCKET" default:"cellflip-media"`
	Endpoint        string        `envconfig:"ENDPOINT"`
	AccessKeyID     string        `envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string        `envconfig:"SECRET_ACCESS_KEY"`
	URLExpiry       time.Duration `envconfig:"URL_EXPIRY" default:"15m"`
}

// WhatsAppConfig selects the message sender. Without a token messages are logged.
type WhatsAppConfig struct {
	BaseURL       string `envconfig:"BASE_URL" default:"https://graph.facebook.com/v20.0"`
	PhoneNumberID string `envconfig:"PHONE_NUMBER_ID"`
	Token         string `envconfig:"TOKEN"`
}

// Load reads .env.local and .env (local overrides) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := cfg.LoginRate(); err != nil {
		return nil, err
	}
	if err := cfg.Rates().Validate(); err != nil {
		return nil, fmt.Errorf("invalid fee config: %w", err)
	}
	return &cfg, nil
}

// ReadKeys loads the PEM encoded signing key pair.
func (c *Config) ReadKeys() (privatePEM, publicPEM []byte, err error) {
	if c.Auth.PrivateKeyPath == "" || c.Auth.PublicKeyPath == "" {
		return nil, nil, fmt.Errorf("%s_AUTH_PRIVATE_KEY_PATH and %s_AUTH_PUBLIC_KEY_PATH must be set", Prefix, Prefix)
	}
	if privatePEM, err = os.ReadFile(c.Auth.PrivateKeyPath); err != nil {
		return nil, nil, fmt.Errorf("failed to read private key: %w", err)
	}
	if publicPEM, err = os.ReadFile(c.Auth.PublicKeyPath); err != nil {
		return nil, nil, fmt.Errorf("failed to read public key: %w", err)
	}
	return privatePEM, publicPEM, nil
}

func (c *Config) LoginRate() (limiter.Rate, error) {
	rate, err := limiter.NewRateFromFormatted(c.Auth.LoginRate)
	if err != nil {
		return limiter.Rate{}, fmt.Errorf("invalid login rate %q: %w", c.Auth.LoginRate, err)
	}
	return rate, nil
}

func (c *Config) Rates() settlement.Rates {
	return settlement.Rates{
		AgentCommissionBps: c.Fees.AgentCommissionBps,
		PlatformFeeBps:     c.Fees.PlatformFeeBps,
	}
}

func (c *Config) OTPConfig() otp.Config {
	return otp.Config{TTL: c.OTP.TTL, Cooldown: c.OTP.Cooldown, MaxAttempts: c.OTP.MaxAttempts}
}

func (c *Config) ListingConfig() listings.Config {
	return listings.Config{BiddingWindow: c.Bidding.Window}
}

func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Region:          c.S3.Region,
		Bucket:          c.S3.Bucket,
		Endpoint:        c.S3.Endpoint,
		AccessKeyID:     c.S3.AccessKeyID,
		SecretAccessKey: c.S3.SecretAccessKey,
		URLExpiry:       c.S3.URLExpiry,
	}
}
