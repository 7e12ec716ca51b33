package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds server configuration loaded from environment variables.
type Config struct {
	HTTPPort  int    `env:"HTTP_PORT,default=8080" validate:"min=1,max=65535"`
	LinePort  int    `env:"LINE_PORT,default=9090" validate:"min=1,max=65535"`
	GRPCPort  int    `env:"GRPC_PORT,default=10000" validate:"min=1,max=65535"`
	Host      string `env:"HOST,default=0.0.0.0"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`

	StoreBackend  string `env:"STORE_BACKEND,default=file" validate:"oneof=file sqlite badger"`
	DataPath      string `env:"DATA_PATH,default=data/history.json" validate:"required"`
	SnapshotCodec string `env:"SNAPSHOT_CODEC,default=json" validate:"oneof=json proto"`

	SendBuffer     int           `env:"SEND_BUFFER,default=256" validate:"min=1"`
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE,default=1048576" validate:"min=512"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"min=1ms"`

	RequireRegisteredSender bool `env:"REQUIRE_REGISTERED_SENDER,default=true"`
	ScopeGroupsToMembers    bool `env:"SCOPE_GROUPS_TO_MEMBERS,default=false"`
}

var validate = validator.New()

// Load reads an optional .env file, then the environment, then validates.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Addr joins the configured host with port.
func (c Config) Addr(port int) string {
	return fmt.Sprintf("%s:%d", c.Host, port)
}
