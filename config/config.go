package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"DEBUG"`

	HTTP struct {
		Address string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
		Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s"`
	} `yaml:"http"`

	// DBDriver selects the storage adapter: "postgres" or "sqlite".
	DBDriver string `yaml:"db_driver" env:"DB_DRIVER" env-default:"postgres"`
	// DBAddress is the postgres DSN, or the sqlite file path (empty means
	// the default data directory).
	DBAddress string `yaml:"db_address" env:"DB_ADDRESS"`

	// AgentSecret guards mutating HTTP routes when set.
	AgentSecret string `yaml:"agent_secret" env:"AGENT_SECRET"`
}

func MustLoad(configPath string) Config {
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read env: %s", err)
		}
		return cfg
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			// no config file, env only
			if err := cleanenv.ReadEnv(&cfg); err != nil {
				log.Fatalf("cannot read env: %s", err)
			}
			return cfg
		}
		log.Fatalf("cannot read config %q: %s", configPath, err)
	}

	return cfg
}
