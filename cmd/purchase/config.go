package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/service"
	"github.com/shivamrj1035/tutor-flow-backend/pkg/infrastructure/mysql"
)

const appID = "purchase"

type config struct {
	ServeRESTAddress string        `envconfig:"serve_rest_address" default:":8080"`
	ServeGRPCAddress string        `envconfig:"serve_grpc_address" default:":8081"`
	HealthInterval   time.Duration `envconfig:"health_interval" default:"10s"`
	ShutdownTimeout  time.Duration `envconfig:"shutdown_timeout" default:"15s"`
	LogLevel         string        `envconfig:"log_level" default:"info"`

	DBDSN             string        `envconfig:"db_dsn" required:"true"`
	DBMaxOpenConns    int           `envconfig:"db_max_open_conns" default:"10"`
	DBMaxIdleConns    int           `envconfig:"db_max_idle_conns" default:"5"`
	DBConnMaxLifetime time.Duration `envconfig:"db_conn_max_lifetime" default:"5m"`
	DBConnectAttempts uint          `envconfig:"db_connect_attempts" default:"10"`
	DBConnectDelay    time.Duration `envconfig:"db_connect_delay" default:"2s"`
	MigrateOnStart    bool          `envconfig:"migrate_on_start" default:"true"`

	StripeSecretKey     string `envconfig:"stripe_secret_key"`
	StripeWebhookSecret string `envconfig:"stripe_webhook_secret"`
	BaseURI             string `envconfig:"base_uri" default:"http://localhost:5173"`
	Currency            string `envconfig:"currency" default:"inr"`
	MinorUnitExponent   int32  `envconfig:"minor_unit_exponent" default:"2"`
}

func parseEnv() (*config, error) {
	c := new(config)
	if err := envconfig.Process(appID, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse env")
	}
	return c, nil
}

func (c *config) connection() mysql.ConnectionConfig {
	return mysql.ConnectionConfig{
		DSN:             c.DBDSN,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
		ConnectAttempts: c.DBConnectAttempts,
		ConnectDelay:    c.DBConnectDelay,
	}
}

func (c *config) checkout() service.CheckoutConfig {
	return service.CheckoutConfig{
		Currency:          c.Currency,
		MinorUnitExponent: c.MinorUnitExponent,
		BaseURI:           c.BaseURI,
	}
}

func initLogger(level string) error {
	log.SetFormatter(&log.JSONFormatter{})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	log.SetLevel(lvl)
	return nil
}
