package pg

import (
	"database/sql"
	"fmt"

	"github.com/inkwire/dispatch/pkg/logger"
)

// Config describes one postgres endpoint. The engine carries two, one
// for the read replica and one for the primary.
type Config struct {
	User     string `env:"USER"`
	Host     string `env:"HOST"`
	Port     string `env:"PORT"`
	Password string `env:"PASSWORD"`
	Database string `env:"DBNAME"`
}

func (c Config) dsn() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.User, c.Password, c.Database, c.Port)
}

// newSqlConnection opens a raw database/sql handle for the goose
// migration runner. Repository traffic goes through gorm instead.
func newSqlConnection(config Config) (*sql.DB, error) {
	logger.Info("opening postgres for migrations", "host", config.Host, "database", config.Database)
	return sql.Open("postgres", config.dsn())
}
