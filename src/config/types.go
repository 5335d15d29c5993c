package config

import (
	"fmt"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type Environment string

const (
	Live Environment = "live"
	Beta             = "beta"
	Dev              = "dev"
	Test             = "test"
)

type ForumAccessConfig struct {
	Env         Environment
	LogLevel    zerolog.Level
	Postgres    PostgresConfig
	Permissions PermissionsConfig
}

type PostgresConfig struct {
	User     string
	Password string
	Hostname string
	Port     int
	DbName   string
	LogLevel tracelog.LogLevel
	MinConn  int32
	MaxConn  int32

	// How many times to try reaching the database before giving up.
	ConnectAttempts int
}

func (info PostgresConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s", info.User, info.Password, info.Hostname, info.Port, info.DbName)
}

type PermissionsConfig struct {
	// Codenames granted to every active, known authenticated user for whom
	// no grant of any tier applies.
	DefaultAuthenticatedPermissions []string
}
