package config

import (
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

// Config is the process-wide configuration. Deployments replace the values
// below; the defaults are for local development.
var Config = ForumAccessConfig{
	Env:      Dev,
	LogLevel: zerolog.InfoLevel,
	Postgres: PostgresConfig{
		User:            "forum",
		Password:        "password",
		Hostname:        "localhost",
		Port:            5432,
		DbName:          "forum",
		LogLevel:        tracelog.LogLevelWarn,
		MinConn:         2,
		MaxConn:         10,
		ConnectAttempts: 5,
	},
	Permissions: PermissionsConfig{
		DefaultAuthenticatedPermissions: []string{},
	},
}
