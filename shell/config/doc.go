// Package config loads the tool ledger configuration and builds its infrastructure.
//
// Configuration is read with viper from an optional YAML file and from TOOLLEDGER_* environment
// variables, which take precedence. The package also contains the factory functions for the
// supported database connections (pgx.Pool, sql.DB via lib/pq, sqlx.DB, embedded SQLite)
// and the clock used for loan timestamps.
//
// This package is part of the shell (infrastructure) layer.
package config
