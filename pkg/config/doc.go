// Package config loads configuration structs from environment variables
// using `env` struct tags, with optional .env file support for local
// development. Every package in this repository defines its own Config
// struct and loads it through config.Load at startup.
package config
