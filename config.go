package main

import (
	"fmt"
	"time"

	"github.com/horgh/config"
)

// Config holds a server's configuration.
type Config struct {
	ListenHost string
	ListenPort string

	// Period of time a session can be idle before the reaper disconnects it.
	IdleLimit time.Duration

	// Period of time between reaper sweeps.
	CheckInterval time.Duration

	// Shared secret for BOT_AUTH. Blank means BOT_AUTH always fails.
	BotSecret string

	// Period of time to allow a single write to block before we declare the
	// session dead.
	WriteTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		ListenHost:    "::1",
		ListenPort:    "6667",
		IdleLimit:     60 * time.Second,
		CheckInterval: 10 * time.Second,
		BotSecret:     "",
		WriteTimeout:  30 * time.Second,
	}
}

// checkAndParseConfig reads the configuration file into the server's Config.
//
// Every key is optional and falls back to a default. Durations use Go's
// duration syntax (e.g. 60s).
func (s *Server) checkAndParseConfig(file string) error {
	s.Config = defaultConfig()

	if file == "" {
		return nil
	}

	configMap, err := config.ReadStringMap(file)
	if err != nil {
		return err
	}

	if v, exists := configMap["listen-host"]; exists && len(v) > 0 {
		s.Config.ListenHost = v
	}

	if v, exists := configMap["listen-port"]; exists && len(v) > 0 {
		s.Config.ListenPort = v
	}

	if v, exists := configMap["idle-limit"]; exists && len(v) > 0 {
		s.Config.IdleLimit, err = time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("idle limit is in invalid format: %s", err)
		}
	}

	if v, exists := configMap["check-interval"]; exists && len(v) > 0 {
		s.Config.CheckInterval, err = time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("check interval is in invalid format: %s", err)
		}
	}

	if v, exists := configMap["bot-secret"]; exists {
		s.Config.BotSecret = v
	}

	if v, exists := configMap["write-timeout"]; exists && len(v) > 0 {
		s.Config.WriteTimeout, err = time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("write timeout is in invalid format: %s", err)
		}
	}

	return nil
}
