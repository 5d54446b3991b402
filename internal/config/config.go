package config

import (
	"fmt"
	"net"
	"strconv"
)

type Config struct {
	Host string
	Port int
	// OwnerPasswordHash is the SHA-256 hex digest the owner password is
	// checked against. Empty means no one can claim ownership.
	OwnerPasswordHash string
	FilesDir          string
	AllowedOrigins    []string
}

func NewConfig(host string, port int, ownerPasswordHash, filesDir string, allowedOrigins []string) (*Config, error) {
	if host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("port %d out of range (1-65535)", port)
	}
	if filesDir == "" {
		return nil, fmt.Errorf("files directory cannot be empty")
	}

	return &Config{
		Host:              host,
		Port:              port,
		OwnerPasswordHash: ownerPasswordHash,
		FilesDir:          filesDir,
		AllowedOrigins:    allowedOrigins,
	}, nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
