package server

import (
	"fmt"
	"hello-rpc/protocol"
	"strings"
	"time"
)

const (
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultRegistryTTL  = 10 // seconds
)

// Config holds the per-connection bounds of a Server and how it registers itself.
// Zero values are replaced by the defaults above.
type Config struct {
	Endpoint  string // Listen address for ListenAndServe, e.g. ":8080"
	Advertise string // Address published in the registry; defaults to the listener address

	ReadTimeout    time.Duration // Bound for reading the request frame
	WriteTimeout   time.Duration // Bound for writing the response frame
	HandlerTimeout time.Duration // Bound for one handler call; 0 means unbounded

	MaxBodySize uint32 // Largest request body accepted
	RegistryTTL int64  // Lease TTL in seconds
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = protocol.DefaultMaxBodySize
	}
	if c.RegistryTTL <= 0 {
		c.RegistryTTL = DefaultRegistryTTL
	}
	return c
}

// String returns a formatted representation of the configuration
func (c Config) String() string {
	var sb strings.Builder

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}
	orNone := func(s string) string {
		if s == "" {
			return "<none>"
		}
		return s
	}

	sb.WriteString("SERVER\n")
	addField("Endpoint", orNone(c.Endpoint))
	addField("Advertise", orNone(c.Advertise))
	addField("Read Timeout", c.ReadTimeout.String())
	addField("Write Timeout", c.WriteTimeout.String())
	addField("Handler Timeout", c.HandlerTimeout.String())
	addField("Max Body Size", fmt.Sprintf("%d bytes", c.MaxBodySize))
	addField("Registry TTL", fmt.Sprintf("%ds", c.RegistryTTL))
	return sb.String()
}
