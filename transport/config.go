package transport

import (
	"fmt"
	"hello-rpc/codec"
	"hello-rpc/protocol"
	"net/netip"
	"strings"
	"time"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultReadTimeout    = 10 * time.Second
)

// Config fixes the peer address and per-step bounds of a Transport.
// Zero durations and sizes are replaced by the defaults above.
type Config struct {
	Host string // IPv4 address, e.g. "127.0.0.1"
	Port uint16

	CodecType codec.CodecType

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration

	MaxBodySize uint32 // Largest request body sent and response body accepted
}

// withDefaults returns a copy of c with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = protocol.DefaultMaxBodySize
	}
	return c
}

// Address validates the host and port and returns "host:port".
func (c Config) Address() (string, error) {
	ip, err := netip.ParseAddr(c.Host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %v", c.Host, err)
	}
	if !ip.Is4() {
		return "", fmt.Errorf("invalid host %q: must be an IPv4 address", c.Host)
	}
	if c.Port == 0 {
		return "", fmt.Errorf("invalid port 0")
	}
	return netip.AddrPortFrom(ip, c.Port).String(), nil
}

// String returns a formatted representation of the configuration
func (c Config) String() string {
	var sb strings.Builder

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	sb.WriteString("TRANSPORT\n")
	addField("Address", fmt.Sprintf("%s:%d", c.Host, c.Port))
	addField("Codec", c.CodecType.String())
	addField("Connect Timeout", c.ConnectTimeout.String())
	addField("Write Timeout", c.WriteTimeout.String())
	addField("Read Timeout", c.ReadTimeout.String())
	addField("Max Body Size", fmt.Sprintf("%d bytes", c.MaxBodySize))
	return sb.String()
}
