package client

import (
	"fmt"
	"hello-rpc/codec"
	"hello-rpc/hello"
	"hello-rpc/transport"
	"strings"
	"time"
)

// Config describes the peer a Client is bound to and the policies applied to its calls.
// Zero values keep the transport defaults and leave the optional middlewares off.
type Config struct {
	Host string // IPv4 address; filled in by Discover when empty
	Port uint16

	CodecType codec.CodecType

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	CallTimeout    time.Duration // Bound for a whole call, retries included; 0 means none
	MaxBodySize    uint32

	MaxInFlight int // Exchanges running at once on the owned executor; 0 means unbounded

	Retries        int           // Extra attempts after connection or timeout failures
	RetryBaseDelay time.Duration // First backoff, doubled per attempt

	Rate  float64 // Calls per second; 0 disables rate limiting
	Burst int

	Service    string // Registry name used by Discover
	BalanceKey string // Key for key-affine balancers
}

const DefaultRetryBaseDelay = 50 * time.Millisecond

// DefaultConfig targets the hello service on 127.0.0.1:8080 with JSON bodies.
func DefaultConfig() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           8080,
		CodecType:      codec.CodecTypeJSON,
		ConnectTimeout: transport.DefaultConnectTimeout,
		WriteTimeout:   transport.DefaultWriteTimeout,
		ReadTimeout:    transport.DefaultReadTimeout,
		RetryBaseDelay: DefaultRetryBaseDelay,
		Service:        hello.ServiceName,
	}
}

// Transport returns the transport part of the configuration.
func (c Config) Transport() transport.Config {
	return transport.Config{
		Host:           c.Host,
		Port:           c.Port,
		CodecType:      c.CodecType,
		ConnectTimeout: c.ConnectTimeout,
		WriteTimeout:   c.WriteTimeout,
		ReadTimeout:    c.ReadTimeout,
		MaxBodySize:    c.MaxBodySize,
	}
}

// Validate checks the policy fields. The address is validated by the transport.
func (c Config) Validate() error {
	if !c.CodecType.Valid() {
		return fmt.Errorf("invalid codec type %d", c.CodecType)
	}
	if c.MaxInFlight < 0 {
		return fmt.Errorf("max in-flight must not be negative")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative")
	}
	return nil
}

// String returns a formatted representation of the configuration
func (c Config) String() string {
	var sb strings.Builder

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	sb.WriteString(c.Transport().String())
	sb.WriteString("CLIENT\n")
	addField("Call Timeout", c.CallTimeout.String())
	addField("Max In-Flight", fmt.Sprintf("%d", c.MaxInFlight))
	addField("Retries", fmt.Sprintf("%d (base delay %s)", c.Retries, c.RetryBaseDelay))
	if c.Rate > 0 {
		addField("Rate", fmt.Sprintf("%.2f/s (burst %d)", c.Rate, c.Burst))
	} else {
		addField("Rate", "unlimited")
	}
	addField("Service", c.Service)
	return sb.String()
}
