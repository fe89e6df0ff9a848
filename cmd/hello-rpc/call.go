package main

import (
	"context"
	"fmt"
	"hello-rpc/client"
	"hello-rpc/codec"
	"hello-rpc/hello"
	"hello-rpc/loadbalance"
	"hello-rpc/logging"
	"hello-rpc/registry"
	"hello-rpc/transport"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	callCmd = &cobra.Command{
		Use:   "call",
		Short: "Call the hello service",
		Long:  `Make one call to a hello peer, either at --host/--port or resolved from etcd.`,
	}
	sayHelloCmd = &cobra.Command{
		Use:     "say-hello <content>",
		Short:   "Call say_hello, which echoes content",
		Args:    cobra.ExactArgs(1),
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd.Context(), hello.Service.SayHello, args[0])
		},
	}
	sendHelloCmd = &cobra.Command{
		Use:     "send-hello <content>",
		Short:   "Call send_hello, which greets content",
		Args:    cobra.ExactArgs(1),
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd.Context(), hello.Service.SendHello, args[0])
		},
	}
)

func init() {
	callCmd.AddCommand(sayHelloCmd)
	callCmd.AddCommand(sendHelloCmd)

	flags := callCmd.PersistentFlags()

	key := "host"
	flags.String(key, "127.0.0.1", wrapString("IPv4 address of the peer"))

	key = "port"
	flags.Uint16(key, 8080, wrapString("Port of the peer"))

	key = "codec"
	flags.String(key, "json", wrapString("Body serialization (json, binary)"))

	key = "connect-timeout"
	flags.Duration(key, transport.DefaultConnectTimeout, wrapString("Bound for establishing the connection"))

	key = "write-timeout"
	flags.Duration(key, transport.DefaultWriteTimeout, wrapString("Bound for writing the request"))

	key = "read-timeout"
	flags.Duration(key, transport.DefaultReadTimeout, wrapString("Bound for reading the response"))

	key = "call-timeout"
	flags.Duration(key, 0, wrapString("Bound for the whole call, retries included (0 = none)"))

	key = "retries"
	flags.Int(key, 0, wrapString("Extra attempts after connection or timeout failures"))

	key = "rate"
	flags.Float64(key, 0, wrapString("Calls per second; calls above it wait for a token (0 = unlimited)"))

	key = "burst"
	flags.Int(key, 1, wrapString("Burst size for --rate"))

	key = "etcd-endpoints"
	flags.String(key, "", wrapString("Comma-separated etcd endpoints; when set the peer is resolved from etcd instead of --host/--port"))

	key = "service"
	flags.String(key, hello.ServiceName, wrapString("Service name to resolve in etcd"))

	key = "balancer"
	flags.String(key, "round_robin", wrapString("Instance selection (round_robin, weighted_random, consistent_hash)"))

	key = "balance-key"
	flags.String(key, "", wrapString("Key for consistent_hash"))
}

func runCall(ctx context.Context, method func(hello.Service, context.Context, string) (string, error), content string) error {
	if err := logging.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	ct, err := codec.ParseCodecType(viper.GetString("codec"))
	if err != nil {
		return err
	}

	cfg := client.DefaultConfig()
	cfg.Host = viper.GetString("host")
	cfg.Port = uint16(viper.GetUint("port"))
	cfg.CodecType = ct
	cfg.ConnectTimeout = viper.GetDuration("connect-timeout")
	cfg.WriteTimeout = viper.GetDuration("write-timeout")
	cfg.ReadTimeout = viper.GetDuration("read-timeout")
	cfg.CallTimeout = viper.GetDuration("call-timeout")
	cfg.Retries = viper.GetInt("retries")
	cfg.Rate = viper.GetFloat64("rate")
	cfg.Burst = viper.GetInt("burst")
	cfg.Service = viper.GetString("service")
	cfg.BalanceKey = viper.GetString("balance-key")

	c, err := newCallClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := method(c, ctx, content)
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}

func newCallClient(ctx context.Context, cfg client.Config) (*client.Client, error) {
	endpoints := splitList(viper.GetString("etcd-endpoints"))
	if len(endpoints) == 0 {
		return client.New(cfg)
	}

	bal, err := loadbalance.New(viper.GetString("balancer"))
	if err != nil {
		return nil, err
	}
	reg, err := registry.NewEtcdRegistry(endpoints, cfg.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	defer reg.Close()

	resolveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return client.Discover(resolveCtx, cfg, reg, bal)
}
