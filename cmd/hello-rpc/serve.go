package main

import (
	"context"
	"errors"
	"fmt"
	"hello-rpc/hello"
	"hello-rpc/logging"
	"hello-rpc/middleware"
	"hello-rpc/registry"
	"hello-rpc/server"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve the hello service",
	Long:    `Start the reference hello peer. say_hello echoes its argument, send_hello greets it.`,
	PreRunE: bindFlags,
	RunE:    runServe,
}

func init() {
	flags := serveCmd.Flags()

	key := "endpoint"
	flags.String(key, "127.0.0.1:8080", wrapString("Address to listen on"))

	key = "advertise"
	flags.String(key, "", wrapString("IPv4 address published in etcd (defaults to the listen address)"))

	key = "etcd-endpoints"
	flags.String(key, "", wrapString("Comma-separated etcd endpoints; when set the server registers itself"))

	key = "service"
	flags.String(key, hello.ServiceName, wrapString("Name the server registers under"))

	key = "read-timeout"
	flags.Duration(key, server.DefaultReadTimeout, wrapString("Bound for reading a request"))

	key = "write-timeout"
	flags.Duration(key, server.DefaultWriteTimeout, wrapString("Bound for writing a response"))

	key = "handler-timeout"
	flags.Duration(key, 0, wrapString("Bound for a single handler call (0 = unbounded)"))

	key = "rate"
	flags.Float64(key, 0, wrapString("Accepted calls per second; calls above it are answered with an error (0 = unlimited)"))

	key = "burst"
	flags.Int(key, 10, wrapString("Burst size for --rate"))

	key = "metrics-addr"
	flags.String(key, "", wrapString("Address for the Prometheus /metrics endpoint (empty = disabled)"))

	key = "shutdown-timeout"
	flags.Duration(key, 5*time.Second, wrapString("How long shutdown waits for in-flight calls"))
}

func runServe(_ *cobra.Command, _ []string) error {
	if err := logging.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	cfg := server.Config{
		Endpoint:       viper.GetString("endpoint"),
		Advertise:      viper.GetString("advertise"),
		ReadTimeout:    viper.GetDuration("read-timeout"),
		WriteTimeout:   viper.GetDuration("write-timeout"),
		HandlerTimeout: viper.GetDuration("handler-timeout"),
	}

	var opts []server.Option
	if endpoints := splitList(viper.GetString("etcd-endpoints")); len(endpoints) > 0 {
		reg, err := registry.NewEtcdRegistry(endpoints, 5*time.Second)
		if err != nil {
			return err
		}
		defer reg.Close()
		opts = append(opts, server.WithRegistry(reg, viper.GetString("service")))
	}

	svr := server.NewServer(cfg, opts...)
	svr.Use(middleware.Logging())
	svr.Use(middleware.MetricsFor("hello_rpc_server", svr.HasMethod))
	if r := viper.GetFloat64("rate"); r > 0 {
		svr.Use(middleware.RateLimit(r, viper.GetInt("burst")))
	}
	if err := svr.Register(hello.Greeter{}); err != nil {
		return err
	}

	fmt.Print(cfg)

	if addr := viper.GetString("metrics-addr"); addr != "" {
		go serveMetrics(addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- svr.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := svr.Shutdown(viper.GetDuration("shutdown-timeout")); err != nil {
		return err
	}
	return <-errCh
}

// serveMetrics exposes the VictoriaMetrics default set for Prometheus scraping.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		server.Logger.Errorf("metrics endpoint %s: %v", addr, err)
	}
}
