package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hal9000y/mail-mcp/internal/config"
	"github.com/hal9000y/mail-mcp/internal/credential"
	"github.com/hal9000y/mail-mcp/internal/format"
	"github.com/hal9000y/mail-mcp/internal/mailbox"
	"github.com/hal9000y/mail-mcp/internal/message"
	"github.com/hal9000y/mail-mcp/internal/smtpmail"
	"github.com/hal9000y/mail-mcp/internal/tool"
)

const shutdownTimeout = 3 * time.Second

func newServeCmd(global *globalOptions) *cobra.Command {
	var (
		httpAddr    string
		enableStdio bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (default)",
		Long: `Start the MCP server.

The stdio transport is enabled by default. With --http-addr the server also
serves streamable HTTP at /mcp and Prometheus metrics at /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !enableStdio && httpAddr == "" {
				return errors.New("--http-addr is required when --stdio=false")
			}
			return runServe(cmd.Context(), global, enableStdio, httpAddr)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP server listen addr, empty disables HTTP")
	cmd.Flags().BoolVar(&enableStdio, "stdio", true, "Enable stdio transport (disables stdout logging)")

	return cmd
}

func runServe(ctx context.Context, global *globalOptions, enableStdio bool, httpAddr string) error {
	logger, closeLog, err := setupLogger(enableStdio, global.logFile, global.logLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := loadConfig(global)
	if err != nil {
		logger.Error("Configuration failed", slog.String("error", err.Error()))
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var transfer tool.Transfer
	if cfg.SMTP.Host != "" {
		transfer = smtpmail.NewClient(cfg.SMTP, cfg.From, logger)
	} else {
		logger.Warn("SMTP disabled, send_email will fail")
	}

	d := tool.NewDispatcher(cfg, mailbox.NewIMAPDialer(cfg.IMAP, logger), transfer,
		tool.WithLogger(logger),
		tool.WithMetrics(tool.NewMetrics(reg)),
		tool.WithDecoder(message.Decoder{Conv: format.Converter{}}),
	)
	mailT := tool.NewServer(d, version)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var errHTTPCh <-chan error
	if httpAddr != "" {
		ln, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return fmt.Errorf("net.Listen failed: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server { return mailT }, nil))
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

		var stopHTTP func()
		stopHTTP, errHTTPCh = serveHTTP(logger, &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}, ln)
		defer stopHTTP()
	}

	var errStdioCh <-chan error
	if enableStdio {
		var stopStdio func()
		stopStdio, errStdioCh = serveStdio(ctx, logger, mailT)
		defer stopStdio()
	}

	select {
	case err := <-errHTTPCh:
		logger.Error("HTTP server failed", slog.Any("error", err))
		return err
	case err, ok := <-errStdioCh:
		if ok && err != nil {
			logger.Error("Stdio transport failed", slog.Any("error", err))
			return err
		}
		logger.Info("Stdio transport closed")
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	return nil
}

func loadConfig(global *globalOptions) (*config.Config, error) {
	if err := config.LoadEnvFile(global.envFile); err != nil {
		return nil, err
	}
	return config.Load(config.NewViper(), global.configFile, credential.NewKeyring(config.KeyringService))
}

func serveStdio(ctx context.Context, logger *slog.Logger, srv *mcp.Server) (func(), <-chan error) {
	errStdioCh := make(chan error, 1)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(errStdioCh)
		logger.Info("Starting stdio transport")

		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			errStdioCh <- fmt.Errorf("srv.Run failed: %w", err)
		}
	}()

	return func() {
		cancel()

		<-errStdioCh
		logger.Info("Stdio transport stopped")
	}, errStdioCh
}

func serveHTTP(logger *slog.Logger, srv *http.Server, ln net.Listener) (func(), <-chan error) {
	errHTTPCh := make(chan error, 1)
	go func() {
		defer close(errHTTPCh)

		logger.Info("Starting http server", slog.String("addr", ln.Addr().String()))

		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errHTTPCh <- fmt.Errorf("srv.Serve failed: %w", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("srv.Shutdown failed", slog.Any("error", err))
		}

		<-errHTTPCh
		logger.Info("HTTP server stopped")
	}, errHTTPCh
}
