package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thereceipt/pos-bridge/internal/api"
	"github.com/thereceipt/pos-bridge/internal/channel"
	"github.com/thereceipt/pos-bridge/internal/config"
	"github.com/thereceipt/pos-bridge/internal/deeplink"
	"github.com/thereceipt/pos-bridge/internal/escpos"
	"github.com/thereceipt/pos-bridge/internal/logging"
	"github.com/thereceipt/pos-bridge/internal/metrics"
	"github.com/thereceipt/pos-bridge/internal/notify"
	"github.com/thereceipt/pos-bridge/internal/printer"
)

func serveCmd() *cobra.Command {
	var (
		addr      string
		transport string
		openURI   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the printer bridge daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if transport != "" {
				cfg.Printer.Transport = transport
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, openURI, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&transport, "transport", "", "printer transport: usb, serial or network")
	cmd.Flags().StringVar(&openURI, "open", "", "activation URI the process was launched with")
	return cmd
}

// serve wires the daemon together and runs it until ctx ends
func serve(ctx context.Context, cfg config.Config, openURI string, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	transport, err := printer.NewTransport(printer.Options{
		Kind:         cfg.Printer.Transport,
		VendorID:     cfg.Printer.VendorID,
		ProductID:    cfg.Printer.ProductID,
		SerialDevice: cfg.Printer.SerialDevice,
		Baud:         cfg.Printer.Baud,
		Host:         cfg.Printer.Host,
		Port:         cfg.Printer.Port,
		WriteTimeout: cfg.Printer.WriteTimeout,
		DialTimeout:  cfg.Printer.DialTimeout,
		Logger:       logger.Named("transport"),
	})
	if err != nil {
		return err
	}

	framer, err := escpos.NewFramer(cfg.Printer.Charset, cfg.Printer.FeedLines)
	if err != nil {
		return err
	}

	dispatcher := printer.NewDispatcher(transport, framer, printer.DispatcherOptions{
		CompletionTimeout: cfg.Printer.CompletionTimeout,
		Logger:            logger.Named("printer"),
		Metrics:           m,
	})
	router := channel.NewRouter(dispatcher, logger.Named("channel"), m)

	handle := &deeplink.Handle{}
	notifier := deeplink.NewNotifier(handle, cfg.DeepLink.Scheme, logger.Named("deeplink"), m)
	hub := api.NewHub(handle, cfg.Channels.Print, cfg.Channels.DeepLink, logger.Named("api"))

	alerter := notify.NewAlerter(hub, cfg.Alerts.Interval, cfg.Alerts.Burst, logger.Named("notify"), m)
	dispatcher.OnDeviceError(func(requestID, diagnostic string) {
		alerter.PrinterError(requestID, diagnostic)
	})

	monitor := printer.NewMonitor(printer.USBDetector{}, cfg.Printer.MonitorInterval, logger.Named("monitor"))
	monitor.OnPrinterAdded(hub.PrinterAttached)
	monitor.OnPrinterRemoved(hub.PrinterDetached)
	monitor.OnCount(m.PrintersAttached)
	if cfg.Printer.Transport == printer.KindUSB {
		monitor.Start()
		defer monitor.Stop()
	}

	server := api.NewServer(router, notifier, hub, api.Options{
		PrintChannel: cfg.Channels.Print,
		Gatherer:     reg,
		Printers:     monitor.Printers,
		Logger:       logger.Named("api"),
	})

	logger.Info("pos bridge starting",
		zap.String("version", Version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("transport", cfg.Printer.Transport),
		zap.String("print_channel", cfg.Channels.Print),
		zap.String("deeplink_channel", cfg.Channels.DeepLink))

	// The launch activation is handled like any later one; with no UI
	// connected yet it is dropped
	if openURI != "" {
		notifier.Activate(openURI)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	return <-errCh
}
