package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Travis-Britz/ddns/v2"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var logger logr.Logger = logr.Discard()

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ddnsgd",
		Usage: "keep a DNS A-record pointed at this host's public IP",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable verbose logging"},
			&cli.StringFlag{Name: "env-file", EnvVars: []string{"DDNS_ENV_FILE"}, Usage: "load configuration from a dotenv `FILE` (mode 0600)"},
			&cli.StringFlag{Name: "provider", Value: "godaddy", EnvVars: []string{"DDNS_PROVIDER"}, Usage: "DNS provider: godaddy or cloudflare"},
			&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Value: ddns.DefaultInterval, EnvVars: []string{"DDNS_INTERVAL"}, Usage: "duration to wait between IP checks"},
			&cli.StringFlag{Name: "schedule", EnvVars: []string{"DDNS_SCHEDULE"}, Usage: "cron expression used instead of --interval"},
			&cli.StringFlag{Name: "resolver", Value: "web", EnvVars: []string{"DDNS_RESOLVER"}, Usage: "public IP lookup: web, opendns or interface"},
			&cli.StringSliceFlag{Name: "ip-service", EnvVars: []string{"DDNS_IP_SERVICES"}, Usage: "IP echo service `URL` for the web resolver (repeatable)"},
			&cli.StringSliceFlag{Name: "interface", EnvVars: []string{"DDNS_INTERFACES"}, Usage: "network interface for the interface resolver (repeatable)"},
			&cli.StringFlag{Name: "ip", Usage: "IP address to set instead of looking one up"},
			&cli.DurationFlag{Name: "http-timeout", EnvVars: []string{"DDNS_HTTP_TIMEOUT"}, Usage: "timeout for outbound HTTP requests (0 waits indefinitely)"},
			&cli.StringFlag{Name: "metrics-address", EnvVars: []string{"DDNS_METRICS_ADDRESS"}, Usage: "serve Prometheus metrics on `ADDR`"},
			&cli.BoolFlag{Name: "once", Usage: "run a single cycle and exit"},
		},
		Before: func(cCtx *cli.Context) error {
			logger = stdr.New(log.New(os.Stderr, "", log.LstdFlags))
			if cCtx.Bool("verbose") {
				stdr.SetVerbosity(1)
			}
			return nil
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:  "setup",
				Usage: "prompt for GoDaddy credentials, verify them, and write an env file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: filepath.Join(os.Getenv("HOME"), ".ddnsgd.env"), Usage: "env `FILE` to create"},
					&cli.StringFlag{Name: "record", Aliases: []string{"d"}, Required: true, Usage: "domain whose A-record will be managed"},
					&cli.StringFlag{Name: "base-path", Value: "https://api.godaddy.com/v1", Usage: "GoDaddy API base URL"},
				},
				Action: runSetup,
			},
		},
	}
}

func run(cCtx *cli.Context) error {
	if path := cCtx.String("env-file"); path != "" {
		if err := ddns.LoadEnvFile(path); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		logger.V(1).Info("loaded env file", "path", path)
	}

	domain, providerOpt, err := providerOption(cCtx.String("provider"))
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	resolverOpt, err := resolverOption(cCtx)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	schedule, err := parseSchedule(cCtx)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	options := []ddns.ClientOption{providerOpt, resolverOpt, ddns.WithLogger(logger)}
	if timeout := cCtx.Duration("http-timeout"); timeout > 0 {
		hc := cleanhttp.DefaultPooledClient()
		hc.Timeout = timeout
		options = append(options, ddns.UsingHTTPClient(hc))
	}

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := cCtx.String("metrics-address"); addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("run: %w: unable to serve metrics: %w", ddns.ErrConfiguration, err)
		}
		reg := prometheus.NewRegistry()
		options = append(options, ddns.WithMetrics(ddns.NewMetrics(reg)))
		go serveMetrics(ctx, ln, reg)
	}

	client, err := ddns.New(domain, options...)
	if err != nil {
		return fmt.Errorf("error creating ddns.Client: %w", err)
	}
	logger.Info("starting", "domain", domain, "provider", cCtx.String("provider"))

	if cCtx.Bool("once") {
		outcome, err := client.RunDDNS(ctx)
		if err != nil {
			return fmt.Errorf("run: %s: %w", ddns.ErrorKind(err), err)
		}
		logger.Info("ddns cycle complete", "outcome", outcome.String())
		return nil
	}

	<-ddns.RunDaemon(ctx, client, schedule, logger)
	logger.Info("shutting down")
	return nil
}

func providerOption(name string) (domain string, opt ddns.ClientOption, err error) {
	switch name {
	case "godaddy":
		cfg, err := ddns.LoadConfig()
		if err != nil {
			return "", nil, err
		}
		return cfg.RecordName, ddns.UsingGoDaddy(cfg.APIKey, cfg.APISecret, cfg.BasePath), nil
	case "cloudflare":
		cfg, err := ddns.LoadCloudflareConfig()
		if err != nil {
			return "", nil, err
		}
		return cfg.RecordName, ddns.UsingCloudflare(cfg.APIToken, cfg.ZoneID), nil
	}
	return "", nil, fmt.Errorf("%w: unknown provider %q", ddns.ErrConfiguration, name)
}

func resolverOption(cCtx *cli.Context) (ddns.ClientOption, error) {
	if ip := cCtx.String("ip"); ip != "" {
		r, err := ddns.FromString(ip)
		if err != nil {
			return nil, err
		}
		return ddns.UsingResolver(r), nil
	}

	switch cCtx.String("resolver") {
	case "web":
		services := cCtx.StringSlice("ip-service")
		if len(services) == 0 {
			services = ddns.DefaultServices
		}
		return ddns.UsingWebResolver(services...), nil
	case "opendns":
		return ddns.UsingResolver(ddns.OpenDNSResolver()), nil
	case "interface":
		return ddns.UsingResolver(ddns.InterfaceResolver(cCtx.StringSlice("interface")...)), nil
	}
	return nil, fmt.Errorf("%w: unknown resolver %q", ddns.ErrConfiguration, cCtx.String("resolver"))
}

func parseSchedule(cCtx *cli.Context) (cron.Schedule, error) {
	if expr := cCtx.String("schedule"); expr != "" {
		s, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid schedule %q: %w", ddns.ErrConfiguration, expr, err)
		}
		return s, nil
	}
	return ddns.Every(cCtx.Duration("interval")), nil
}

var metricsShutdownTimeout = 5 * time.Second

func serveMetrics(ctx context.Context, ln net.Listener, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.V(1).Info("metrics server did not shut down cleanly", "error", err.Error())
		}
	}()

	logger.Info("serving metrics", "address", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(err, "metrics server failed")
	}
}

func runSetup(cCtx *cli.Context) error {
	output := cCtx.String("output")
	if _, err := os.Stat(output); err == nil {
		return fmt.Errorf("setup: \"%s\" already exists", output)
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return errors.New("setup: stdin is not a terminal")
	}

	key, err := prompt("Enter GoDaddy API key: ")
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	secret, err := prompt("Enter GoDaddy API secret: ")
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	gd, err := ddns.NewGoDaddy(key, secret, cCtx.String("base-path"))
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	ctx, cancel := context.WithTimeout(cCtx.Context, 10*time.Second)
	defer cancel()
	logger.Info("verifying credentials...")
	record, err := gd.GetRecord(ctx, cCtx.String("record"))
	if err != nil {
		return fmt.Errorf("setup: unable to verify credentials: %w", err)
	}
	logger.Info("credentials verified", "record", cCtx.String("record"), "current", record.Data)

	err = ddns.WriteEnvFile(output, map[string]string{
		"API_KEY":     key,
		"API_SECRET":  secret,
		"BASE_PATH":   cCtx.String("base-path"),
		"RECORD_NAME": cCtx.String("record"),
	})
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	logger.Info("credentials written", "path", output)
	return nil
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("error reading from stdin: %w", err)
	}
	return string(b), nil
}
