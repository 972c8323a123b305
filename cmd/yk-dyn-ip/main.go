package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/config"
	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/dns"
	_ "github.com/yuriy-kovalchuk/yk-dyn-ip/internal/dns/providers"
	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/server"
	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/updater"
)

var Version = "dev"

func main() {
	envFile := flag.String("env-file", ".env", "Path to a dotenv file loaded before reading the environment.")
	opts := zap.Options{
		Development: true,
		TimeEncoder: zapcore.ISO8601TimeEncoder,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrllog.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if err := run(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	log := ctrllog.Log.WithName("setup")

	log.Info("starting yk-dyn-ip", "version", Version)

	if err := config.LoadDotEnv(envFile); err != nil {
		return fmt.Errorf("unable to load env file: %w", err)
	}
	serverCfg := config.LoadServerConfig()
	if serverCfg.Salt == "" {
		log.Info("SALT is empty; record ids are derived from domain names alone")
	}

	providerCfg, err := config.LoadProviderConfig()
	if err != nil {
		return fmt.Errorf("unable to load provider config: %w", err)
	}
	log.Info("loaded provider config", "provider", providerCfg.Provider, "registered", dns.Registered())

	dnsProvider, err := dns.NewProvider(providerCfg.Provider, ctrllog.Log.WithName("dns-"+providerCfg.Provider), providerCfg.Settings)
	if err != nil {
		return fmt.Errorf("unable to create DNS provider: %w", err)
	}
	log.Info("managing domain", "domain", dnsProvider.DomainName(), "auth", serverCfg.HasCredentials())

	u := &updater.Updater{
		DNS:  dnsProvider,
		Salt: serverCfg.Salt,
		Log:  ctrllog.Log.WithName("updater"),
	}
	srv := server.New(ctrllog.Log.WithName("server"), serverCfg, u)

	if err := srv.Run(signals.SetupSignalHandler()); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	return nil
}
