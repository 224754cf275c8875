package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/airzone2mqtt/internal/adapter/actor"
	"github.com/berfenger/airzone2mqtt/internal/config"
	"github.com/berfenger/airzone2mqtt/internal/core/actor"
	"github.com/berfenger/airzone2mqtt/internal/core/domain"
	"github.com/berfenger/airzone2mqtt/internal/metrics"
	"github.com/berfenger/airzone2mqtt/internal/server"
	"github.com/berfenger/airzone2mqtt/internal/util/actorutil"
	"github.com/berfenger/airzone2mqtt/pkg/airzone"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// the server has 5 seconds to finish the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	backend, err := cfg.Airzone.BackendType()
	if err != nil {
		panic(err)
	}
	transportMetrics := metrics.NewTransportMetrics(string(backend))

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, climateActorProvider(cfg, backend, transportMetrics, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid, metrics.NewRegistry(transportMetrics))
	done := make(chan bool, 1)

	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => AIRZONE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("AIRZONE_PORT", port)
	}

	setConfigDefaults()

	// mqtt.base_topic => AIRZONE_MQTT_BASE_TOPIC
	viper.SetEnvPrefix("airzone")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace", "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func climateActorProvider(cfg *config.Config, backend airzone.BackendType, transportMetrics *metrics.TransportMetrics, logger *zap.Logger) actor.ClimateActorProvider {
	params := cfg.Airzone.ConnectionParams()
	bridgeId := domain.BridgeDevice(cfg.MQTT.BaseTopic).Id
	provider := func(ctx context.Context) (*airzone.Device, error) {
		return airzone.Build(ctx, params, backend,
			airzone.WithLogger(logger),
			airzone.WithInstruments(transportMetrics.Instrument()))
	}
	return func() *adactor.ClimateActor {
		return adactor.NewClimateActor(provider, bridgeId, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("airzone.backend", "localapi")
	viper.SetDefault("airzone.host", "")
	viper.SetDefault("airzone.port", 3000)
	viper.SetDefault("airzone.device_id", 1)
	viper.SetDefault("airzone.timeout_millis", 5000)
	viper.SetDefault("airzone.collapse_one_zone", true)
	// cloud credentials, empty defaults make them visible to AutomaticEnv
	for _, key := range []string{"email", "password", "base_url"} {
		viper.SetDefault("airzone."+key, "")
	}
	for _, key := range []string{"installation", "group", "device"} {
		viper.SetDefault("airzone."+key, 0)
	}
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "airzone")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("monitor.poll_interval_millis", 10000)
	viper.SetDefault("monitor.full_publish_every", 30)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	if cfg.Airzone.Password != "" {
		cfg.Airzone.Password = "*redacted*"
	}
	slog.Info("Using", "config", cfg)
}
