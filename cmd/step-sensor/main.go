// Command step-sensor reads a filtered accelerometer stream, detects steps and
// reports them to the data collection server, MQTT, a websocket feed and an LED.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/step-sensor/internal/collector"
	"github.com/sweeney/step-sensor/internal/config"
	"github.com/sweeney/step-sensor/internal/gpio"
	"github.com/sweeney/step-sensor/internal/ingest"
	"github.com/sweeney/step-sensor/internal/logic"
	"github.com/sweeney/step-sensor/internal/mqtt"
	"github.com/sweeney/step-sensor/internal/status"
	"github.com/sweeney/step-sensor/internal/web"
)

// statusInterval is how often the status tracker is refreshed.
const statusInterval = time.Second

func main() {
	defaults := config.Default()

	configPath := flag.String("config", "", "YAML config file (optional)")
	userID := flag.String("user", defaults.UserID, "User id for the collector handshake")
	host := flag.String("collector", defaults.Collector.Host, "Data collection server host")
	serialPath := flag.String("serial", defaults.Serial.Path, "Read samples from this serial port instead of the collector")
	broker := flag.String("broker", defaults.MQTT.Broker, "MQTT broker address (empty to disable)")
	httpAddr := flag.String("http", defaults.HTTP.Addr, "HTTP status address (empty to disable)")
	heartbeat := flag.Duration("heartbeat", defaults.Heartbeat, "Heartbeat interval (0 to disable)")
	queueSize := flag.Int("queue", defaults.QueueSize, "Sample queue capacity")
	ledPin := flag.Int("led-pin", defaults.LED.Pin, "BCM pin for the step LED (0 to disable)")
	printConfig := flag.Bool("print-config", false, "Print the resolved configuration and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	// Flags override the file and environment only when given explicitly.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "user":
			cfg.UserID = *userID
		case "collector":
			cfg.Collector.Host = *host
		case "serial":
			cfg.Serial.Path = *serialPath
		case "broker":
			cfg.MQTT.Broker = *broker
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		case "queue":
			cfg.QueueSize = *queueSize
		case "led-pin":
			cfg.LED.Pin = *ledPin
		}
	})

	if *printConfig {
		data, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(data))
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func statusConfig(cfg config.Config) status.Config {
	sc := status.Config{
		UserID:      cfg.UserID,
		Source:      cfg.Source(),
		Serial:      cfg.Serial.Path,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		QueueSize:   cfg.QueueSize,
	}
	if cfg.Collector.Host != "" {
		sc.Collector = cfg.Collector.ReceiveAddr()
	}
	return sc
}

// openSource returns the sample stream: the serial port when configured,
// otherwise an authenticated collector receive session.
func openSource(ctx context.Context, cfg config.Config) (io.ReadCloser, error) {
	if cfg.Source() == config.SourceSerial {
		port, err := ingest.OpenSerial(cfg.Serial.Path, cfg.Serial.PortOptions)
		if err != nil {
			return nil, err
		}
		log.Printf("reading samples from serial port %s", cfg.Serial.Path)
		return port, nil
	}

	conn, err := collector.Dial(ctx, cfg.Collector.ReceiveAddr(), cfg.UserID, cfg.Collector.AuthTimeout)
	if err != nil {
		return nil, fmt.Errorf("receive session: %w", err)
	}
	log.Printf("receive session authenticated with %s as %s", conn.RemoteAddr(), cfg.UserID)
	return conn, nil
}

func run(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instanceID := uuid.NewString()
	tracker := status.NewTracker(time.Now(), instanceID, statusConfig(cfg))

	src, err := openSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open sample source: %w", err)
	}
	defer src.Close()
	if cfg.Source() == config.SourceCollector {
		tracker.SetCollectorConnected(true)
	}

	var out outputs

	// Step notifications go back over a separate send session. Without it
	// the collector never learns about steps, so it is mandatory when the
	// samples also come from the collector.
	if cfg.Collector.Host != "" {
		conn, err := collector.Dial(ctx, cfg.Collector.SendAddr(), cfg.UserID, cfg.Collector.AuthTimeout)
		switch {
		case err == nil:
			defer conn.Close()
			out.notifier = conn
			log.Printf("send session authenticated with %s", conn.RemoteAddr())
		case cfg.Source() == config.SourceCollector:
			return fmt.Errorf("send session: %w", err)
		default:
			log.Printf("collector notifications disabled: %v", err)
		}
	}

	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			UserID:     cfg.UserID,
			BufferSize: cfg.MQTT.BufferSize,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer pub.Close()
		out.publisher = pub
		out.mqttStatus = pub
	}

	if cfg.LED.Pin > 0 {
		led, err := gpio.NewRealIndicator(cfg.LED.Chip, cfg.LED.Pin, cfg.LED.Pulse)
		if err != nil {
			log.Printf("step led disabled: %v", err)
		} else {
			defer led.Close()
			out.led = led
		}
	}

	hub := web.NewHub()
	go hub.Run(ctx)
	out.hub = hub

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, hub)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	out.system(tracker, time.Now(), "STARTUP", "", true)

	// Ingestion only enqueues; runLoop is the single consumer.
	samples := make(chan logic.Sample, cfg.QueueSize)
	dec := ingest.NewDecoder(nil)
	go func() {
		defer close(samples)
		if err := dec.Run(ctx, src, samples); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ingest stopped: %v", err)
		}
	}()

	log.Printf("started: user=%s source=%s queue=%d heartbeat=%v instance=%s",
		cfg.UserID, cfg.Source(), cfg.QueueSize, cfg.Heartbeat, instanceID)

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(out, tracker, dec.Stats(), cfg.Heartbeat, time.Now, samples, ticker.C, sigCh)
}
