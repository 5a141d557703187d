// Command mcp23017-sensor polls MCP23017 expander pins and publishes their
// binary state to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/mcp23017-sensor/internal/config"
	"github.com/sweeney/mcp23017-sensor/internal/logic"
	"github.com/sweeney/mcp23017-sensor/internal/metrics"
	"github.com/sweeney/mcp23017-sensor/internal/mqtt"
	"github.com/sweeney/mcp23017-sensor/internal/platform"
	"github.com/sweeney/mcp23017-sensor/internal/poller"
	"github.com/sweeney/mcp23017-sensor/internal/sensor"
	"github.com/sweeney/mcp23017-sensor/internal/status"
	"github.com/sweeney/mcp23017-sensor/internal/web"
)

// heartbeatCheck is how often the loop asks the detector whether a heartbeat is due.
const heartbeatCheck = time.Second

func main() {
	configPath := flag.String("config", "/etc/mcp23017-sensor.yaml", "Path to YAML config file")
	poll := flag.Duration("poll", config.DefaultScanInterval, "Polling interval (overrides scan_interval)")
	broker := flag.String("broker", "", "MQTT broker address (overrides mqtt.broker, empty disables)")
	heartbeat := flag.Duration("heartbeat", config.DefaultHeartbeat, "Heartbeat interval, 0 to disable (overrides heartbeat)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides http, empty disables)")
	printState := flag.Bool("print-state", false, "Poll every sensor once, print state and exit")
	logLevel := flag.String("loglevel", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid log level")
	}
	log.SetLevel(level)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	// Only flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll":
			cfg.ScanInterval = *poll
		case "broker":
			cfg.MQTT.Broker = *broker
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		case "http":
			cfg.HTTP = *httpAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if err := run(cfg, *printState, log); err != nil {
		log.WithError(err).Fatal("fatal")
	}
}

func run(cfg config.Config, printState bool, log *logrus.Logger) error {
	src, err := platform.OpenSource(cfg)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Platform, err)
	}
	defer src.Close()

	sensors, err := platform.Setup(cfg, src, log)
	if err != nil {
		return fmt.Errorf("setup sensors: %w", err)
	}
	entities := make([]sensor.Entity, len(sensors))
	for i, s := range sensors {
		entities[i] = s
	}

	if printState {
		return printStates(context.Background(), os.Stdout, entities)
	}

	// Initialize MQTT (optional)
	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
	)
	topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix, DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topics:   topics,
			Logger:   log,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	} else {
		log.Warn("no MQTT broker configured, state is only served over HTTP")
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Platform:    cfg.Platform,
		I2CAddress:  cfg.I2CAddress,
		PullMode:    cfg.Pull.String(),
		InvertLogic: cfg.InvertLogic,
		PollMs:      cfg.ScanInterval.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP,
	})
	for _, s := range sensors {
		tracker.AddSensor(s.UniqueID(), s.Name(), s.Pin())
	}
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}

	m := metrics.New()

	if publisher != nil {
		announce(publisher, cfg, sensors, log)

		// Publish startup event with full status snapshot
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			m.ObservePublishError()
			log.WithError(err).Error("failed to publish startup event")
		} else {
			log.Info("published startup event")
		}
	}

	// Start HTTP status server
	var live liveFeed
	if cfg.HTTP != "" {
		hub := web.NewHub(log)
		live = hub
		srv := web.New(cfg.HTTP, tracker, m.Handler(), web.WithLogger(log), web.WithHub(hub))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTP).Info("http status server listening")
	}

	log.WithFields(logrus.Fields{
		"platform":  cfg.Platform,
		"sensors":   len(sensors),
		"poll":      cfg.ScanInterval,
		"heartbeat": cfg.Heartbeat,
		"broker":    cfg.MQTT.Broker,
	}).Info("started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan poller.Result)
	pollDone := make(chan error, 1)
	go func() {
		pollDone <- poller.New(cfg.ScanInterval, poller.WithLogger(log)).Run(ctx, entities, results)
	}()

	hb := time.NewTicker(heartbeatCheck)
	defer hb.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		metrics:    m,
		live:       live,
		heartbeat:  cfg.Heartbeat,
		now:        time.Now,
		log:        log,
	}
	err = l.run(results, hb.C, sigCh)

	cancel()
	<-pollDone
	return err
}

// announce publishes Home Assistant discovery for every sensor.
func announce(publisher mqtt.Publisher, cfg config.Config, sensors []*sensor.BinarySensor, log logrus.FieldLogger) {
	deviceID, deviceName := platform.Device(cfg)
	for _, s := range sensors {
		err := publisher.PublishDiscovery(mqtt.Discovery{
			ID:         s.UniqueID(),
			Name:       s.Name(),
			Pin:        s.Pin(),
			DeviceID:   deviceID,
			DeviceName: deviceName,
		})
		if err != nil {
			log.WithError(err).WithField("sensor", s.UniqueID()).Warn("discovery publish failed")
		}
	}
}

// liveFeed receives sensor status after every state change.
type liveFeed interface {
	Broadcast(status.SensorStatus)
}

// loop owns the change detector. All state updates happen on its goroutine.
type loop struct {
	publisher  mqtt.Publisher // nil when MQTT is disabled
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Collectors
	live       liveFeed // nil when the HTTP server is disabled
	heartbeat  time.Duration
	now        func() time.Time
	log        logrus.FieldLogger
}

func (l *loop) run(results <-chan poller.Result, hbTick <-chan time.Time, sig <-chan os.Signal) error {
	detector := logic.NewDetector(l.now())

	for {
		select {
		case s := <-sig:
			l.shutdown(s)
			return nil

		case res := <-results:
			l.handleResult(detector, res)

		case <-hbTick:
			hbData := detector.CheckHeartbeat(l.now(), l.heartbeat)
			if hbData == nil {
				continue
			}
			l.log.WithField("uptime", hbData.Uptime.Truncate(time.Second)).Info("heartbeat")
			l.refreshConnectivity()
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
			snap := l.tracker.Snapshot()
			l.publishSystem(mqtt.SystemEvent{
				Timestamp:  hbData.Timestamp,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			})
		}
	}
}

func (l *loop) handleResult(detector *logic.Detector, res poller.Result) {
	id := res.Entity.UniqueID()
	l.metrics.ObservePoll(id, res.State, res.Err)

	changed := false
	if res.Err != nil {
		detector.RecordError(id)
	} else if event := detector.Process(logic.Input{
		ID:    id,
		Name:  res.Entity.Name(),
		Pin:   pinOf(res.Entity),
		State: res.State,
		Time:  res.Time,
	}); event != nil {
		l.log.WithFields(logrus.Fields{
			"sensor":   event.ID,
			"name":     event.Name,
			"state":    event.State.String(),
			"previous": event.Previous.String(),
		}).Info("state changed")
		changed = true
		if l.publisher != nil {
			if err := l.publisher.Publish(*event); err != nil {
				// Don't crash on publish failure
				l.metrics.ObservePublishError()
				l.log.WithError(err).WithField("sensor", event.ID).Error("publish error")
			}
		}
	}

	l.tracker.UpdateSensor(id, res.State, res.Time, res.Err, detector.CountsFor(id))
	if changed && l.live != nil {
		if st, ok := l.tracker.Sensor(id); ok {
			l.live.Broadcast(st)
		}
	}
	l.refreshConnectivity()
}

func (l *loop) shutdown(s os.Signal) {
	l.log.WithField("signal", s.String()).Info("shutting down")
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}

	l.refreshConnectivity()
	snap := l.tracker.Snapshot()
	l.publishSystem(mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      "SHUTDOWN",
		Reason:     signalName,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
	})
}

func (l *loop) publishSystem(event mqtt.SystemEvent) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.metrics.ObservePublishError()
		l.log.WithError(err).WithField("event", event.Event).Error("system event publish error")
		return
	}
	l.log.WithField("event", event.Event).Debug("published system event")
}

func (l *loop) refreshConnectivity() {
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// pinOf returns the pin index of entities that expose one, otherwise -1.
func pinOf(e sensor.Entity) int {
	if p, ok := e.(interface{ Pin() int }); ok {
		return p.Pin()
	}
	return -1
}

// printStates polls every entity once and writes one line per entity.
func printStates(ctx context.Context, w io.Writer, entities []sensor.Entity) error {
	var failed int
	for _, e := range entities {
		if err := e.Poll(ctx); err != nil {
			failed++
			fmt.Fprintf(w, "%s (%s): UNKNOWN (%v)\n", e.Name(), e.UniqueID(), err)
			continue
		}
		fmt.Fprintf(w, "%s (%s): %s\n", e.Name(), e.UniqueID(), poller.StateOf(e))
	}
	if failed > 0 && failed == len(entities) {
		return fmt.Errorf("all %d reads failed", failed)
	}
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
