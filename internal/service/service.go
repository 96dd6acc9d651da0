package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	redis_ipc "github.com/rescoot/redis-ipc"

	"github.com/librescoot/smartpot-service/internal/bridge"
	"github.com/librescoot/smartpot-service/internal/config"
	"github.com/librescoot/smartpot-service/internal/console"
	"github.com/librescoot/smartpot-service/internal/fsm"
	"github.com/librescoot/smartpot-service/internal/hardware"
	"github.com/librescoot/smartpot-service/internal/remote"
	"github.com/librescoot/smartpot-service/internal/telemetry"
)

const snapshotBuffer = 4

type Service struct {
	config        *config.Config
	logger        *log.Logger
	redis         *redis_ipc.Client
	standardRedis *redis.Client

	ctx    context.Context
	cancel context.CancelFunc

	hardware  *hardware.Manager
	metrics   *telemetry.Metrics
	publisher *telemetry.Publisher
	mqtt      *telemetry.MQTTSink
	listener  *remote.Listener
	inbox     *Inbox
	link      bridge.Link
	loop      *Loop
}

// New connects to Redis and opens the hardware. An empty Redis host runs without Redis.
func New(cfg *config.Config, logger *log.Logger) (*Service, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		config:  cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		metrics: telemetry.NewMetrics(),
	}

	if cfg.RedisHost != "" {
		redisClient, err := redis_ipc.New(redis_ipc.Config{
			Address:       cfg.RedisHost,
			Port:          cfg.RedisPort,
			RetryInterval: 5 * time.Second,
			MaxRetries:    3,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create Redis client: %v", err)
		}
		s.redis = redisClient

		// Plain client for the hardware output mirror
		s.standardRedis = redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
			DB:   0,
		})
	} else {
		logger.Printf("No Redis host configured, running without Redis")
	}

	hw, err := hardware.NewManager(ctx, s.standardRedis, hardware.Options{
		Chip: cfg.GPIOChip,
		Outputs: map[fsm.Output]int{
			fsm.OutputPump:          cfg.PumpLine,
			fsm.OutputThresholdLow:  cfg.ThresholdLowLine,
			fsm.OutputThresholdHigh: cfg.ThresholdHighLine,
			fsm.OutputWaterLow:      cfg.WaterLowLine,
			fsm.OutputProbe:         cfg.ProbeLine,
		},
		DisplayDevice:      cfg.DisplayDevice,
		IIODevice:          cfg.IIODevice,
		TemperatureChannel: cfg.TemperatureChannel,
		MoistureChannel:    cfg.MoistureChannel,
		DryRun:             cfg.DryRun,
	}, logger)
	if err != nil {
		s.closeRedis()
		cancel()
		return nil, fmt.Errorf("failed to create hardware manager: %v", err)
	}
	s.hardware = hw
	s.inbox = NewInbox(cfg.InterruptBuffer, s.metrics.EventDropped, logger)

	return s, nil
}

// Run starts the machines and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer s.cleanup()

	if err := s.hardware.InitializeRedisState(); err != nil {
		s.logger.Printf("Warning: %v", err)
	}

	if _, err := s.hardware.WatchButton("user", s.config.UserButtonLine, s.edgePoster(fsm.ServiceUserButton)); err != nil {
		return fmt.Errorf("failed to watch user button: %v", err)
	}
	waterOK, err := s.hardware.WatchButton("reservoir", s.config.ReservoirLine, s.edgePoster(fsm.ServiceWaterButton))
	if err != nil {
		return fmt.Errorf("failed to watch reservoir float: %v", err)
	}

	if err := s.openLink(); err != nil {
		return err
	}

	s.startTelemetry()

	opts := MachineOptions{
		Sensor:                         s.hardware.Sensor(),
		SensorTimeout:                  s.config.SensorTimeout,
		DebounceTicks:                  s.config.DebounceTicks,
		InitialWaterLow:                !waterOK,
		SuspendTemperatureDuringSelect: s.config.SuspendTemperatureDuringSelect,
		Offer:                          s.publisher.Offer,
		TelemetryTicks:                 s.config.TelemetryTicks,
	}
	if s.config.Console {
		opts.ConsoleOut = os.Stdout
		opts.ConsoleClear = s.config.ConsoleClear
		go s.readConsoleKeys()
	}

	machines := NewMachines(s.ctx, opts, s.logger)
	loop, err := NewLoop(machines, s.config.QueueCapacity, s.inbox, s.hardware, s.link, s.metrics.EventDropped, s.logger)
	if err != nil {
		return err
	}
	s.loop = loop

	if s.redis != nil {
		s.listener = remote.NewListener(s.redis, s.inbox.Post, s.logger)
		if err := s.listener.Start(); err != nil {
			return fmt.Errorf("failed to start remote listener: %v", err)
		}
	}

	if err := s.loop.Start(); err != nil {
		return err
	}
	s.logger.Printf("Smart pot running (tick %v)", s.config.TickInterval)

	return s.loop.Run(ctx, s.config.TickInterval)
}

// edgePoster turns GPIO edges into raw button events.
func (s *Service) edgePoster(to fsm.ServiceID) hardware.EdgeFunc {
	return func(down bool) {
		kind := fsm.KindButtonUp
		if down {
			kind = fsm.KindButtonDown
		}
		s.inbox.Post(to, fsm.E(kind, 0))
	}
}

func (s *Service) openLink() error {
	if s.config.DryRun {
		s.link = bridge.NewLogLink(s.logger)
		return nil
	}

	link, err := bridge.OpenSerial(s.ctx, s.config.SerialPort, s.config.SerialBaud, s.logger, func(b byte) {
		s.inbox.Post(fsm.ServiceBridge, fsm.E(fsm.KindFrameByteReceived, int(b)))
	})
	if err != nil {
		return fmt.Errorf("failed to open bridge link: %v", err)
	}
	s.link = link
	return nil
}

func (s *Service) startTelemetry() {
	sinks := []telemetry.Sink{s.metrics}
	if s.redis != nil {
		sinks = append(sinks, telemetry.NewRedisSink(s.redis))
	}
	if s.config.MQTTBroker != "" {
		sink, err := telemetry.DialMQTT(s.ctx, s.config.MQTTBroker, s.config.MQTTClientID, s.config.MQTTTopic, s.logger)
		if err != nil {
			s.logger.Printf("Warning: MQTT telemetry disabled: %v", err)
		} else {
			s.mqtt = sink
			sinks = append(sinks, sink)
		}
	}

	s.publisher = telemetry.NewPublisher(snapshotBuffer, s.logger, sinks...)
	go s.publisher.Run(s.ctx)

	if s.config.MetricsAddr != "" {
		go func() {
			if err := s.metrics.Serve(s.ctx, s.config.MetricsAddr, s.logger); err != nil {
				s.logger.Printf("Warning: Metrics server failed: %v", err)
			}
		}()
	}
}

func (s *Service) readConsoleKeys() {
	err := console.ReadKeys(s.ctx, os.Stdin, func(r rune) {
		s.inbox.Post(fsm.ServiceConsole, fsm.E(fsm.KindKeyPressed, int(r)))
	})
	if err != nil {
		s.logger.Printf("Warning: Console input stopped: %v", err)
	}
}

func (s *Service) cleanup() {
	s.logger.Printf("Shutting down")
	s.cancel()

	if s.mqtt != nil {
		s.mqtt.Close()
	}

	if s.link != nil {
		if err := s.link.Close(); err != nil {
			s.logger.Printf("Failed to close bridge link: %v", err)
		}
	}

	if err := s.hardware.Close(); err != nil {
		s.logger.Printf("Failed to close hardware: %v", err)
	}

	s.closeRedis()
}

func (s *Service) closeRedis() {
	if s.standardRedis != nil {
		if err := s.standardRedis.Close(); err != nil {
			s.logger.Printf("Failed to close Redis client: %v", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Printf("Failed to close Redis IPC client: %v", err)
		}
	}
}
