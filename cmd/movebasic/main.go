// Package main runs the goal controller as a standalone process connected to an MQTT broker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"go.viam.com/movebasic/collision"
	"go.viam.com/movebasic/logging"
)

const (
	flagBroker           = "broker"
	flagClientID         = "client-id"
	flagUsername         = "username"
	flagPassword         = "password"
	flagTopicPrefix      = "topic-prefix"
	flagConfig           = "config"
	flagSim              = "sim"
	flagDebug            = "debug"
	flagJSONLogs         = "json-logs"
	flagTransformTimeout = "transform-timeout"
	flagObstacleRange    = "obstacle-range"
	flagHalfWidth        = "footprint-half-width"
	flagFront            = "footprint-front"
	flagBack             = "footprint-back"
)

// settings are the process level options. Controller tuning lives in the config file.
type settings struct {
	broker           string
	clientID         string
	username         string
	password         string
	topicPrefix      string
	configPath       string
	sim              bool
	debug            bool
	jsonLogs         bool
	transformTimeout time.Duration
	obstacleRange    float64
	footprint        collision.Footprint
}

func settingsFromContext(c *cli.Context) settings {
	return settings{
		broker:           c.String(flagBroker),
		clientID:         c.String(flagClientID),
		username:         c.String(flagUsername),
		password:         c.String(flagPassword),
		topicPrefix:      c.String(flagTopicPrefix),
		configPath:       c.String(flagConfig),
		sim:              c.Bool(flagSim),
		debug:            c.Bool(flagDebug),
		jsonLogs:         c.Bool(flagJSONLogs),
		transformTimeout: c.Duration(flagTransformTimeout),
		obstacleRange:    c.Float64(flagObstacleRange),
		footprint: collision.Footprint{
			HalfWidth: c.Float64(flagHalfWidth),
			Front:     c.Float64(flagFront),
			Back:      c.Float64(flagBack),
		},
	}
}

func (s settings) logger() logging.Logger {
	level := logging.INFO
	if s.debug {
		level = logging.DEBUG
	}
	if s.jsonLogs {
		return logging.NewJSONLogger("movebasic", level)
	}
	if s.debug {
		return logging.NewDebugLogger("movebasic")
	}
	return logging.NewLogger("movebasic")
}

func newApp(run func(ctx context.Context, s settings) error) *cli.App {
	return &cli.App{
		Name:  "movebasic",
		Usage: "drive a wheeled base to goal poses received over MQTT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagBroker,
				Value:   "tcp://localhost:1883",
				Usage:   "MQTT broker `URL`",
				EnvVars: []string{"MQTT_BROKER"},
			},
			&cli.StringFlag{
				Name:    flagClientID,
				Value:   "movebasic",
				Usage:   "MQTT client id",
				EnvVars: []string{"MQTT_CLIENT_ID"},
			},
			&cli.StringFlag{
				Name:    flagUsername,
				Usage:   "MQTT username",
				EnvVars: []string{"MQTT_USERNAME"},
			},
			&cli.StringFlag{
				Name:    flagPassword,
				Usage:   "MQTT password",
				EnvVars: []string{"MQTT_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    flagTopicPrefix,
				Usage:   "prefix prepended to every topic",
				EnvVars: []string{"MOVEBASIC_TOPIC_PREFIX"},
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load controller parameters from `FILE` and reload it on change",
				EnvVars: []string{"MOVEBASIC_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    flagSim,
				Usage:   "drive a simulated base instead of publishing velocity commands",
				EnvVars: []string{"MOVEBASIC_SIM"},
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Usage:   "enable debug logging",
				EnvVars: []string{"MOVEBASIC_DEBUG"},
			},
			&cli.BoolFlag{
				Name:    flagJSONLogs,
				Usage:   "log JSON lines",
				EnvVars: []string{"MOVEBASIC_JSON_LOGS"},
			},
			&cli.DurationFlag{
				Name:    flagTransformTimeout,
				Usage:   "treat frames not updated within this duration as unavailable (0 disables)",
				EnvVars: []string{"MOVEBASIC_TRANSFORM_TIMEOUT"},
			},
			&cli.Float64Flag{
				Name:    flagObstacleRange,
				Value:   5,
				Usage:   "ignore obstacle points farther than this many metres",
				EnvVars: []string{"MOVEBASIC_OBSTACLE_RANGE"},
			},
			&cli.Float64Flag{
				Name:  flagHalfWidth,
				Value: collision.DefaultFootprint.HalfWidth,
				Usage: "half the robot width in metres",
			},
			&cli.Float64Flag{
				Name:  flagFront,
				Value: collision.DefaultFootprint.Front,
				Usage: "robot extent ahead of the base origin in metres",
			},
			&cli.Float64Flag{
				Name:  flagBack,
				Value: collision.DefaultFootprint.Back,
				Usage: "robot extent behind the base origin in metres",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, settingsFromContext(c))
		},
	}
}

func main() {
	bootLogger := logging.Global()
	if err := godotenv.Load(); err != nil {
		bootLogger.Debugw("no .env file loaded", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(runServer).RunContext(ctx, os.Args)
	stop()
	if err != nil {
		bootLogger.Error(err)
		os.Exit(1)
	}
}
