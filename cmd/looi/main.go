package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/looidrive/internal/logging"
	"github.com/gwillem/looidrive/pkg/robot"
)

type Options struct {
	Config    string `short:"c" long:"config" default:"looi.yaml" description:"Configuration file"`
	LogFile   string `long:"log-file" default:"looi.log" description:"Log file, - for stderr"`
	LogSize   int    `long:"log-size" default:"10" description:"Rotate the log file at this many megabytes"`
	LogLevel  string `long:"log-level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	LogFormat string `long:"log-format" env:"LOOI_LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log format"`

	Scan  ScanCommand  `command:"scan" description:"Scan for robots and save the chosen one"`
	Drive DriveCommand `command:"drive" alias:"teleop" description:"Drive the robot from the keyboard"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "looi - keyboard teleoperation for LOOI robots over Bluetooth LE"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// setup loads the configuration and opens the log. The returned closer
// flushes the log file.
func setup() (*robot.Config, *slog.Logger, io.Closer, error) {
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	w := logging.OpenFile(opts.LogFile, opts.LogSize)
	logger := logging.Init(opts.LogLevel, opts.LogFormat, w)
	if robot.ConfigExists(opts.Config) {
		logger.Info("config loaded", "path", opts.Config, "name", cfg.NameContains, "address", cfg.Address)
	} else {
		logger.Info("no config file, using defaults", "path", opts.Config)
	}

	return cfg, logger, w, nil
}
