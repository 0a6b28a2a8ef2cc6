// Package main is the entry point for the Stellar Rooms server.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/edumarques81/stellar-rooms/internal/config"
	"github.com/edumarques81/stellar-rooms/internal/version"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Application error")
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "stellar",
		Usage:   "Shared playback queue server",
		Version: version.Version,
		Flags:   serveFlags(),
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP, WebSocket and Socket.io server",
				Flags:  serveFlags(),
				Action: serve,
			},
			{
				Name:  "export",
				Usage: "Print a room's persisted playlist as CSV",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "room",
						Usage: "Room ID",
						Value: "global",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default stdout)",
					},
				},
				Action: export,
			},
			{
				Name:  "init",
				Usage: "Write an example config file",
				Flags: []cli.Flag{configFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return config.CreateConfigFile(cmd.String("config"))
				},
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					_, err := cmd.Root().Writer.Write([]byte(version.GetInfo().String() + "\n"))
					return err
				},
			},
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		&cli.IntFlag{
			Name:  "port",
			Usage: "HTTP server port (overrides config)",
		},
		&cli.StringFlag{
			Name:  "data",
			Usage: "Snapshot directory (overrides config)",
		},
		&cli.BoolFlag{
			Name:  "mpd",
			Usage: "Mirror the configured room into MPD",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
}

// loadConfig reads the config file when present, else the embedded defaults.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	if _, err := os.Stat(path); err != nil {
		if cmd.IsSet("config") {
			return nil, err
		}
		log.Debug().Str("path", path).Msg("No config file, using defaults")
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}
