// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes config and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create a config file and initialize the database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand handles the OAuth connection lifecycle.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Connect and disconnect your Spotify account",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify using OAuth2 + PKCE",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show connection state",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "verify",
						Usage: "Verify the session by refreshing the access token",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Disconnect and clear stored tokens",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogout,
			},
		},
	}
}

// playerCommand handles playback control.
func playerCommand(r *Runner) *cli.Command {
	jsonFlags := []cli.Flag{
		configFlag(),
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
		},
	}

	return &cli.Command{
		Name:    "player",
		Aliases: []string{"p"},
		Usage:   "Control Spotify playback",
		Commands: []*cli.Command{
			{
				Name:   "now",
				Usage:  "Show the currently playing track",
				Flags:  jsonFlags,
				Action: r.PlayerNow,
			},
			{
				Name:   "play",
				Usage:  "Resume playback",
				Flags:  []cli.Flag{configFlag()},
				Action: r.PlayerPlay,
			},
			{
				Name:   "pause",
				Usage:  "Pause playback",
				Flags:  []cli.Flag{configFlag()},
				Action: r.PlayerPause,
			},
			{
				Name:   "next",
				Usage:  "Skip to the next track",
				Flags:  []cli.Flag{configFlag()},
				Action: r.PlayerNext,
			},
			{
				Name:    "previous",
				Aliases: []string{"prev"},
				Usage:   "Skip to the previous track",
				Flags:   []cli.Flag{configFlag()},
				Action:  r.PlayerPrevious,
			},
			{
				Name:   "devices",
				Usage:  "List available playback devices",
				Flags:  jsonFlags,
				Action: r.PlayerDevices,
			},
			{
				Name:  "transfer",
				Usage: "Transfer playback to another device",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "device",
						Aliases:  []string{"d"},
						Usage:    "Target device ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "play",
						Usage: "Start playback after transfer",
						Value: true,
					},
				},
				Action: r.PlayerTransfer,
			},
		},
	}
}

// watchCommand launches the polling TUI.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Interactive now-playing view",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Watch,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playerCommand, watchCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}
