package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
	"github.com/zenithdesk/chord/internal/player"
	"github.com/zenithdesk/chord/internal/shared"
)

// PlayerNow prints the current playback state.
func (r *Runner) PlayerNow(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd.String("config")); err != nil {
		return err
	}

	np, err := r.player.NowPlaying(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			r.writePlain("Not connected. Run `chord auth login` first.\n")
			return nil
		}
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(np, cmd.Bool("pretty"))
	}

	if np == nil || np.Item == nil {
		r.writePlain("Nothing playing.\n")
		return nil
	}

	state := "Paused"
	if np.IsPlaying {
		state = "Playing"
	}

	r.writePlain("%s: %s\n", state, np.Item.Name)
	r.writePlain("  Artist: %s\n", np.ArtistNames())
	if np.Item.Album.Name != "" {
		r.writePlain("  Album: %s\n", np.Item.Album.Name)
	}

	return nil
}

// PlayerPlay resumes playback on the active device.
func (r *Runner) PlayerPlay(ctx context.Context, cmd *cli.Command) error {
	return r.playerControl(cmd, func(ctx context.Context) error {
		return r.reportResult(r.player.Toggle(ctx, true))
	}, ctx)
}

// PlayerPause pauses playback.
func (r *Runner) PlayerPause(ctx context.Context, cmd *cli.Command) error {
	return r.playerControl(cmd, func(ctx context.Context) error {
		return r.reportResult(r.player.Toggle(ctx, false))
	}, ctx)
}

// PlayerNext skips to the next track.
func (r *Runner) PlayerNext(ctx context.Context, cmd *cli.Command) error {
	return r.playerControl(cmd, func(ctx context.Context) error {
		return r.reportResult(r.player.SkipNext(ctx))
	}, ctx)
}

// PlayerPrevious skips to the previous track.
func (r *Runner) PlayerPrevious(ctx context.Context, cmd *cli.Command) error {
	return r.playerControl(cmd, func(ctx context.Context) error {
		return r.reportResult(r.player.SkipPrevious(ctx))
	}, ctx)
}

// PlayerDevices lists available playback devices.
func (r *Runner) PlayerDevices(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd.String("config")); err != nil {
		return err
	}

	devices, err := r.player.Devices(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			r.writePlain("Not connected. Run `chord auth login` first.\n")
			return nil
		}
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(devices, cmd.Bool("pretty"))
	}

	if len(devices) == 0 {
		r.writePlain("No devices available.\n")
		return nil
	}

	r.writePlain("Found %d devices:\n\n", len(devices))
	for i, d := range devices {
		marker := " "
		if d.IsActive {
			marker = "▶"
		}
		r.writePlain("%s %d. %s (%s)\n", marker, i+1, d.Name, d.Type)
		r.writePlain("     ID: %s\n", d.ID)
		if d.VolumePercent != nil {
			r.writePlain("     Volume: %d%%\n", *d.VolumePercent)
		}
	}

	return nil
}

// PlayerTransfer moves playback to the device given by --device.
func (r *Runner) PlayerTransfer(ctx context.Context, cmd *cli.Command) error {
	deviceID := cmd.String("device")
	if deviceID == "" {
		return fmt.Errorf("%w: --device flag is required", shared.ErrMissingArgument)
	}

	return r.playerControl(cmd, func(ctx context.Context) error {
		return r.reportResult(r.player.Transfer(ctx, deviceID, cmd.Bool("play")))
	}, ctx)
}

// playerControl opens dependencies then runs a playback command.
func (r *Runner) playerControl(cmd *cli.Command, fn func(context.Context) error, ctx context.Context) error {
	if err := r.open(cmd.String("config")); err != nil {
		return err
	}
	return fn(ctx)
}

// reportResult renders a classified playback outcome. 403/404 are
// informational states for the user, never command failures.
func (r *Runner) reportResult(res player.Result) error {
	if res.OK {
		return r.writePlain("✓ %s\n", res.Note)
	}
	if res.Status == 0 {
		return r.writePlain("✗ %s\n", res.Note)
	}
	return r.writePlain("✗ %s (status %d)\n", res.Note, res.Status)
}
