package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spin/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaybackStatus shows the current player state.
func (r *Runner) PlaybackStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Info("fetching playback state")

	state, err := r.spotify.NowPlaying(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(state, cmd.Bool("pretty"))
	}

	if state.Track == nil {
		return r.writePlain("Nothing playing\n")
	}

	if state.Playing {
		r.writePlain("▶ Playing\n")
	} else {
		r.writePlain("⏸ Paused\n")
	}

	r.writePlain("Track: %s - %s\n", state.Track.Artist, state.Track.Title)
	if state.Track.Album != "" {
		r.writePlain("Album: %s\n", state.Track.Album)
	}
	r.writePlain("Position: %s / %s\n", shared.FormatDuration(state.Progress), shared.FormatDuration(state.Track.Duration))
	if state.Device != "" {
		r.writePlain("Device: %s\n", state.Device)
	}
	if state.Shuffle {
		r.writePlain("Shuffle: on\n")
	}
	if state.Repeat != "" && state.Repeat != "off" {
		r.writePlain("Repeat: %s\n", state.Repeat)
	}

	return nil
}

// PlaybackStart resumes playback, optionally with a track and target device.
func (r *Runner) PlaybackStart(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}

	deviceID := cmd.String("device")

	var uris []string
	if ref := strings.TrimSpace(cmd.StringArg("uri")); ref != "" {
		uris = append(uris, ref)
	}

	r.logger.Info("starting playback", "device", deviceID, "uris", len(uris))

	if err := r.spotify.StartPlayback(ctx, deviceID, uris); err != nil {
		return err
	}

	if len(uris) > 0 {
		return r.writePlain("▶ Playing %s\n", uris[0])
	}
	return r.writePlain("▶ Playback resumed\n")
}

// PlaybackPause pauses the active device.
func (r *Runner) PlaybackPause(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Info("pausing playback")

	if err := r.spotify.PausePlayback(ctx); err != nil {
		return err
	}

	return r.writePlain("⏸ Playback paused\n")
}

// PlaybackNext skips forward one or more tracks.
func (r *Runner) PlaybackNext(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}

	count := cmd.Int("count")
	if count <= 0 {
		count = 1
	}

	r.logger.Info("skipping tracks", "count", count)

	if err := r.spotify.SkipTracks(ctx, count); err != nil {
		return err
	}

	if count == 1 {
		return r.writePlain("⏭ Skipped to next track\n")
	}
	return r.writePlain("⏭ Skipped %d tracks\n", count)
}

// PlaybackDevices lists available playback devices.
func (r *Runner) PlaybackDevices(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Info("listing devices")

	devices, err := r.spotify.Devices(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(devices, cmd.Bool("pretty"))
	}

	if len(devices) == 0 {
		return r.writePlain("No devices available. Open Spotify on a device first.\n")
	}

	r.writePlain("Found %d devices:\n\n", len(devices))
	for i, d := range devices {
		r.writePlain("%d. %s (%s)\n", i+1, d.Name, d.Type)
		if d.Active {
			r.writePlain("   Active, volume %d%%\n", d.Volume)
		}
		r.writePlain("   ID: %s\n", d.ID)
	}

	return nil
}

// QueueAdd appends a track to the playback queue.
func (r *Runner) QueueAdd(ctx context.Context, cmd *cli.Command) error {
	ref := strings.TrimSpace(cmd.StringArg("track"))
	if ref == "" {
		return fmt.Errorf("%w: track ID or URI", shared.ErrMissingArgument)
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Info("queueing track", "track", ref)

	if err := r.spotify.QueueTrack(ctx, ref); err != nil {
		return err
	}

	return r.writePlain("✓ Queued %s\n", ref)
}

// QueueShow lists the current track and what follows it.
func (r *Runner) QueueShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Info("fetching queue")

	queue, err := r.spotify.Queue(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(queue, cmd.Bool("pretty"))
	}

	if queue.NowPlaying != nil {
		r.writePlain("▶ Now playing: %s - %s\n\n", queue.NowPlaying.Artist, queue.NowPlaying.Title)
	}

	if len(queue.Next) == 0 {
		return r.writePlain("Queue is empty\n")
	}

	r.writePlain("Up next:\n")
	for i, track := range queue.Next {
		r.writePlain("%d. %s - %s\n", i+1, track.Artist, track.Title)
	}

	return nil
}

// playbackCommand handles player control operations.
func playbackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playback",
		Aliases: []string{"pb"},
		Usage:   "Control Spotify playback",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show the current player state",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.PlaybackStatus,
			},
			{
				Name:  "start",
				Usage: "Resume playback, or play a track by ID or URI",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "uri",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "device",
						Usage: "Device ID to play on",
					},
				},
				Action: r.PlaybackStart,
			},
			{
				Name:   "pause",
				Usage:  "Pause playback",
				Action: r.PlaybackPause,
			},
			{
				Name:  "next",
				Usage: "Skip to the next track",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "count",
						Aliases: []string{"n"},
						Usage:   "Number of tracks to skip",
						Value:   1,
					},
				},
				Action: r.PlaybackNext,
			},
			{
				Name:  "devices",
				Usage: "List available playback devices",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.PlaybackDevices,
			},
		},
	}
}

// queueCommand handles playback queue operations.
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Manage the playback queue",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a track to the queue",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "track",
					},
				},
				Action: r.QueueAdd,
			},
			{
				Name:  "show",
				Usage: "Show the current queue",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.QueueShow,
			},
		},
	}
}
