// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// searchCommand queries the primary catalog without enrichment.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the Spotify catalog",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Entity type (track, artist, album, playlist)",
				Value:   "track",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Search,
	}
}

// enhancedSearchCommand queries the catalog and fans out to the optional
// metadata sources.
func enhancedSearchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "enhanced-search",
		Aliases: []string{"es"},
		Usage:   "Search the catalog and enrich results with Last.fm and MusicBrainz metadata",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Entity type (track, artist, album, playlist)",
				Value:   "track",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: 10,
			},
			&cli.IntFlag{
				Name:  "enrich-limit",
				Usage: "Only enrich the first N results (0 = all)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.EnhancedSearch,
	}
}

// similarCommand lists artists similar to a given artist.
func similarCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "similar",
		Usage: "Find artists similar to a given artist",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "artist",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of matches",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.SimilarArtists,
	}
}

// infoCommand shows details for a single catalog entity.
func infoCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show details for a track, album, artist, or playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "uri",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Entity type when passing a bare ID instead of a spotify: URI",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Info,
	}
}
