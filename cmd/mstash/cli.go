package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tmccay/mstash/internal/acquire"
	"github.com/tmccay/mstash/internal/assetcache"
	"github.com/tmccay/mstash/internal/config"
	"github.com/tmccay/mstash/internal/errors"
	"github.com/tmccay/mstash/internal/record"
	"github.com/tmccay/mstash/internal/store"
	"github.com/tmccay/mstash/internal/web"
)

// app bundles everything the CLI commands operate on.
type app struct {
	store    *store.Store
	pipeline *acquire.Pipeline
	cfg      *config.Config
	log      *slog.Logger
	baseDir  string
	version  string
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(a *app) *cli.App {
	cliApp := &cli.App{
		Name:    "mstash",
		Usage:   "Personal offline media stash",
		Version: Version,
		Commands: []*cli.Command{
			saveCmd(a),
			listCmd(a),
			usersCmd(a),
			deleteCmd(a),
			wipeCmd(a),
			exportCmd(a),
			importCmd(a),
			configCmd(a),
			warmCmd(a),
			serveCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// listItem is a record without its payload bytes, sized for terminal output.
type listItem struct {
	ID          string           `json:"id"`
	Username    string           `json:"username"`
	Type        record.MediaType `json:"type"`
	Source      string           `json:"source"`
	Filename    string           `json:"filename"`
	ContentType string           `json:"contentType"`
	SavedAt     string           `json:"savedAt"`
	Title       string           `json:"title,omitempty"`
}

// saveCmd creates the save command.
func saveCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "Acquire one or more links and save every media item they yield (links as arguments or piped via stdin)",
		ArgsUsage: "[link...]",
		Action: func(c *cli.Context) error {
			if a.cfg.WorkerURL == "" {
				return outputError(errors.NewInvalidRequest(
					"no worker URL configured; run 'mstash config --worker-url <url>' first"))
			}

			raw := strings.Join(c.Args().Slice(), " ")
			if raw == "" && stdinHasData() {
				piped, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				raw = piped
			}
			if strings.TrimSpace(raw) == "" {
				return outputError(errors.NewInvalidRequest("at least one link is required"))
			}

			batch := a.pipeline.SaveBatch(c.Context, raw)
			return outputJSON(batch)
		},
	}
}

// listCmd creates the list command.
func listCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List saved records, newest first, without payload bytes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Only records saved from this username"},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Only records of this media type: Reel|Story|Post|Unknown"},
		},
		Action: func(c *cli.Context) error {
			username := c.String("username")
			typ := record.MediaType(c.String("type"))

			var records []record.Record
			var err error
			switch {
			case username != "":
				records, err = a.store.ByUsername(c.Context, username)
			case typ != "":
				records, err = a.store.ByType(c.Context, typ)
			default:
				records, err = a.store.All(c.Context)
			}
			if err != nil {
				return outputError(err)
			}

			records = record.Filter(records, username, typ)
			records = record.SortBySavedAtDesc(records)

			items := make([]listItem, len(records))
			for i, r := range records {
				items[i] = listItem{
					ID:          r.ID,
					Username:    r.Username,
					Type:        r.Type,
					Source:      r.Source,
					Filename:    r.Filename,
					ContentType: r.ContentType,
					SavedAt:     r.SavedAt,
					Title:       r.Title,
				}
			}

			return outputJSON(map[string]any{
				"count": len(items),
				"items": items,
			})
		},
	}
}

// usersCmd creates the users command.
func usersCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "List the distinct usernames present in the stash",
		Action: func(c *cli.Context) error {
			users, err := a.store.Usernames(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"usernames": users})
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete one record by ID",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one record ID is required"))
			}
			id := c.Args().First()

			if err := a.store.Delete(c.Context, id); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"deleted": true, "id": id})
		},
	}
}

// wipeCmd creates the wipe command.
func wipeCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "wipe",
		Usage: "Permanently delete every record",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "confirm", Usage: "Required; there is no undo"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("confirm") {
				return outputError(errors.NewInvalidRequest("pass --confirm to wipe the whole stash"))
			}
			if err := a.store.Clear(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"wiped": true})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the whole stash, payload bytes included, to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.mstash/exports/mstash-export-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("path")
			if path == "" {
				path = store.DefaultExportPath(a.baseDir, time.Now())
			}

			n, err := a.store.ExportToFile(c.Context, path)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"exported": n, "path": path})
		},
	}
}

// importCmd creates the import command.
func importCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a JSONL export file (parsed fully before anything is written)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("path")

			n, err := a.store.ImportFromFile(c.Context, path)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"imported": n, "path": path})
		},
	}
}

// configCmd creates the config command.
func configCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or update configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "worker-url", Usage: "Base address of the resolution/download worker"},
			&cli.StringFlag{Name: "app-origin", Usage: "Origin of the app's own static assets"},
			&cli.StringFlag{Name: "cache-version", Usage: "Offline asset cache version tag"},
		},
		Action: func(c *cli.Context) error {
			changed := false
			if c.IsSet("worker-url") {
				a.cfg.WorkerURL = c.String("worker-url")
				changed = true
			}
			if c.IsSet("app-origin") {
				a.cfg.AppOrigin = c.String("app-origin")
				changed = true
			}
			if c.IsSet("cache-version") {
				a.cfg.CacheVersion = c.String("cache-version")
				changed = true
			}

			if changed {
				if err := config.Save(a.baseDir, a.cfg); err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			return outputJSON(a.cfg)
		},
	}
}

// warmCmd creates the warm command.
func warmCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "warm",
		Usage: "Install and activate the offline asset cache for the configured app origin",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Reinstall even if this cache version is already present"},
		},
		Action: func(c *cli.Context) error {
			if a.cfg.AppOrigin == "" {
				return outputError(errors.NewInvalidRequest(
					"no app origin configured; run 'mstash config --app-origin <url>' first"))
			}

			cache, err := assetcache.New(
				filepath.Join(a.baseDir, "cache"),
				a.cfg.CacheVersion,
				a.cfg.AppOrigin,
				nil,
				a.log,
			)
			if err != nil {
				return outputError(err)
			}

			if err := cache.Warm(c.Context, assetcache.DefaultManifest, c.Bool("force")); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"warmed":  true,
				"version": a.cfg.CacheVersion,
				"assets":  len(assetcache.DefaultManifest),
			})
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8765, Usage: "Listen port"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(a.store, a.pipeline, a.cfg, a.version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if sErr, ok := err.(*errors.StashError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
