// Command montaxi-migrate copies every record from one backend to another,
// typically from the CSV files of a workstation into a SQLite or MySQL
// database. Ids are preserved and existing target records are overwritten.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"montaxi/internal/backend"
	appcli "montaxi/internal/cli"
	"montaxi/internal/log"
	"montaxi/internal/storage"
)

type options struct {
	from, to string
	source   backend.Config
	target   backend.Config
	timeout  time.Duration
}

func main() {
	// MYSQL_DSN may come from .env; flags read the environment at Run.
	appcli.LoadEnvFile()
	logger := appcli.SetupLogger(nil, log.ComponentMigrate)

	app := newApp(func(opts options) error { return run(opts, logger) })
	if err := app.Run(os.Args); err != nil {
		logger.Error("Migration failed", log.FieldError, err)
		os.Exit(1)
	}
}

func newApp(action func(options) error) *cli.App {
	return &cli.App{
		Name:  "montaxi-migrate",
		Usage: "copy every record from one backend into another",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Value: "csv", Usage: fmt.Sprintf("source backend %v", backend.GetBackendTypeStrings())},
			&cli.StringFlag{Name: "to", Value: "sqlite", Usage: "target backend"},
			&cli.StringFlag{Name: "data-dir", Value: "./data", Usage: "directory of the csv backend", EnvVars: []string{"DATA_DIR"}},
			&cli.StringFlag{Name: "sqlite", Value: "./data/montaxi.db", Usage: "SQLite database file", EnvVars: []string{"SQLITE_DB_PATH"}},
			&cli.StringFlag{Name: "mysql", Usage: "MySQL DSN", EnvVars: []string{"MYSQL_DSN"}},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Minute, Usage: "give up after this long"},
		},
		Action: func(c *cli.Context) error {
			opts, err := optionsFrom(c)
			if err != nil {
				return err
			}
			return action(opts)
		},
	}
}

func optionsFrom(c *cli.Context) (options, error) {
	from, to := c.String("from"), c.String("to")
	if from == to {
		return options{}, fmt.Errorf("source and target backends must differ, both are %q", from)
	}
	cfg := func(kind string) backend.Config {
		return backend.Config{
			Type:         backend.BackendType(kind),
			DataDir:      c.String("data-dir"),
			SQLiteDBPath: c.String("sqlite"),
			MySQLDSN:     c.String("mysql"),
		}
	}
	return options{
		from:    from,
		to:      to,
		source:  cfg(from),
		target:  cfg(to),
		timeout: c.Duration("timeout"),
	}, nil
}

// run copies source into target; both stores are closed on every path.
func run(opts options, logger *log.Logger) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	factory := backend.NewFactory(logger)
	src, err := factory.CreateBackend(ctx, opts.source)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.from, err)
	}
	defer func() { err = errors.Join(err, src.Cleanup()) }()

	dst, err := factory.CreateBackend(ctx, opts.target)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.to, err)
	}
	defer func() { err = errors.Join(err, dst.Cleanup()) }()

	start := time.Now()
	n, err := storage.Copy(ctx, src.Store, dst.Store)
	if err != nil {
		return fmt.Errorf("copied %d records before failing: %w", n, err)
	}
	logger.Info("Migration complete",
		"from", opts.from,
		"to", opts.to,
		log.FieldCount, n,
		log.FieldDuration, time.Since(start).Milliseconds(),
	)
	return nil
}
