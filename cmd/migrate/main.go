package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up              apply pending migrations
  down            roll back the latest migration
  status          list migrations and whether they are applied
  to <version>    move the schema to version (YYYYMMDDHHMMSS)
  create <name>   write a new migration file into -dir
  validate        check migration files in -dir
`

func main() {
	dir := flag.String("dir", migrate.SourceDir, "migrations directory used by create and validate")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Args()[1:], *dir); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(command string, args []string, dir string) error {
	// Offline commands only touch files.
	switch command {
	case "create":
		if len(args) != 1 {
			return errors.New("create needs exactly one name")
		}
		path, err := migrate.Create(dir, args[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.Validate(os.DirFS(dir)); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DB.IsSQLite() {
		return errors.New("sql migrations target postgres; sqlite dev databases migrate from models on startup")
	}

	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "command": command})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	migrator, err := migrate.New(sqlDB, nil)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", applied), "schema up to date")
	case "down":
		if err := migrator.Down(ctx); err != nil {
			return err
		}
		logg.Info(ctx, "latest migration rolled back")
	case "to":
		if len(args) != 1 {
			return errors.New("to needs a version")
		}
		version, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		if err := migrator.To(ctx, version); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "version", version), "schema moved")
	case "status":
		rows, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(rows)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func printStatus(rows []migrate.Applied) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAPPLIED AT\tFILE")
	for _, row := range rows {
		at := "pending"
		if row.Applied {
			at = row.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", row.Version, at, row.File)
	}
	_ = w.Flush()
}
