package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

const usage = `usage: migrate [-dir DIR] <command> [arg]

commands:
  up              apply every pending migration
  down            roll back the latest migration
  status          print applied and pending migrations
  to VERSION      migrate up or down to VERSION (YYYYMMDDHHMMSS)
  create NAME     write a new empty migration into -dir (default %s)
  validate        check filenames, versions and goose markers

Without -dir, database commands use the migrations built into this binary.
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() { fmt.Fprintf(flag.CommandLine.Output(), usage, migrate.SourceDir) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), flag.Arg(1), *dir); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
}

func run(command, arg, dir string) error {
	// create and validate work on files only.
	switch command {
	case "create":
		if arg == "" {
			return errors.New("missing migration name")
		}
		if dir == "" {
			dir = migrate.SourceDir
		}
		path, err := migrate.Create(dir, arg, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.Validate(dir); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": command})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if cerr := dbClient.Close(); cerr != nil {
			logg.Error(ctx, "closing database", cerr)
		}
	}()
	sqlDB, err := dbClient.SQL()
	if err != nil {
		return err
	}
	m, err := migrate.New(sqlDB, dir)
	if err != nil {
		return err
	}

	logg.Info(ctx, "running migration command")
	switch command {
	case "up":
		err = m.Up(ctx)
	case "down":
		err = m.Down(ctx)
	case "status":
		err = m.Status(ctx)
	case "to":
		version, perr := strconv.ParseInt(arg, 10, 64)
		if perr != nil {
			return fmt.Errorf("VERSION must be YYYYMMDDHHMMSS: %w", perr)
		}
		err = m.To(ctx, version)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return err
}
