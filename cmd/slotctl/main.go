package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"appointment-scheduler/internal/cli"
	"appointment-scheduler/internal/config"
	"appointment-scheduler/internal/logger"
)

var CLI struct {
	Database string `help:"SQLite file or postgres:// URL." env:"DATABASE_URL" default:"${database}"`
	Verbose  bool   `short:"v" help:"Log store and booking activity."`

	List         cli.ListCmd         `cmd:"" help:"List booked appointments." default:"1"`
	Book         cli.BookCmd         `cmd:"" help:"Book an appointment slot."`
	Clear        cli.ClearCmd        `cmd:"" help:"Delete every appointment."`
	HashPassword cli.HashPasswordCmd `cmd:"" help:"Print a bcrypt hash for ADMIN_PASSWORD_HASH."`
	Token        cli.TokenCmd        `cmd:"" help:"Mint an admin token signed with ADMIN_SECRET."`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	kctx := kong.Parse(&CLI,
		kong.Name("slotctl"),
		kong.Description("Manage appointment slots directly in the store."),
		kong.UsageOnError(),
		kong.Vars{"database": cfg.Database.URL},
	)

	log := zap.NewNop()
	if CLI.Verbose {
		cfg.Log.File = ""
		if log, err = logger.New(cfg.Log); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	appCtx := &cli.Context{
		Ctx:      context.Background(),
		Database: CLI.Database,
		Config:   cfg,
		Out:      os.Stdout,
		Log:      log,
	}
	err = kctx.Run(appCtx)
	appCtx.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
