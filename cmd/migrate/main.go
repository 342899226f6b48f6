package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/angelmondragon/storefront-settlement/internal/boot"
	"github.com/angelmondragon/storefront-settlement/pkg/db"
	"github.com/angelmondragon/storefront-settlement/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory; empty uses the embedded set")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target YYYYMMDDHHMMSS version for -cmd=version")
	flag.Parse()

	// create and validate work offline, before config is required
	switch *cmd {
	case "create":
		path, err := migrate.CreateSQLMigration(*dir, *name, time.Now())
		exitOn(err, "create migration")
		fmt.Println("created", path)
		return
	case "validate":
		exitOn(migrate.Validate(migrate.Source(*dir)), "validate migrations")
		fmt.Println("migrations valid")
		return
	}

	cfg, logg := boot.Load("migrate")
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd, "dir": *dir})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	boot.Must(ctx, logg, "database", err)
	defer boot.Close(ctx, logg, "database", dbClient)
	sqlDB, err := dbClient.DB().DB()
	boot.Must(ctx, logg, "sql handle", err)

	migrator, err := migrate.New(sqlDB, migrate.Source(*dir))
	boot.Must(ctx, logg, "migrator", err)

	results, err := migrator.Run(ctx, migrate.Command(*cmd), *version)
	printResults(migrate.Command(*cmd), results)
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "migrations", len(results)), "migrate finished")
}

func printResults(cmd migrate.Command, results []migrate.Result) {
	if len(results) == 0 {
		fmt.Println("nothing to do")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	if cmd == migrate.CommandStatus {
		fmt.Fprintln(w, "VERSION\tSTATE\tFILE")
		for _, r := range results {
			fmt.Fprintf(w, "%d\t%s\t%s\n", r.Version, r.State, r.Path)
		}
		return
	}
	fmt.Fprintln(w, "VERSION\tDIRECTION\tMS\tFILE")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", r.Version, r.Direction, r.DurationMS, r.Path)
	}
}

func exitOn(err error, what string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
