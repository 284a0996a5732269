// Command migrate applies, inspects and rolls back the zanhu schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"zanhu/internal/config"
	"zanhu/internal/database"

	"gorm.io/gorm"
)

const usageText = `usage: migrate [-timeout 2m] <command> [version]

commands:
  up              apply pending SQL migrations
  auto            run gorm AutoMigrate for every persistent model
  status          show schema mode and pending migrations
  list            list embedded migrations
  down [version]  roll back one migration (default: the latest applied)`

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "abort the command after this long")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usageText) }
	flag.Parse()

	if err := run(*timeout, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(timeout time.Duration, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%s", usageText)
	}
	cmd := strings.ToLower(strings.TrimSpace(args[0]))

	// list only reads the embedded files.
	if cmd == "list" {
		printMigrations(nil)
		return nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	switch cmd {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Printf("✓ %d sql migrations in sync", len(database.GetMigrations()))
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Printf("✓ AutoMigrate applied to %d models", len(database.PersistentModels()))
	case "status":
		return printStatus(ctx, db, cfg)
	case "down":
		version, err := rollbackTarget(ctx, db, args[1:])
		if err != nil {
			return err
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Printf("✓ rolled back migration %06d", version)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usageText)
	}

	return nil
}

func printStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	fmt.Printf("mode:         %s\n", status.Mode)
	fmt.Printf("environment:  %s\n", status.Environment)
	fmt.Printf("sql:          %t\n", status.WillRunSQL)
	fmt.Printf("automigrate:  %t\n", status.WillRunAutoMigrate)
	fmt.Printf("applied:      %d\n", len(status.AppliedVersions))
	fmt.Printf("pending:      %d\n\n", len(status.PendingMigrations))
	if status.WillRunSQL {
		printMigrations(status.AppliedVersions)
	}
	return nil
}

// printMigrations tabulates the embedded migrations. A nil applied slice
// leaves the state column blank.
func printMigrations(applied []int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VERSION\tNAME\tSTATE")
	for _, m := range database.GetMigrations() {
		state := ""
		if applied != nil {
			state = "pending"
			if slices.Contains(applied, m.Version) {
				state = "applied"
			}
		}
		_, _ = fmt.Fprintf(w, "%06d\t%s\t%s\n", m.Version, m.Name, state)
	}
	_ = w.Flush()
}

func rollbackTarget(ctx context.Context, db *gorm.DB, args []string) (int, error) {
	if len(args) > 0 {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return version, nil
	}

	applied, err := database.AppliedVersions(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("read applied migrations: %w", err)
	}
	if len(applied) == 0 {
		return 0, fmt.Errorf("no applied migrations to roll back")
	}
	return slices.Max(applied), nil
}
