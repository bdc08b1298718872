package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/app"
	"github.com/dvloznov/moliya/internal/config"
	"github.com/dvloznov/moliya/internal/logger"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"chat", "Record transactions by talking to the assistant", runChat},
	{"list", "List transactions, most recent first", runList},
	{"summary", "Show balances, debts and spending by category", runSummary},
	{"people", "List people and what they owe", runPeople},
	{"add-person", "Add a person to the roster", runAddPerson},
	{"edit", "Edit a transaction", runEdit},
	{"delete", "Delete a transaction", runDelete},
	{"advice", "Get advice on recent transactions", runAdvice},
	{"export-bq", "Export the ledger to BigQuery", runExportBQ},
	{"sync-notion", "Mirror the ledger into a Notion database", runSyncNotion},
	{"migrate-store", "Copy the ledger to another storage backend", runMigrateStore},
}

// env is what every command gets: the loaded app and the terminal.
type env struct {
	app *app.App
	log zerolog.Logger
	in  io.Reader
	out io.Writer
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage()
		return
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Logs go to stderr so command output stays clean.
	log := logger.NewWithOptions(logger.Options{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.Format(),
		Output: os.Stderr,
	})

	ctx := logger.WithContext(context.Background(), log)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise application")
	}

	runErr := cmd.run(ctx, &env{app: a, log: log, in: os.Stdin, out: os.Stdout}, os.Args[2:])

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down cleanly")
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Moliya - personal finance ledger")
	fmt.Println("\nUsage:")
	fmt.Println("  moliya <command> [options]")
	fmt.Println("\nCommands:")
	for _, c := range commands {
		fmt.Printf("  %-12s %s\n", c.name, c.usage)
	}
	fmt.Printf("  %-12s %s\n", "help", "Show this help message")
	fmt.Println("\nRun 'moliya <command> -h' for more information on a command.")
}
