// Command migrate-gen generates the SQL migration for the replay checkpoint table.
//
// Usage:
//
//	go run github.com/getpup/pupsourcing-replay/cmd/migrate-gen -adapter postgres -output migrations
//	go run github.com/getpup/pupsourcing-replay/cmd/migrate-gen -adapter mysql -output migrations
//	go run github.com/getpup/pupsourcing-replay/cmd/migrate-gen -adapter sqlite -output migrations
//
// Customize the table name:
//
//	go run github.com/getpup/pupsourcing-replay/cmd/migrate-gen -table replay_checkpoints_v2
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/getpup/pupsourcing-replay/pkg/migrations"
)

func main() {
	var (
		adapter        = flag.String("adapter", "postgres", "Database adapter: postgres, mysql, or sqlite")
		outputFolder   = flag.String("output", "migrations", "Output folder for migration file")
		outputFilename = flag.String("filename", "", "Output filename (default: timestamp-based)")
		table          = flag.String("table", migrations.DefaultTable, "Name of the checkpoint table")
	)

	flag.Parse()

	config := migrations.DefaultConfig()
	config.OutputFolder = *outputFolder
	config.Table = *table

	if *outputFilename != "" {
		config.OutputFilename = *outputFilename
	}

	dialect, err := migrations.ParseDialect(*adapter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: unsupported adapter '%s'. Supported adapters are: postgres, mysql, sqlite\n", *adapter)
		os.Exit(1)
	}

	if err := migrations.Generate(dialect, &config); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s migration: %s/%s\n", dialect, config.OutputFolder, config.OutputFilename)
}
