// Command pricecast predicts listing prices.
//
// Usage:
//
//	pricecast [-config pricecast.yaml] ensemble
//	pricecast [-config pricecast.yaml] preprocess
//	pricecast import-sqlite -db listings.db train.tsv test.tsv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/pricecast/config"
	"github.com/YuminosukeSato/pricecast/dataset"
	"github.com/YuminosukeSato/pricecast/pipeline"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/pkg/log"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: pricecast [-config path] <command>

commands:
  ensemble       fit the blended ensemble and write the submission
  preprocess     write the embedding design matrices for an external model
  import-sqlite  copy train/test TSV files into a SQLite database

flags:
`)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "config file (default: $PRICECAST_CONFIG or ./pricecast.yaml)")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.GetLoggerWithName("pricecast").Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, command string, args []string) error {
	if command == "import-sqlite" {
		return importSQLite(ctx, args)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := log.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr); err != nil {
		return err
	}

	r := pipeline.NewRunner(cfg)
	switch command {
	case pipeline.FlowEnsemble:
		_, err = r.RunEnsemble(ctx)
	case pipeline.FlowPreprocess:
		_, err = r.RunPreprocess(ctx)
	default:
		usage()
		return errors.Newf("unknown command %q", command)
	}
	return err
}

func importSQLite(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import-sqlite", flag.ContinueOnError)
	db := fs.String("db", "listings.db", "SQLite database to write")
	trainTable := fs.String("train-table", "train", "table for the training listings")
	testTable := fs.String("test-table", "test", "table for the test listings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("import-sqlite: expected <train.tsv> <test.tsv>")
	}
	if err := log.Setup("info", "console", os.Stderr); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("import")

	for i, table := range []string{*trainTable, *testTable} {
		src := dataset.NewTSVSource(fs.Arg(i))
		raw, err := src.Read(ctx)
		if err != nil {
			return err
		}
		if err := dataset.WriteSQLite(ctx, *db, table, raw); err != nil {
			return err
		}
		logger.Info("table imported", "source", src.String(), "table", table, log.SamplesKey, len(raw.Rows))
	}
	return nil
}
