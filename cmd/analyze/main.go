package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"legaldoc-backend/bootstrap"
	"legaldoc-backend/config"
	"legaldoc-backend/logger"
)

func main() {
	verbose := flag.Bool("v", false, "log to stderr")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-v] <document.pdf|document.docx|document.txt>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, verbose bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var log logger.ILogger = logger.NewNop()
	if verbose {
		log = logger.NewConsoleLogger(cfg.App.Debug)
	}

	ctx := context.Background()
	container, err := bootstrap.NewContainer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer container.Close(ctx)

	ctx, cancel := container.WithTimeout(ctx)
	defer cancel()

	text, err := container.Extractor.ExtractFile(ctx, path)
	if err != nil {
		return err
	}

	result, err := container.Analysis.Run(ctx, text)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
