package main

import (
	"context"
	"flag"

	"ticket-ledger/cmd"
	"ticket-ledger/logger"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, toml or json)")
	flag.Parse()

	if err := cmd.Start(*configPath); err != nil {
		logger.Fatalf(context.Background(), "ticket ledger stopped: %v", err)
	}
}
