// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package main

import (
	"fmt"
	"os"

	"greenchainz/gateway/config"
	"greenchainz/gateway/gateway"
	"greenchainz/gateway/shared/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("ai-gateway")
	if err := gateway.Run(cfg, log); err != nil {
		log.ErrorWithErr("", "", "gateway exited", err, nil)
		os.Exit(1)
	}
}
