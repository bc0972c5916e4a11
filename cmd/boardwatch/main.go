package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"container-request-board/config"
	"container-request-board/internal/board"
)

// boardwatch renders the live request board in a terminal. It is the
// same reconciliation core the dashboard uses, pointed at a running
// tracker service.
func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	if cfg.Board.BaseURL == "" {
		log.Fatal("board.base_url must be configured")
	}

	b := board.New(&cfg.Board)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastVersion := uint64(0)
	render(b)
	for {
		select {
		case <-stop:
			cancel()
			b.SaveMirror()
			return
		case <-ticker.C:
			if v := b.Version(); v != lastVersion {
				lastVersion = v
				render(b)
			}
		}
	}
}

func render(b *board.Board) {
	rows := b.Rows()
	fmt.Printf("\n%s  open requests: %d\n", time.Now().Format("15:04:05"), len(rows))
	fmt.Printf("%-14s %-12s %-8s %-10s %-10s %-8s\n", "SERIAL", "PART", "QTY", "LOCATION", "DELIVER TO", "TYPE")
	for _, r := range rows {
		fmt.Printf("%-14s %-12s %-8s %-10s %-10s %-8s\n",
			r.SerialNo, r.PartNo, r.Quantity.String(), r.Location, r.DeliverTo, r.RequestType)
	}
}
