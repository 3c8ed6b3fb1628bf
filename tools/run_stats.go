//go:build tools
// +build tools

package main

import (
	"fmt"
	"log"
	"os"

	"hashprng/internal/stats"
)

func main() {
	// usage: run_stats <input-file> [mode]
	if len(os.Args) < 2 {
		log.Fatalf("usage: run_stats <input-file> [auto|txt|bin01|binpacked]")
	}
	b, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	mode := stats.ModeForFile(os.Args[1], b)
	if len(os.Args) > 2 {
		if mode, err = stats.ParseMode(os.Args[2]); err != nil {
			log.Fatalf("mode: %v", err)
		}
	}
	bits, err := stats.Parse(b, mode)
	if err != nil {
		log.Fatalf("parse bits: %v", err)
	}

	fmt.Printf("bits: %d\n", len(bits))
	for _, row := range stats.FullReport(bits) {
		if row.Err != "" {
			fmt.Printf("%-36s %s (%s)\n", row.Name, row.Status, row.Err)
			continue
		}
		fmt.Printf("%-36s %s %s\n", row.Name, row.Status, row.Result.PValues())
	}
}
