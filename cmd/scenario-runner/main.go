// Package main - scenario-runner
// Executable to run shadow-mode game scenarios offline.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/phantom-night/server/test"
)

func main() {
	runs := flag.Int("runs", 3, "Number of full games to simulate")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Base RNG seed")
	flag.Parse()

	fmt.Println("PHANTOM NIGHT - SHADOW MODE SCENARIOS")
	fmt.Println("=====================================")

	ctx := context.Background()

	passed := 0
	failed := 0
	for i := 0; i < *runs; i++ {
		fmt.Printf("\nRun %d (seed %d)...\n", i+1, *seed+int64(i))
		scenario := test.NewFullGameScenario(*seed + int64(i))
		scenario.RunTest(ctx)

		for _, r := range scenario.GetResults() {
			if r.Passed {
				passed++
			} else {
				failed++
			}
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SCENARIO SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("   Passed: %d\n", passed)
	fmt.Printf("   Failed: %d\n", failed)

	if failed > 0 {
		fmt.Println("\nEngine requires recalibration before deployment")
		os.Exit(1)
	}
	fmt.Println("\nEngine is ready for deployment")
}
