package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/keyfold/keyfold/crypto"
	"github.com/keyfold/keyfold/internal/util"
)

var targetDuration time.Duration

// kdfBenchCmd measures Argon2id derivation time on this machine so
// deployments can pick parameters that hit a target unlock latency.
var kdfBenchCmd = &cobra.Command{
	Use:   "kdf-bench",
	Short: "Benchmark Argon2id parameters on this machine",
	Long: `Measures how long master key derivation takes for a range of Argon2id
parameter sets and recommends the cheapest set that meets the target
duration. Slower derivation means more expensive offline guessing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lanes := runtime.NumCPU()
		if lanes > 4 {
			lanes = 4
		}

		type candidate struct {
			passes    uint32
			memoryKiB uint32
		}
		candidates := []candidate{
			{3, 64 * 1024},
			{4, 64 * 1024},
			{3, 128 * 1024},
			{4, 128 * 1024},
			{3, 256 * 1024},
			{4, 256 * 1024},
		}

		fmt.Printf("Benchmarking Argon2id (parallelism=%d, target=%s)\n\n", lanes, targetDuration)
		fmt.Printf("%-8s %-12s %s\n", "passes", "memory", "duration")

		var recommended *crypto.KdfParams
		for _, c := range candidates {
			salt, err := util.RandomBytes(crypto.MinSaltLength)
			if err != nil {
				return err
			}
			params := crypto.KdfParams{
				Algorithm:   crypto.Argon2id,
				Iterations:  c.passes,
				MemoryKiB:   c.memoryKiB,
				Parallelism: uint8(lanes),
				Salt:        salt,
			}

			start := time.Now()
			master, err := crypto.DeriveMasterKey("benchmark-password", params)
			if err != nil {
				return err
			}
			master.Destroy()
			elapsed := time.Since(start)

			fmt.Printf("%-8d %-12s %s\n", c.passes, fmt.Sprintf("%dMiB", c.memoryKiB/1024), elapsed.Round(time.Millisecond))

			if recommended == nil && elapsed >= targetDuration {
				p := params
				recommended = &p
			}
		}

		fmt.Println()
		if recommended != nil {
			fmt.Printf("Recommended: passes=%d memory=%dMiB parallelism=%d\n",
				recommended.Iterations, recommended.MemoryKiB/1024, recommended.Parallelism)
		} else {
			fmt.Println("No candidate reached the target duration; consider raising memory beyond 256MiB.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(kdfBenchCmd)
	kdfBenchCmd.Flags().DurationVar(&targetDuration, "target", 500*time.Millisecond, "Target derivation duration")
}
