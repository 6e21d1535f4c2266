package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
	"github.com/rbazzell/distributed-systems-project/internal/model"
)

var (
	submitA      string
	submitB      string
	submitSize   string
	submitSeed   uint64
	submitWait   bool
	pollInterval time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a multiplication",
	Long: `Submit A x B to the coordinator. Operands are read from JSON files
(--a, --b) or generated with entries 0-9 (--size).`,
	Example: `  # Multiply two files
  strassenctl submit --a a.json --b b.json --wait

  # Multiply random 3x4 and 4x5 matrices
  strassenctl submit --size 3x4x5`,
	Args: cobra.NoArgs,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitA, "a", "", "JSON file holding matrix A")
	submitCmd.Flags().StringVar(&submitB, "b", "", "JSON file holding matrix B")
	submitCmd.Flags().StringVarP(&submitSize, "size", "s", "", "random operands of size N, NxM or NxMxP")
	submitCmd.Flags().Uint64Var(&submitSeed, "seed", 0, "seed for random operands (0 picks one)")
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "wait for the result and print it")
	submitCmd.Flags().DurationVar(&pollInterval, "poll", 500*time.Millisecond, "result polling interval")
	submitCmd.MarkFlagsMutuallyExclusive("size", "a")
	submitCmd.MarkFlagsMutuallyExclusive("size", "b")
	submitCmd.MarkFlagsRequiredTogether("a", "b")
}

func operands() (matrix.Matrix, matrix.Matrix, error) {
	if submitSize != "" {
		d, err := ParseDims(submitSize)
		if err != nil {
			return nil, nil, err
		}
		a, b := RandomPair(newRand(submitSeed), d)
		return a, b, nil
	}
	if submitA == "" {
		return nil, nil, errors.New("either --size or --a and --b is required")
	}
	a, err := readMatrix(submitA)
	if err != nil {
		return nil, nil, err
	}
	b, err := readMatrix(submitB)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	a, b, err := operands()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client := newClient()
	id, err := client.Submit(ctx, a, b)
	if err != nil {
		return err
	}
	if !submitWait {
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	}

	res, err := client.WaitResult(ctx, id, pollInterval)
	if err != nil {
		return err
	}
	if res.Status == model.StatusFailed {
		return fmt.Errorf("task %s failed: %s", id, res.Error)
	}
	return printJSON(cmd.OutOrStdout(), res)
}
