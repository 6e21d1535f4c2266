package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
	"github.com/rbazzell/distributed-systems-project/internal/model"
)

var (
	verifySizes  []string
	verifySeed   uint64
	verifyRounds int
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Multiply random matrices remotely and compare with a local product",
	Example: `  strassenctl verify --size 2 --size 3x4x5 --size 16 --rounds 3`,
	Args:    cobra.NoArgs,
	RunE:    runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringArrayVarP(&verifySizes, "size", "s", []string{"2", "4", "3x4x5", "8"}, "operand size N, NxM or NxMxP (repeatable)")
	verifyCmd.Flags().Uint64Var(&verifySeed, "seed", 0, "seed for random operands (0 picks one)")
	verifyCmd.Flags().IntVarP(&verifyRounds, "rounds", "r", 1, "submissions per size")
	verifyCmd.Flags().DurationVar(&pollInterval, "poll", 500*time.Millisecond, "result polling interval")
}

func runVerify(cmd *cobra.Command, _ []string) error {
	dims := make([]Dims, 0, len(verifySizes))
	for _, s := range verifySizes {
		d, err := ParseDims(s)
		if err != nil {
			return err
		}
		dims = append(dims, d)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client := newClient()
	r := newRand(verifySeed)
	out := cmd.OutOrStdout()
	failures := 0

	for _, d := range dims {
		for round := range verifyRounds {
			a, b := RandomPair(r, d)
			want, err := matrix.Mul(a, b)
			if err != nil {
				return err
			}

			start := time.Now()
			id, err := client.Submit(ctx, a, b)
			if err != nil {
				return err
			}
			res, err := client.WaitResult(ctx, id, pollInterval)
			if err != nil {
				return err
			}

			verdict := "ok"
			switch {
			case res.Status == model.StatusFailed:
				verdict = "FAILED: " + res.Error
				failures++
			case !matrix.Equal(res.Matrix, want):
				verdict = "MISMATCH"
				failures++
			}
			fmt.Fprintf(out, "%dx%d * %dx%d round %d  %s  %s  %v\n",
				d.N, d.M, d.M, d.P, round+1, id, verdict, time.Since(start).Round(time.Millisecond))
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d submissions did not match", failures, len(dims)*verifyRounds)
	}
	return nil
}
