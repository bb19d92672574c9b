package main

import (
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"
)

// sampleRows builds a small deterministic row set of cols columns for the
// sisosort demo: column 0 is the sort key, every later column an arbitrary
// payload (the row index) that should travel with its row through the
// shuffle and sort.
func sampleRows(n, cols int) [][]uint64 {
	rows := make([][]uint64, n)
	key := uint64(n)
	for r := 0; r < n; r++ {
		row := make([]uint64, cols)
		row[0] = key % 23
		for c := 1; c < cols; c++ {
			row[c] = uint64(r)
		}
		rows[r] = row
		key = key*7 + 3
	}
	return rows
}

func runDemo(cmd *cobra.Command, args []string) error {
	f, err := resolveField(fieldName)
	if err != nil {
		return err
	}
	parties := newParties(numParties)

	switch operation {
	case "multiply":
		z, err := demoMultiply(f, parties, 7, 11)
		if err != nil {
			return err
		}
		fmt.Printf("multiply: 7 * 11 = %s (mod field)\n", new(big.Int).SetBytes(z.Bytes()))
	case "compare":
		less, err := demoCompare(f, parties, 7, 11, numBit)
		if err != nil {
			return err
		}
		fmt.Printf("compare: 7 < 11 = %v\n", less)
	case "prefixor":
		bits := []byte{0, 0, 1, 0, 1, 1, 0}
		result, err := demoPrefixOr(f, parties, bits)
		if err != nil {
			return err
		}
		fmt.Printf("prefixor: input=%v result=%v\n", bits, result)
	case "typecast":
		x, err := demoTypeCast(f, parties, 1)
		if err != nil {
			return err
		}
		fmt.Printf("typecast: bit 1 -> xor share %d\n", x)
	case "sisosort":
		in := sampleRows(rows, cols)
		out, err := demoSISOSort(f, parties, in, 1, numBit)
		if err != nil {
			return err
		}
		fmt.Printf("sisosort: input rows:\n")
		for _, r := range in {
			fmt.Printf("  %v\n", r)
		}
		fmt.Printf("sisosort: sorted rows:\n")
		for _, r := range out {
			fmt.Printf("  %v\n", r)
		}
	default:
		return fmt.Errorf("unknown operation %q (see fortissimo-cli info)", operation)
	}
	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	f, err := resolveField(fieldName)
	if err != nil {
		return err
	}
	parties := newParties(numParties)

	run := func() error {
		switch operation {
		case "multiply":
			_, err := demoMultiply(f, parties, 7, 11)
			return err
		case "compare":
			_, err := demoCompare(f, parties, 7, 11, numBit)
			return err
		case "prefixor":
			_, err := demoPrefixOr(f, parties, []byte{0, 0, 1, 0, 1, 1, 0})
			return err
		case "typecast":
			_, err := demoTypeCast(f, parties, 1)
			return err
		case "sisosort":
			_, err := demoSISOSort(f, parties, sampleRows(rows, cols), 1, numBit)
			return err
		default:
			return fmt.Errorf("unknown operation %q (see fortissimo-cli info)", operation)
		}
	}

	start := time.Now()
	for i := 0; i < iterations; i++ {
		if err := run(); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("bench: operation=%s parties=%d iterations=%d total=%s avg=%s\n",
		operation, numParties, iterations, elapsed, elapsed/time.Duration(iterations))
	return nil
}
