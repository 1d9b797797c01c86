// Command granitetree is an operator-facing introspection CLI for a
// MergeTree table directory: list parts, verify checksums, force a
// compaction, and dump the sparse primary index — the offline
// counterpart to the interactive client spec.md places out of scope.
// Modeled on pebble's tool package: one cobra.Command tree, flags bound
// directly to package-level vars, sub-commands grouped by what they
// operate on.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var descriptorPath string

var rootCmd = &cobra.Command{
	Use:   "granitetree [command] (flags)",
	Short: "granitetree table introspection tool",
}

func main() {
	log.SetFlags(0)
	cobra.EnableCommandSorting = false

	rootCmd.PersistentFlags().StringVarP(&descriptorPath, "table", "t", "", "path to a table descriptor YAML file")
	_ = rootCmd.MarkPersistentFlagRequired("table")

	rootCmd.AddCommand(showPartsCmd, verifyCmd, mergeCmd, indexCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
