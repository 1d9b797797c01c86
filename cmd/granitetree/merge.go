package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var mergeForce bool

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "force the next eligible compaction to run",
	RunE:  runMerge,
}

func init() {
	mergeCmd.Flags().BoolVar(&mergeForce, "force", false, "merge the oldest two active parts even if the picker finds no eligible group")
}

func runMerge(cmd *cobra.Command, args []string) error {
	table, err := openTable(descriptorPath)
	if err != nil {
		return err
	}

	group := table.PickMerge(time.Now(), nil)
	if group == nil && mergeForce {
		all := table.ActiveParts()
		if len(all) >= 2 {
			group = all[:2]
		}
		for _, p := range all[2:] {
			p.Release()
		}
	}
	if group == nil {
		fmt.Println("no eligible merge group found")
		return nil
	}
	defer func() {
		for _, p := range group {
			p.Release()
		}
	}()

	merged, err := table.Merge(group)
	if err != nil {
		return err
	}
	fmt.Printf("merged %d parts into %s (%d rows)\n", len(group), merged.Name, merged.Rows)
	return nil
}
