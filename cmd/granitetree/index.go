package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var indexPartName string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "dump the sparse primary index of one part",
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexPartName, "part", "", "part name to dump (required)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexPartName == "" {
		return fmt.Errorf("granitetree: --part is required")
	}
	table, err := openTable(descriptorPath)
	if err != nil {
		return err
	}
	parts := table.ActiveParts()
	defer func() {
		for _, p := range parts {
			p.Release()
		}
	}()

	for _, p := range parts {
		if p.Name.String() != indexPartName {
			continue
		}
		tbl := tablewriter.NewWriter(os.Stdout)
		header := append([]string{"Mark"}, p.PrimaryKey...)
		tbl.SetHeader(header)
		for mark := 0; mark < p.Index.NumMarks(); mark++ {
			row := []string{fmt.Sprintf("%d", mark)}
			for _, col := range p.Index.Columns {
				row = append(row, hex.EncodeToString(col.GetDataAt(mark)))
			}
			tbl.Append(row)
		}
		tbl.Render()
		return nil
	}
	return fmt.Errorf("granitetree: no active part named %q", indexPartName)
}
