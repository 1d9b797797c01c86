package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Henry2SS/granitetree/internal/mergetree"
)

var showPartsCmd = &cobra.Command{
	Use:   "show-parts",
	Short: "list a table's active parts",
	RunE:  runShowParts,
}

func runShowParts(cmd *cobra.Command, args []string) error {
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

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"Part", "Rows", "Bytes", "Level", "Broken"})
	for _, p := range parts {
		tbl.Append([]string{
			p.Name.String(),
			fmt.Sprintf("%d", p.Rows),
			fmt.Sprintf("%d", mergetree.PartSize(p)),
			fmt.Sprintf("%d", p.Name.Level),
			fmt.Sprintf("%t", p.Broken()),
		})
	}
	tbl.Render()
	return nil
}
