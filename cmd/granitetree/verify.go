package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Henry2SS/granitetree/internal/ioutil"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "verify checksums of every active part",
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
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

	var broken int
	for _, p := range parts {
		if err := ioutil.Verify(p.Dir, p.Checksums); err != nil {
			broken++
			fmt.Printf("%s: BROKEN: %v\n", p.Name, err)
			continue
		}
		fmt.Printf("%s: ok\n", p.Name)
	}
	if broken > 0 {
		return fmt.Errorf("granitetree: %d of %d parts failed checksum verification", broken, len(parts))
	}
	return nil
}
