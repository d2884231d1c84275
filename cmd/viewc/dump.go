package main

import (
	"github.com/spf13/cobra"

	"viewc/internal/driver"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [views...]",
	Short: "Run the generated builders and print the control trees",
	Long: `Compile the views, execute the generated builders in an interpreter and
print the resulting control trees. Data context packages are not linked in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		d, err := driver.New(driver.Options{Config: cfg})
		if err != nil {
			return err
		}
		paths, err := viewPaths(d, args)
		if err != nil {
			return err
		}
		return d.Dump(cmd.Context(), cmd.OutOrStdout(), paths)
	},
}
