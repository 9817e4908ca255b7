package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Load and execute a class file's main method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vm, className, hook, err := buildVM(cfg, args[0])
			if err != nil {
				return err
			}
			defer hook.Close()

			if err := vm.RunMain(className); err != nil {
				return fmt.Errorf("running %s: %w", className, err)
			}
			return nil
		},
	}
}
