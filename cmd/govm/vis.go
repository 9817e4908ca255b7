package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func visCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vis <file>",
		Short: "Run a class file's main method with the observation hook enabled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vm, className, hook, err := buildObservedVM(cfg, args[0])
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
