package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Decode a class file and print its constant pool and instructions as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cf, err := decodeClassFile(args[0])
			if err != nil {
				return err
			}
			body, err := json.Marshal(cf)
			if err != nil {
				return fmt.Errorf("encoding decoded class: %w", err)
			}
			fmt.Println(prettyPrint(body))
			return nil
		},
	}
}

func prettyPrint(buf []byte) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf, "", "  "); err != nil {
		return string(buf)
	}
	return pretty.String()
}
