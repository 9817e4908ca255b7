package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"govm/pkg/vmconfig"
)

var cfg vmconfig.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "govm",
		Short: "A small Java Virtual Machine",
		Long:  "govm decodes, links and interprets JVM class files.",
	}
	rootCmd.PersistentFlags().IntVar(&cfg.HeapCapacity, "mem", 65536, "heap slot-pool capacity")
	rootCmd.PersistentFlags().StringVar(&cfg.ObservationFile, "file", "", "observation hook output file (JSON array)")
	rootCmd.PersistentFlags().BoolVar(&cfg.SnapOnWrite, "snap", false, "emit a heap snapshot after every executed instruction")
	rootCmd.PersistentFlags().StringSliceVar(&cfg.ClassPath, "classpath", nil, "additional directories, .jar or .jmod files to search for classes")

	rootCmd.AddCommand(parseCmd(), runCmd(), visCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
