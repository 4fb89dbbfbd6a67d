package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"

	"github.com/nickjmiller/floneum/boundary"
)

var abiWIT bool

var abiCmd = &cobra.Command{
	Use:   "abi",
	Short: "List the host functions available to plugins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		module := cfg.Boundary.Module
		if module == "" {
			module = boundary.DefaultModule
		}
		out := cmd.OutOrStdout()

		if abiWIT {
			pkg, _, _ := strings.Cut(module, "/")
			fmt.Fprint(out, boundary.WIT(pkg))
			return nil
		}

		fmt.Fprintf(out, "Host module: %s\n\n", module)
		for i := range boundary.Functions {
			fn := &boundary.Functions[i]
			types, names, err := fn.Signature()
			if err != nil {
				return err
			}
			core := make([]string, len(types))
			for j, t := range types {
				core[j] = names[j] + " " + api.ValueTypeName(t)
			}
			fmt.Fprintf(out, "  %s(%s) -> i32\n", fn.Name, strings.Join(core, ", "))
			if fn.Doc != "" {
				fmt.Fprintf(out, "      %s\n", fn.Doc)
			}
		}
		return nil
	},
}

func init() {
	abiCmd.Flags().BoolVar(&abiWIT, "wit", false, "print the interface as WIT")
	rootCmd.AddCommand(abiCmd)
}
