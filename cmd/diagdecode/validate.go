package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonylturner/diagdecode/internal/schema"
)

type validateFlags struct {
	schemaPath string
	normalize  string
}

func newValidateCmd(global *globalFlags) *cobra.Command {
	flags := &validateFlags{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a schema file for errors",
		Long: `Load a schema and run every structural check: service and parameter
names present and unique, bit geometry, numeric widths of at most 32 bits,
named table ranges and ordered valid_bounds.

With --normalize, a valid schema is written back out in canonical form:
uppercase payload hex, explicit byte orders and empty lists omitted.

If --schema is omitted, the first positional argument is used.`,
		Example: `  diagdecode validate --schema ecu.yaml
  diagdecode validate --schema ecu.yaml --normalize ecu.clean.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.schemaPath == "" && len(args) > 0 {
				flags.schemaPath = args[0]
			}
			return runValidate(cmd, global, flags)
		},
	}

	cmd.Flags().StringVar(&flags.schemaPath, "schema", "", "Service schema YAML (default from config)")
	cmd.Flags().StringVar(&flags.normalize, "normalize", "", "Write the validated schema in canonical form to this file")

	return cmd
}

func runValidate(cmd *cobra.Command, global *globalFlags, flags *validateFlags) error {
	env, err := setupEnv(cmd, global)
	if err != nil {
		return err
	}
	defer env.Close()

	f, path, err := env.loadSchema(cmd, flags.schemaPath)
	if err != nil {
		return err
	}
	params := 0
	for _, svc := range f.Services {
		params += len(svc.InputParams) + len(svc.OutputParams)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d services, %d parameters)\n", path, len(f.Services), params)
	if flags.normalize == "" {
		return nil
	}
	if err := schema.Write(flags.normalize, f); err != nil {
		return err
	}
	env.logger.Info("Wrote normalized schema to %s", flags.normalize)
	return nil
}
