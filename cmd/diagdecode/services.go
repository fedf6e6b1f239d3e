package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type servicesFlags struct {
	schemaPath string
	verbose    bool
}

func newServicesCmd(global *globalFlags) *cobra.Command {
	flags := &servicesFlags{}

	cmd := &cobra.Command{
		Use:   "services",
		Short: "List the services in a schema",
		Example: `  diagdecode services --schema ecu.yaml
  diagdecode services --schema ecu.yaml --params`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runServices(cmd, global, flags)
		},
	}

	cmd.Flags().StringVar(&flags.schemaPath, "schema", "", "Service schema YAML (default from config)")
	cmd.Flags().BoolVar(&flags.verbose, "params", false, "Also list each output parameter")

	return cmd
}

func runServices(cmd *cobra.Command, global *globalFlags, flags *servicesFlags) error {
	env, err := setupEnv(cmd, global)
	if err != nil {
		return err
	}
	defer env.Close()

	f, _, err := env.loadSchema(cmd, flags.schemaPath)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tREQUEST\tINPUTS\tOUTPUTS\tDESCRIPTION")
	for _, svc := range f.Services {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", svc.Name, svc.Payload, len(svc.InputParams), len(svc.OutputParams), svc.Description)
		if !flags.verbose {
			continue
		}
		for _, p := range svc.OutputParams {
			kind := "-"
			if p.DataFormat != nil {
				kind = string(p.DataFormat.Kind())
			}
			unit, _ := p.GetUnit()
			fmt.Fprintf(w, "  %s\tbits %d+%d\t%s\t%s\t%s\n", p.Name, p.StartBit, p.LengthBits, p.ByteOrder, kind, unit)
		}
	}
	return w.Flush()
}
