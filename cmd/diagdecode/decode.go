package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonylturner/diagdecode/internal/decode"
	"github.com/tonylturner/diagdecode/internal/errors"
	"github.com/tonylturner/diagdecode/internal/report"
	"github.com/tonylturner/diagdecode/internal/schema"
)

type decodeFlags struct {
	schemaPath string
	service    string
	hex        string
	format     string
	outPath    string
	strict     bool
}

func newDecodeCmd(global *globalFlags) *cobra.Command {
	flags := &decodeFlags{}

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode one response payload given as hex",
		Long: `Decode the output parameters of a schema service from one ECU response.

The response is given as hex with --hex or as positional arguments; spaces
and a leading 0x are ignored. Fields that fail to decode are reported inline
and do not stop the others.`,
		Example: `  # Decode a VIN response
  diagdecode decode --schema ecu.yaml --service VIN --hex "62 F1 90 57 56 57"

  # Emit CSV for plotting
  diagdecode decode --schema ecu.yaml --service EngineData --hex 6101007B --format csv

  # Print text, keep a JSON copy, fail on any bad field
  diagdecode decode --schema ecu.yaml --service VIN --hex 62F190 --out vin.json --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.hex == "" && len(args) > 0 {
				flags.hex = strings.Join(args, "")
			}
			if flags.service == "" {
				return missingFlagError(cmd, "--service")
			}
			if flags.hex == "" {
				return missingFlagError(cmd, "--hex")
			}
			return runDecode(cmd, global, flags)
		},
	}

	cmd.Flags().StringVar(&flags.schemaPath, "schema", "", "Service schema YAML (default from config)")
	cmd.Flags().StringVar(&flags.service, "service", "", "Service name (required)")
	cmd.Flags().StringVar(&flags.hex, "hex", "", "Response payload as hex (required)")
	cmd.Flags().StringVar(&flags.format, "format", "", "Output format: text, csv, json")
	cmd.Flags().StringVar(&flags.outPath, "out", "", "Also write the report as JSON to this file")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "Exit non-zero if any parameter fails to decode")

	return cmd
}

func runDecode(cmd *cobra.Command, global *globalFlags, flags *decodeFlags) error {
	env, err := setupEnv(cmd, global)
	if err != nil {
		return err
	}
	defer env.Close()

	format, err := env.outputFormat(flags.format)
	if err != nil {
		return err
	}
	f, schemaPath, err := env.loadSchema(cmd, flags.schemaPath)
	if err != nil {
		return err
	}
	env.logger.LogStartup("decode", schemaPath, "hex")

	svc, ok := f.Service(flags.service)
	if !ok {
		return fmt.Errorf("service %q not found in %s (see: diagdecode services --schema %s)", flags.service, schemaPath, schemaPath)
	}
	payload, err := schema.ParsePayload(flags.hex)
	if err != nil {
		return fmt.Errorf("--hex: %w", err)
	}
	env.logger.LogHex("Response", payload)

	values := decode.Service(*svc, payload)
	var firstErr error
	for _, v := range values {
		env.logger.LogDecode(svc.Name, v.Param, v.Text, v.Err)
		if v.Err != nil && firstErr == nil {
			firstErr = v.Err
		}
	}

	result := report.NewResult(svc.Name, values)
	rep := newReport(schemaPath, "hex", []report.Result{result})
	if err := writeReport(cmd, format, flags.outPath, rep); err != nil {
		return err
	}
	if failed := result.Failed(); flags.strict && failed > 0 {
		return errors.WrapDecodeError(fmt.Errorf("%d of %d parameters failed: %w", failed, len(values), firstErr), svc.Name)
	}
	return nil
}
