package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	global := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "diagdecode",
		Short: "Decode ECU diagnostic responses",
		Long: `diagdecode turns raw ECU diagnostic response bytes into named, typed
values using a YAML service schema. Responses can be given as hex on the
command line or recovered from DoIP traffic in a pcap file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&global.configPath, "config", "", "Config file (default ./diagdecode.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&global.logLevel, "log-level", "", "Log level: silent, error, info, verbose, debug")
	rootCmd.PersistentFlags().StringVar(&global.logFile, "log-file", "", "Write every log line to this file")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newDecodeCmd(global))
	rootCmd.AddCommand(newCaptureCmd(global))
	rootCmd.AddCommand(newServicesCmd(global))
	rootCmd.AddCommand(newValidateCmd(global))
	rootCmd.AddCommand(newConfigCmd(global))

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != rootCmd {
			fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
			return
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Usage:\n  %s <command> [arguments] [options]\n\n", cmd.Name())
		fmt.Fprintf(out, "Available Commands:\n")
		for _, subCmd := range cmd.Commands() {
			if !subCmd.Hidden && subCmd.IsAvailableCommand() {
				fmt.Fprintf(out, "  %-15s %s\n", subCmd.Name(), subCmd.Short)
			}
		}
		fmt.Fprintf(out, "\nUse \"%s help <command>\" for more information about a command.\n", cmd.Name())
	})

	return rootCmd
}
