package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonylturner/diagdecode/internal/config"
	"github.com/tonylturner/diagdecode/internal/errors"
	"github.com/tonylturner/diagdecode/internal/logging"
	"github.com/tonylturner/diagdecode/internal/report"
	"github.com/tonylturner/diagdecode/internal/schema"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
}

// runEnv is the configuration and logger shared by every command run.
type runEnv struct {
	cfg    *config.Config
	logger *logging.Logger
}

func setupEnv(cmd *cobra.Command, global *globalFlags) (*runEnv, error) {
	cfg, err := loadConfig(global.configPath)
	if err != nil {
		return nil, err
	}
	if global.logLevel != "" {
		cfg.LogLevel = global.logLevel
	}
	if global.logFile != "" {
		cfg.LogFile = global.logFile
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	logger, err := logging.NewLoggerWithOptions(level, cfg.LogFile, cfg.LogFormat, cfg.LogEvery)
	if err != nil {
		return nil, err
	}
	// stdout carries the report only.
	logger.SetOutput(cmd.ErrOrStderr(), cmd.ErrOrStderr())
	return &runEnv{cfg: cfg, logger: logger}, nil
}

func (e *runEnv) Close() {
	_ = e.logger.Close()
}

// loadConfig reads an explicit config file, falls back to ./diagdecode.yaml
// when present, and otherwise uses defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfig(path, false)
	}
	if _, err := os.Stat(config.DefaultPath); err == nil {
		return config.LoadConfig(config.DefaultPath, false)
	}
	return config.CreateDefaultConfig(), nil
}

func (e *runEnv) loadSchema(cmd *cobra.Command, flagValue string) (*schema.File, string, error) {
	path := flagValue
	if path == "" {
		path = e.cfg.SchemaPath
	}
	if path == "" {
		return nil, "", missingFlagError(cmd, "--schema")
	}
	f, err := schema.Load(path)
	if err != nil {
		return nil, path, errors.WrapSchemaError(err, path)
	}
	e.logger.Verbose("Loaded schema %s: %d services", path, len(f.Services))
	return f, path, nil
}

func (e *runEnv) outputFormat(flagValue string) (string, error) {
	format := e.cfg.Output.Format
	if flagValue != "" {
		format = flagValue
	}
	if err := config.ValidateOutputFormat(format); err != nil {
		return "", fmt.Errorf("--format: %w", err)
	}
	return format, nil
}

// writeReport renders rep to stdout and, when outPath is set, also saves it
// as JSON.
func writeReport(cmd *cobra.Command, format, outPath string, rep report.Report) error {
	if err := report.Write(cmd.OutOrStdout(), format, rep); err != nil {
		return err
	}
	if outPath == "" {
		return nil
	}
	if err := report.WriteJSONFile(outPath, rep); err != nil {
		return fmt.Errorf("--out: %w", err)
	}
	return nil
}

func newReport(schemaPath, source string, results []report.Result) report.Report {
	return report.Report{
		GeneratedAt:       report.FormatTimestamp(),
		DiagdecodeVersion: version,
		Schema:            schemaPath,
		Source:            source,
		Results:           results,
	}
}

// handleHelpArg treats a bare "help" positional as --help.
func handleHelpArg(cmd *cobra.Command, args []string) bool {
	if len(args) == 0 || !strings.EqualFold(args[0], "help") {
		return false
	}
	_ = cmd.Help()
	return true
}

func missingFlagError(cmd *cobra.Command, flag string) error {
	_ = cmd.Help()
	return fmt.Errorf("required flag %s not set (see: diagdecode %s --help)", flag, cmd.Name())
}
