package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonylturner/diagdecode/internal/capture"
	"github.com/tonylturner/diagdecode/internal/decode"
	"github.com/tonylturner/diagdecode/internal/errors"
	"github.com/tonylturner/diagdecode/internal/logging"
	"github.com/tonylturner/diagdecode/internal/progress"
	"github.com/tonylturner/diagdecode/internal/report"
	"github.com/tonylturner/diagdecode/internal/schema"
)

type captureFlags struct {
	schemaPath string
	pcapFile   string
	service    string
	port       int
	workers    int
	format     string
	outPath    string
	live       string
	duration   time.Duration
}

func newCaptureCmd(global *globalFlags) *cobra.Command {
	flags := &captureFlags{}

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Decode ECU responses found in a DoIP pcap",
		Long: `Extract DoIP diagnostic messages from a pcap or pcapng file, match each
ECU response to the schema service whose request it answers, and decode it.

Negative responses (0x7F) are reported with their response code. With
--live, traffic is first recorded from an interface into the --pcap file.

If --pcap is omitted, the first positional argument is used.`,
		Example: `  # Decode every known response in a capture
  diagdecode capture --schema ecu.yaml --pcap session.pcapng

  # Only one service, as CSV, from a tester on a non-standard port
  diagdecode capture --schema ecu.yaml --pcap session.pcap --service EngineData --port 13401 --format csv

  # Record 30s from the loopback interface, then decode
  diagdecode capture --schema ecu.yaml --pcap out.pcap --live loopback --duration 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.pcapFile == "" && len(args) > 0 {
				flags.pcapFile = args[0]
			}
			if flags.pcapFile == "" {
				return missingFlagError(cmd, "--pcap")
			}
			if flags.port < 0 || flags.port > 65535 {
				return fmt.Errorf("--port must be between 1 and 65535")
			}
			return runCapture(cmd, global, flags)
		},
	}

	cmd.Flags().StringVar(&flags.schemaPath, "schema", "", "Service schema YAML (default from config)")
	cmd.Flags().StringVar(&flags.pcapFile, "pcap", "", "Capture file to read, or to write with --live (required)")
	cmd.Flags().StringVar(&flags.service, "service", "", "Only decode responses to this service")
	cmd.Flags().IntVar(&flags.port, "port", 0, "DoIP TCP port (default from config, 13400)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Decode workers (default from config)")
	cmd.Flags().StringVar(&flags.format, "format", "", "Output format: text, csv, json")
	cmd.Flags().StringVar(&flags.outPath, "out", "", "Also write the report as JSON to this file")
	cmd.Flags().StringVar(&flags.live, "live", "", "Record from this interface first (\"loopback\" picks the loopback device)")
	cmd.Flags().DurationVar(&flags.duration, "duration", 10*time.Second, "How long to record with --live")

	return cmd
}

func runCapture(cmd *cobra.Command, global *globalFlags, flags *captureFlags) error {
	env, err := setupEnv(cmd, global)
	if err != nil {
		return err
	}
	defer env.Close()

	format, err := env.outputFormat(flags.format)
	if err != nil {
		return err
	}
	port := env.cfg.Capture.Port
	if flags.port > 0 {
		port = flags.port
	}
	workers := env.cfg.Capture.Workers
	if flags.workers > 0 {
		workers = flags.workers
	}

	f, schemaPath, err := env.loadSchema(cmd, flags.schemaPath)
	if err != nil {
		return err
	}
	env.logger.LogStartup("capture", schemaPath, flags.pcapFile)

	var only *schema.Service
	if flags.service != "" {
		svc, ok := f.Service(flags.service)
		if !ok {
			return fmt.Errorf("service %q not found in %s", flags.service, schemaPath)
		}
		only = svc
	}

	if flags.live != "" {
		if err := recordLive(cmd.Context(), cmd.ErrOrStderr(), env, flags, uint16(port)); err != nil {
			return err
		}
	}

	msgs, err := capture.ExtractDoIP(flags.pcapFile, uint16(port))
	if err != nil {
		return errors.WrapCaptureError(err, flags.pcapFile)
	}
	env.logger.Verbose("Extracted %d DoIP diagnostic messages", len(msgs))

	results, err := decodeResponses(cmd.Context(), env, f, only, msgs, workers)
	if err != nil {
		return err
	}
	return writeReport(cmd, format, flags.outPath, newReport(schemaPath, flags.pcapFile, results))
}

func recordLive(ctx context.Context, errOut io.Writer, env *runEnv, flags *captureFlags, port uint16) error {
	iface := flags.live
	if strings.EqualFold(iface, "loopback") {
		name, err := capture.LoopbackInterface()
		if err != nil {
			return err
		}
		iface = name
	}

	rec, err := capture.StartRecorder(iface, flags.pcapFile, port)
	if err != nil {
		return err
	}
	env.logger.Info("Recording DoIP on %s port %d for %s", iface, port, flags.duration)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, flags.duration)
	defer cancel()

	bar := progress.NewBar(errOut, flags.duration, "Recording")
	if env.logger.GetLevel() == logging.LogLevelSilent {
		bar.Disable()
	}
	start := time.Now()
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bar.Update(time.Since(start), rec.PacketCount())
			}
		}
	}()

	runErr := rec.Run(ctx)
	close(done)
	bar.Finish(time.Since(start), rec.PacketCount())
	closeErr := rec.Close()
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return closeErr
	}
	env.logger.Info("Recorded %d packets to %s", rec.PacketCount(), flags.pcapFile)
	return nil
}

// responseGroup collects the responses of one service so they can be decoded
// as a batch.
type responseGroup struct {
	svc     *schema.Service
	indexes []int
	bufs    [][]byte
}

func decodeResponses(ctx context.Context, env *runEnv, f *schema.File, only *schema.Service, msgs []capture.Message, workers int) ([]report.Result, error) {
	slots := make([]*report.Result, len(msgs))
	var groups []*responseGroup
	byName := make(map[string]*responseGroup)
	unmatched := 0

	for i, msg := range msgs {
		if !msg.FromECU {
			continue
		}
		env.logger.LogHex(fmt.Sprintf("Response from 0x%04X", msg.SourceAddress), msg.Data)

		if nr, ok := capture.ParseNegativeResponse(msg.Data); ok {
			name, matched := negativeServiceName(f, only, msg.Data)
			if !matched {
				continue
			}
			r := report.Result{Service: name, Negative: nr.String()}.WithCapture(msg.Timestamp, endpoint(msg))
			slots[i] = &r
			continue
		}

		svc, ok := matchService(f, only, msg.Data)
		if !ok {
			unmatched++
			env.logger.Debug("No service matches response % X", msg.Data)
			continue
		}
		g := byName[svc.Name]
		if g == nil {
			g = &responseGroup{svc: svc}
			byName[svc.Name] = g
			groups = append(groups, g)
		}
		g.indexes = append(g.indexes, i)
		g.bufs = append(g.bufs, msg.Data)
	}

	for _, g := range groups {
		decoded, err := decode.Batch(ctx, *g.svc, g.bufs, workers)
		if err != nil {
			return nil, fmt.Errorf("decode %s responses: %w", g.svc.Name, err)
		}
		for j, values := range decoded {
			for _, v := range values {
				env.logger.LogDecode(g.svc.Name, v.Param, v.Text, v.Err)
			}
			msg := msgs[g.indexes[j]]
			r := report.NewResult(g.svc.Name, values).WithCapture(msg.Timestamp, endpoint(msg))
			slots[g.indexes[j]] = &r
		}
	}

	results := make([]report.Result, 0, len(msgs))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	env.logger.Info("Decoded %d responses from %d services (%d unmatched)", len(results), len(groups), unmatched)
	return results, nil
}

func matchService(f *schema.File, only *schema.Service, uds []byte) (*schema.Service, bool) {
	if only != nil {
		return only, capture.MatchResponse(*only, uds)
	}
	return capture.Find(f, uds)
}

// negativeServiceName labels a negative response. Several services usually
// share a request SID, so the SID is used unless only one service can match.
func negativeServiceName(f *schema.File, only *schema.Service, uds []byte) (string, bool) {
	if only != nil {
		_, ok := capture.MatchNegative(*only, uds)
		return only.Name, ok
	}
	var names []string
	for _, svc := range f.Services {
		if _, ok := capture.MatchNegative(svc, uds); ok {
			names = append(names, svc.Name)
		}
	}
	switch len(names) {
	case 0:
		return "", false
	case 1:
		return names[0], true
	default:
		return fmt.Sprintf("SID 0x%02X", uds[1]), true
	}
}

func endpoint(msg capture.Message) string {
	return fmt.Sprintf("%s:%d 0x%04X->0x%04X", msg.SrcIP, msg.SrcPort, msg.SourceAddress, msg.TargetAddress)
}
