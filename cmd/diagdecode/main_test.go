package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"

	"github.com/tonylturner/diagdecode/internal/report"
	"github.com/tonylturner/diagdecode/internal/schema"
)

const testSchema = `
services:
  - name: Engine Status
    payload: "2101"
    output_params:
      - name: Coolant Temperature
        unit: degC
        start_bit: 16
        length_bits: 8
        byte_order: big_endian
        data_format: {type: linear, multiplier: 1, offset: -40}
      - name: MIL
        unit: ""
        start_bit: 24
        length_bits: 1
        byte_order: big_endian
        data_format: {type: bool, pos_name: "On", neg_name: "Off"}
      - name: Raw
        unit: ""
        start_bit: 32
        length_bits: 16
        byte_order: big_endian
        data_format: hex_dump
  - name: Reset
    payload: "1101"
`

func writeTestSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ecu.yaml")
	if err := os.WriteFile(path, []byte(testSchema), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRequiredFlagsErrors(t *testing.T) {
	tests := []struct {
		name    string
		cmd     func(*globalFlags) *cobra.Command
		args    []string
		wantErr string
	}{
		{
			name:    "decode missing service",
			cmd:     newDecodeCmd,
			args:    []string{"--hex", "6101"},
			wantErr: "required flag --service not set",
		},
		{
			name:    "decode missing hex",
			cmd:     newDecodeCmd,
			args:    []string{"--service", "x"},
			wantErr: "required flag --hex not set",
		},
		{
			name:    "capture missing pcap",
			cmd:     newCaptureCmd,
			args:    nil,
			wantErr: "required flag --pcap not set",
		},
		{
			name:    "validate missing schema",
			cmd:     newValidateCmd,
			args:    nil,
			wantErr: "required flag --schema not set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd(&globalFlags{})
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "diagdecode version dev") {
		t.Errorf("output = %q", out)
	}
}

func TestDecodeCmd(t *testing.T) {
	schemaPath := writeTestSchema(t)

	t.Run("text", func(t *testing.T) {
		out, err := runCLI(t, "decode", "--schema", schemaPath, "--service", "engine status", "--hex", "61 01 7B 80 DE AD")
		if err != nil {
			t.Fatalf("decode error = %v", err)
		}
		for _, want := range []string{"Engine Status", "83 degC", "On", "[DE, AD]"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("csv", func(t *testing.T) {
		out, err := runCLI(t, "decode", "--schema", schemaPath, "--service", "Engine Status", "--format", "csv", "61017B80DEAD")
		if err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if !strings.Contains(out, "Engine Status,,Coolant Temperature,83 degC,83,degC,false,") {
			t.Errorf("csv output:\n%s", out)
		}
		if !strings.Contains(out, "Engine Status,,Raw,\"[DE, AD]\",,,false,") {
			t.Errorf("hex dump row should carry no number:\n%s", out)
		}
	})

	t.Run("short response reported inline", func(t *testing.T) {
		out, err := runCLI(t, "decode", "--schema", schemaPath, "--service", "Engine Status", "--hex", "61 01 7B")
		if err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if !strings.Contains(out, "83 degC") || !strings.Contains(out, "bit range error") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("strict fails on field error", func(t *testing.T) {
		_, err := runCLI(t, "decode", "--schema", schemaPath, "--service", "Engine Status", "--hex", "61 01 7B", "--strict")
		if err == nil || !strings.Contains(err.Error(), "outside the response payload") {
			t.Errorf("error = %v", err)
		}
		if err != nil && !strings.Contains(err.Error(), "2 of 3 parameters failed") {
			t.Errorf("error should count failed parameters: %v", err)
		}
	})

	t.Run("strict passes when all fields decode", func(t *testing.T) {
		if _, err := runCLI(t, "decode", "--schema", schemaPath, "--service", "Engine Status", "--hex", "61017B80DEAD", "--strict"); err != nil {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("json stays parseable with verbose logging", func(t *testing.T) {
		out, err := runCLI(t, "--log-level", "verbose", "decode", "--schema", schemaPath, "--service", "Engine Status", "--format", "json", "--hex", "61017B80DEAD")
		if err != nil {
			t.Fatalf("decode error = %v", err)
		}
		var rep report.Report
		if err := json.Unmarshal([]byte(out), &rep); err != nil {
			t.Fatalf("stdout is not a JSON report: %v\n%s", err, out)
		}
		if len(rep.Results) != 1 || len(rep.Results[0].Fields) != 3 {
			t.Errorf("report = %+v", rep)
		}
	})

	t.Run("csv has no log lines with verbose logging", func(t *testing.T) {
		out, err := runCLI(t, "--log-level", "debug", "decode", "--schema", schemaPath, "--service", "Engine Status", "--format", "csv", "--hex", "61017B80DEAD")
		if err != nil {
			t.Fatalf("decode error = %v", err)
		}
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			if !strings.HasPrefix(line, "service,") && !strings.HasPrefix(line, "Engine Status,") {
				t.Errorf("unexpected stdout line %q", line)
			}
		}
	})

	t.Run("out writes json copy", func(t *testing.T) {
		outPath := filepath.Join(t.TempDir(), "report.json")
		out, err := runCLI(t, "decode", "--schema", schemaPath, "--service", "Engine Status", "--hex", "61017B80DEAD", "--out", outPath)
		if err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if !strings.Contains(out, "83 degC") {
			t.Errorf("text report missing from stdout:\n%s", out)
		}
		data, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatalf("--out file not written: %v", err)
		}
		var rep report.Report
		if err := json.Unmarshal(data, &rep); err != nil {
			t.Fatalf("--out file is not JSON: %v", err)
		}
		if rep.Source != "hex" || rep.Results[0].Service != "Engine Status" {
			t.Errorf("report = %+v", rep)
		}
	})

	t.Run("unknown service", func(t *testing.T) {
		_, err := runCLI(t, "decode", "--schema", schemaPath, "--service", "Nope", "--hex", "61")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("bad hex", func(t *testing.T) {
		_, err := runCLI(t, "decode", "--schema", schemaPath, "--service", "Reset", "--hex", "6Z")
		if err == nil || !strings.Contains(err.Error(), "--hex") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := runCLI(t, "decode", "--schema", schemaPath, "--service", "Reset", "--hex", "51", "--format", "xml")
		if err == nil || !strings.Contains(err.Error(), "--format") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestDecodeCmd_SchemaFromConfig(t *testing.T) {
	schemaPath := writeTestSchema(t)
	cfgPath := filepath.Join(t.TempDir(), "diagdecode.yaml")
	cfg := "schema_path: " + schemaPath + "\noutput:\n  format: json\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "--config", cfgPath, "decode", "--service", "Engine Status", "--hex", "61017B00")
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !strings.Contains(out, `"service": "Engine Status"`) || !strings.Contains(out, `"text": "Off"`) {
		t.Errorf("json output:\n%s", out)
	}
}

func TestValidateCmd(t *testing.T) {
	out, err := runCLI(t, "validate", "--schema", writeTestSchema(t))
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "OK (2 services, 3 parameters)") {
		t.Errorf("output = %q", out)
	}

	out, err = runCLI(t, "validate", filepath.Join("..", "..", "examples", "ecu.yaml"))
	if err != nil {
		t.Fatalf("example schema invalid: %v", err)
	}
	if !strings.Contains(out, "OK (4 services") {
		t.Errorf("output = %q", out)
	}

	normalized := filepath.Join(t.TempDir(), "clean.yaml")
	if _, err := runCLI(t, "validate", "--schema", writeTestSchema(t), "--normalize", normalized); err != nil {
		t.Fatalf("validate --normalize error = %v", err)
	}
	f, err := schema.Load(normalized)
	if err != nil {
		t.Fatalf("normalized schema does not load: %v", err)
	}
	if len(f.Services) != 2 || f.Services[0].Payload.String() != "2101" {
		t.Errorf("normalized services = %+v", f.Services)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("services:\n  - name: A\n  - name: a\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = runCLI(t, "validate", "--schema", bad)
	if err == nil || !strings.Contains(err.Error(), "Schema error in") {
		t.Errorf("error = %v", err)
	}
}

func TestServicesCmd(t *testing.T) {
	out, err := runCLI(t, "services", "--schema", writeTestSchema(t), "--params")
	if err != nil {
		t.Fatalf("services error = %v", err)
	}
	for _, want := range []string{"SERVICE", "Engine Status", "2101", "Reset", "Coolant Temperature", "linear", "degC"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigInitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagdecode.yaml")
	if _, err := runCLI(t, "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := runCLI(t, "--config", path, "config", "init"); err == nil {
		t.Error("expected error when config exists")
	}
	if _, err := runCLI(t, "--config", path, "config", "init", "--force"); err != nil {
		t.Errorf("config init --force error = %v", err)
	}
}

func doipMessage(sa, ta uint16, uds []byte) []byte {
	frame := []byte{0x02, 0xFD, 0x80, 0x01}
	frame = binary.BigEndian.AppendUint32(frame, uint32(4+len(uds)))
	frame = binary.BigEndian.AppendUint16(frame, sa)
	frame = binary.BigEndian.AppendUint16(frame, ta)
	return append(frame, uds...)
}

func writeDoIPPCAP(t *testing.T, frames [][]byte, fromECU []bool) string {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		t.Fatal(err)
	}
	seq := map[bool]uint32{false: 1, true: 1}
	for i, frame := range frames {
		srcPort, dstPort := layers.TCPPort(50000), layers.TCPPort(13400)
		srcIP, dstIP := net.IP{192, 168, 0, 10}, net.IP{192, 168, 0, 20}
		if fromECU[i] {
			srcPort, dstPort = dstPort, srcPort
			srcIP, dstIP = dstIP, srcIP
		}
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{Version: 4, TTL: 64, SrcIP: srcIP, DstIP: dstIP, Protocol: layers.IPProtocolTCP}
		tcp := &layers.TCP{SrcPort: srcPort, DstPort: dstPort, Seq: seq[fromECU[i]], ACK: true, PSH: true, Window: 1024}
		seq[fromECU[i]] += uint32(len(frame))
		tcp.SetNetworkLayerForChecksum(ip)
		pkt := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		if err := gopacket.SerializeLayers(pkt, opts, eth, ip, tcp, gopacket.Payload(frame)); err != nil {
			t.Fatal(err)
		}
		data := pkt.Bytes()
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1700000000, int64(i)*int64(time.Millisecond)),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "session.pcap")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCaptureCmd(t *testing.T) {
	schemaPath := writeTestSchema(t)
	pcapPath := writeDoIPPCAP(t,
		[][]byte{
			doipMessage(0x0E00, 0x1001, []byte{0x21, 0x01}),
			doipMessage(0x1001, 0x0E00, []byte{0x61, 0x01, 0x7B, 0x80, 0xDE, 0xAD}),
			doipMessage(0x0E00, 0x1001, []byte{0x11, 0x01}),
			doipMessage(0x1001, 0x0E00, []byte{0x7F, 0x11, 0x22}),
			doipMessage(0x1001, 0x0E00, []byte{0x62, 0xF1, 0x90}),
			doipMessage(0x1001, 0x0E00, []byte{0x61, 0x01, 0x28, 0x00, 0x00, 0x01}),
		},
		[]bool{false, true, false, true, true, true},
	)

	t.Run("text", func(t *testing.T) {
		out, err := runCLI(t, "capture", "--schema", schemaPath, "--pcap", pcapPath, "--workers", "2")
		if err != nil {
			t.Fatalf("capture error = %v", err)
		}
		for _, want := range []string{"83 degC", "0 degC", "conditionsNotCorrect", "0x1001->0x0E00"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if strings.Index(out, "83 degC") > strings.Index(out, "conditionsNotCorrect") {
			t.Error("results should keep capture order")
		}
	})

	t.Run("service filter csv", func(t *testing.T) {
		out, err := runCLI(t, "capture", "--schema", schemaPath, "--service", "Engine Status", "--format", "csv", pcapPath)
		if err != nil {
			t.Fatalf("capture error = %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		// header plus three fields for each of two responses
		if len(lines) != 7 {
			t.Errorf("csv lines = %d, want 7:\n%s", len(lines), out)
		}
		if strings.Contains(out, "conditionsNotCorrect") {
			t.Error("filtered run reported another service's negative response")
		}
	})

	t.Run("wrong port finds nothing", func(t *testing.T) {
		out, err := runCLI(t, "capture", "--schema", schemaPath, "--pcap", pcapPath, "--port", "13401", "--format", "csv")
		if err != nil {
			t.Fatalf("capture error = %v", err)
		}
		if strings.Count(strings.TrimSpace(out), "\n") != 0 {
			t.Errorf("expected header only:\n%s", out)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := runCLI(t, "capture", "--schema", schemaPath, "--pcap", filepath.Join(t.TempDir(), "none.pcap"))
		if err == nil || !strings.Contains(err.Error(), "Capture file does not exist") {
			t.Errorf("error = %v", err)
		}
	})
}
