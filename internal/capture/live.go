package capture

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65535

// Recorder writes DoIP traffic seen on a live interface to a pcap file so it
// can be decoded with ExtractDoIP afterwards.
type Recorder struct {
	handle *pcap.Handle
	writer *pcapgo.Writer
	file   *os.File

	mu    sync.Mutex
	count int
}

// StartRecorder opens iface for live capture of TCP traffic on port and
// creates outputFile. Call Run to start recording and Close when done.
func StartRecorder(iface, outputFile string, port uint16) (*Recorder, error) {
	if port == 0 {
		port = DoIPPort
	}
	handle, err := pcap.OpenLive(iface, snapLen, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("open live capture: %w", err)
	}
	if err := handle.SetBPFFilter(doipFilter(port)); err != nil {
		handle.Close()
		return nil, fmt.Errorf("set BPF filter: %w", err)
	}

	file, err := os.Create(outputFile)
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("create pcap file: %w", err)
	}
	writer := pcapgo.NewWriter(file)
	if err := writer.WriteFileHeader(snapLen, handle.LinkType()); err != nil {
		file.Close()
		handle.Close()
		return nil, fmt.Errorf("write pcap header: %w", err)
	}

	return &Recorder{handle: handle, writer: writer, file: file}, nil
}

// Run records packets until ctx is cancelled or the handle stops delivering.
func (r *Recorder) Run(ctx context.Context) error {
	source := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	packets := source.Packets()
	for {
		select {
		case <-ctx.Done():
			return nil
		case packet, ok := <-packets:
			if !ok {
				return nil
			}
			ci := packet.Metadata().CaptureInfo
			if err := r.writer.WritePacket(ci, packet.Data()); err != nil {
				return fmt.Errorf("write packet: %w", err)
			}
			r.mu.Lock()
			r.count++
			r.mu.Unlock()
		}
	}
}

// PacketCount returns the number of packets written so far.
func (r *Recorder) PacketCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close releases the capture handle and closes the pcap file.
func (r *Recorder) Close() error {
	r.handle.Close()
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close pcap file: %w", err)
	}
	return nil
}

// LoopbackInterface returns the name of the loopback device, for recording a
// tester and an ECU simulator running on the same host.
func LoopbackInterface() (string, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return "", fmt.Errorf("find network devices: %w", err)
	}
	names := make([]string, 0, len(devices))
	for _, device := range devices {
		for _, addr := range device.Addresses {
			if addr.IP.IsLoopback() {
				return device.Name, nil
			}
		}
		names = append(names, device.Name)
	}
	if name, ok := loopbackByName(names); ok {
		return name, nil
	}
	return "", fmt.Errorf("could not find loopback interface")
}

func loopbackByName(names []string) (string, bool) {
	for _, known := range []string{"lo0", "lo", "Loopback", "Loopback Pseudo-Interface 1"} {
		for _, name := range names {
			if name == known {
				return name, true
			}
		}
	}
	return "", false
}

func doipFilter(port uint16) string {
	return fmt.Sprintf("tcp port %d", port)
}
