package capture

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// pcapng section header block type, as it appears at the start of the file.
var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// ExtractDoIP reads a pcap or pcapng file and returns every DoIP diagnostic
// message carried over TCP on port. TCP payloads are reassembled per
// direction by sequence number: retransmitted bytes are dropped, and a gap
// (a segment missing from the capture) discards the partial frame and
// resynchronises on the next DoIP header. Out-of-order segments are not
// buffered; one arriving late counts as a retransmit.
func ExtractDoIP(path string, port uint16) ([]Message, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	defer file.Close()
	return ReadDoIP(file, port)
}

// ReadDoIP is ExtractDoIP over an already opened capture stream.
func ReadDoIP(r io.Reader, port uint16) ([]Message, error) {
	if port == 0 {
		port = DoIPPort
	}
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}

	var source *gopacket.PacketSource
	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("open pcapng: %w", err)
		}
		source = gopacket.NewPacketSource(ng, ng.LinkType())
	} else {
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open pcap: %w", err)
		}
		source = gopacket.NewPacketSource(pr, pr.LinkType())
	}
	return extractDoIP(source, port), nil
}

// tcpStream is the reassembly state of one direction of a connection.
type tcpStream struct {
	buf    []byte
	next   uint32 // sequence number of the next expected byte
	synced bool
}

// accept returns the part of a segment not seen before. Sequence numbers are
// compared modulo 2^32.
func (s *tcpStream) accept(seq uint32, payload []byte) []byte {
	end := seq + uint32(len(payload))
	if !s.synced {
		s.synced = true
		s.next = end
		return payload
	}
	if int32(end-s.next) <= 0 {
		return nil
	}
	if d := int32(s.next - seq); d > 0 {
		payload = payload[d:]
	} else if d < 0 {
		s.buf = s.buf[:0]
	}
	s.next = end
	return payload
}

func extractDoIP(source *gopacket.PacketSource, port uint16) []Message {
	var msgs []Message
	streams := make(map[string]*tcpStream)

	for packet := range source.Packets() {
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, _ := tcpLayer.(*layers.TCP)
		if uint16(tcp.SrcPort) != port && uint16(tcp.DstPort) != port {
			continue
		}
		key := streamKey(packet.NetworkLayer(), tcp)
		if tcp.SYN {
			delete(streams, key)
		}
		if len(tcp.Payload) == 0 {
			continue
		}
		st := streams[key]
		if st == nil {
			st = &tcpStream{}
			streams[key] = st
		}
		data := st.accept(tcp.Seq, tcp.Payload)
		if len(data) == 0 {
			continue
		}

		base := packetMeta(packet)
		base.SrcPort = uint16(tcp.SrcPort)
		base.DstPort = uint16(tcp.DstPort)
		base.FromECU = base.SrcPort == port

		parsed, remaining := splitDoIPFrames(append(st.buf, data...), base)
		msgs = append(msgs, parsed...)
		st.buf = remaining
	}
	return msgs
}

func packetMeta(packet gopacket.Packet) Message {
	var m Message
	if md := packet.Metadata(); md != nil {
		m.Timestamp = md.Timestamp
	}
	if netLayer := packet.NetworkLayer(); netLayer != nil {
		src, dst := netLayer.NetworkFlow().Endpoints()
		m.SrcIP = src.String()
		m.DstIP = dst.String()
	}
	return m
}

func streamKey(netLayer gopacket.NetworkLayer, tcp *layers.TCP) string {
	if netLayer != nil {
		src, dst := netLayer.NetworkFlow().Endpoints()
		return fmt.Sprintf("%s:%d->%s:%d", src, tcp.SrcPort, dst, tcp.DstPort)
	}
	return fmt.Sprintf("unknown:%d->unknown:%d", tcp.SrcPort, tcp.DstPort)
}
