package capture

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-knxnet/internal/knxnet"
)

// HexBytes marshals to JSON as space-separated upper-case octets,
// the same form the capture format accepts.
type HexBytes []byte

// String returns e.g. "06 10 02 08".
func (h HexBytes) String() string {
	return fmt.Sprintf("% X", []byte(h))
}

// MarshalJSON encodes h as a hex string.
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON accepts any string ParseHex accepts.
func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := ParseHex(s)
	if err != nil {
		return err
	}
	*h = raw
	return nil
}

// Frame is one inspected datagram.
//
// Summarise fills the decode fields; the Inspector adds SessionID, Index,
// Time and Source. Channel, SeqNumber and Status are nil when the message
// kind does not carry them.
type Frame struct {
	SessionID string    `json:"session_id"`
	Index     uint64    `json:"index"`
	Time      time.Time `json:"time"`
	Source    string    `json:"source"`
	Raw       HexBytes  `json:"raw"`

	Service       knxnet.ServiceID `json:"service"`
	ServiceName   string           `json:"service_name"`
	PayloadLength int              `json:"payload_length"`

	// TotalLength is the total length the header declared, which can be
	// below the header size on malformed traffic.
	TotalLength int `json:"total_length"`

	Channel   *uint8 `json:"channel,omitempty"`
	SeqNumber *uint8 `json:"seq_number,omitempty"`
	Status    *uint8 `json:"status,omitempty"`

	ControlEndpoint string   `json:"control_endpoint,omitempty"`
	DataEndpoint    string   `json:"data_endpoint,omitempty"`
	CEMI            HexBytes `json:"cemi,omitempty"`

	Error string `json:"error,omitempty"`

	// Message is the decoded value, nil when Error is set.
	Message knxnet.Message `json:"-"`
}

// Valid reports whether the datagram decoded cleanly.
func (f Frame) Valid() bool {
	return f.Error == ""
}

// HasHeader reports whether the header parsed, i.e. Service is meaningful.
func (f Frame) HasHeader() bool {
	return f.ServiceName != ""
}

// Summarise decodes raw and describes it. It never fails: a datagram that
// does not decode yields a Frame with Error set and whatever header fields
// could be read. raw is copied.
func Summarise(raw []byte) Frame {
	f := Frame{Raw: append(HexBytes(nil), raw...)}

	p, err := knxnet.DecodePacket(raw)
	if err != nil {
		f.Error = err.Error()
		return f
	}
	f.Service = p.Service
	f.ServiceName = p.Service.String()
	f.TotalLength = int(p.DeclaredLength)
	f.PayloadLength = len(p.Payload)

	m, err := p.Message()
	if err != nil {
		f.Error = err.Error()
		return f
	}
	f.Message = m
	describe(&f, m)
	return f
}

func describe(f *Frame, m knxnet.Message) {
	switch m := m.(type) {
	case knxnet.ConnectionRequest:
		f.ControlEndpoint = m.Control.String()
		f.DataEndpoint = m.Tunnel.String()
	case knxnet.ConnectionResponse:
		f.Channel = ptr(m.Channel)
		f.Status = ptr(m.Status)
		f.DataEndpoint = m.HostInfo.String()
	case knxnet.ConnectionStateRequest:
		f.Channel = ptr(m.Channel)
		f.ControlEndpoint = m.HostInfo.String()
	case knxnet.ConnectionStateResponse:
		f.Channel = ptr(m.Channel)
		f.Status = ptr(m.Status)
	case knxnet.DisconnectRequest:
		f.Channel = ptr(m.Channel)
		f.ControlEndpoint = m.HostInfo.String()
	case knxnet.TunnelRequest:
		f.Channel = ptr(m.Channel)
		f.SeqNumber = ptr(m.SeqNumber)
		f.CEMI = HexBytes(m.Data)
	case knxnet.TunnelResponse:
		f.Channel = ptr(m.Channel)
		f.SeqNumber = ptr(m.SeqNumber)
		f.Status = ptr(m.Status)
	}
}

func ptr(v uint8) *uint8 {
	return &v
}

// String renders the frame on one line, e.g.
//
//	#3 stdin TUNNELLING_ACK ch=21 seq=9 status=0x00 len=10
func (f Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d", f.Index)
	if f.Source != "" {
		fmt.Fprintf(&b, " %s", f.Source)
	}
	if f.HasHeader() {
		fmt.Fprintf(&b, " %s", f.ServiceName)
	}
	if f.Channel != nil {
		fmt.Fprintf(&b, " ch=%d", *f.Channel)
	}
	if f.SeqNumber != nil {
		fmt.Fprintf(&b, " seq=%d", *f.SeqNumber)
	}
	if f.Status != nil {
		fmt.Fprintf(&b, " status=0x%02X", *f.Status)
	}
	if f.ControlEndpoint != "" {
		fmt.Fprintf(&b, " control=%s", f.ControlEndpoint)
	}
	if f.DataEndpoint != "" {
		fmt.Fprintf(&b, " data=%s", f.DataEndpoint)
	}
	if len(f.CEMI) > 0 {
		fmt.Fprintf(&b, " cemi=[%s]", f.CEMI)
	}
	if f.HasHeader() {
		fmt.Fprintf(&b, " len=%d", f.TotalLength)
	}
	if f.Error != "" {
		fmt.Fprintf(&b, " error=%q raw=[%s]", f.Error, f.Raw)
	}
	return b.String()
}
