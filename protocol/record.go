package protocol

// RecordVersion is written into every record produced by this build.
const RecordVersion = 1

// Direction values carried in Meta.Direction. Incoming means the frame
// traveled toward the captured port, outgoing means it was sent by it.
const (
	DirIncoming = "incoming"
	DirOutgoing = "outgoing"
	DirUnknown  = "unknown"
)

// Record is one captured frame as it travels between plugins.
type Record struct {
	Meta     Meta   `json:"meta"`
	Kind     string `json:"kind"`
	Flags    uint8  `json:"flags"`
	StreamID uint32 `json:"streamID"`
	Length   uint32 `json:"length"`
	// Raw holds the complete frame as seen on the wire: the 9 header
	// bytes followed by the payload.
	Raw []byte `json:"raw"`
	// Headers holds decoded header fields of HEADERS, PUSH_PROMISE and
	// CONTINUATION frames when header decoding is enabled.
	Headers map[string]string `json:"headers,omitempty"`
}

type Meta struct {
	Version int    `json:"version"`
	UUID    string `json:"uuid"`
	// Nanosecond
	CaptureTime int64  `json:"captureTime"`
	Direction   string `json:"direction"`
	Src         string `json:"src"`
	Dst         string `json:"dst"`
}
