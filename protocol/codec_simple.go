package protocol

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vearne/h2replay/consts"
)

const CodecSimpleName = "simple"

func init() {
	RegisterCodec(CodecSimple{})
}

// CodecSimple lays a record out as plain text lines:
//
//	{version} {uuid} {captureTime} {direction} {src} {dst} {containHeaders}
//	{kind} {flags} {streamID} {length}
//	{raw frame bytes, hex}
//	{decoded headers as JSON}    <- only when containHeaders is 1
//
// Storage layers separate consecutive records with a blank line.
type CodecSimple struct{}

func (c CodecSimple) Marshal(r *Record) ([]byte, error) {
	var buff bytes.Buffer
	containHeaders := len(r.Headers) > 0
	// line 1
	// {version} {uuid} {captureTime} {direction} {src} {dst} {containHeaders}
	fmt.Fprintf(&buff, "%d %s %d %s %s %s %d\n",
		r.Meta.Version, r.Meta.UUID, r.Meta.CaptureTime,
		r.Meta.Direction, r.Meta.Src, r.Meta.Dst, bool2Int(containHeaders))
	// line 2
	// {kind} {flags} {streamID} {length}
	fmt.Fprintf(&buff, "%s %d %d %d\n", r.Kind, r.Flags, r.StreamID, r.Length)
	// line 3
	// raw frame bytes
	buff.WriteString(hex.EncodeToString(r.Raw))
	// line 4
	// decoded headers (optional)
	if containHeaders {
		buff.WriteByte('\n')
		data, err := json.Marshal(r.Headers)
		if err != nil {
			return nil, err
		}
		buff.Write(data)
	}
	// no trailing newline: storage layers add the record separator
	return buff.Bytes(), nil
}

func (c CodecSimple) Unmarshal(data []byte, r *Record) error {
	lines := bytes.Split(bytes.TrimRight(data, "\n"), []byte{'\n'})
	if len(lines) < 3 {
		return consts.ErrBadRecord
	}

	// line 1
	fields := strings.Split(string(lines[0]), " ")
	if len(fields) != 7 {
		return consts.ErrBadRecord
	}
	var err error
	r.Meta.Version, err = strconv.Atoi(fields[0])
	if err != nil {
		return err
	}
	r.Meta.UUID = fields[1]
	r.Meta.CaptureTime, err = strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return err
	}
	r.Meta.Direction = fields[3]
	r.Meta.Src = fields[4]
	r.Meta.Dst = fields[5]
	containHeaders, err := strconv.Atoi(fields[6])
	if err != nil {
		return err
	}

	// line 2
	fields = strings.Split(string(lines[1]), " ")
	if len(fields) != 4 {
		return consts.ErrBadRecord
	}
	r.Kind = fields[0]
	flags, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return err
	}
	r.Flags = uint8(flags)
	streamID, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return err
	}
	r.StreamID = uint32(streamID)
	length, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return err
	}
	r.Length = uint32(length)

	// line 3
	r.Raw, err = hex.DecodeString(string(lines[2]))
	if err != nil {
		return err
	}

	// line 4
	if int2bool(containHeaders) {
		if len(lines) < 4 {
			return consts.ErrBadRecord
		}
		r.Headers = make(map[string]string)
		if err = json.Unmarshal(lines[3], &r.Headers); err != nil {
			return err
		}
	}
	return nil
}

func (c CodecSimple) Name() string {
	return CodecSimpleName
}

func bool2Int(b bool) int {
	if b {
		return 1
	}
	return 0
}

func int2bool(v int) bool {
	return v > 0
}
