package protocol

import (
	"encoding/json"
)

const CodecJsonName = "json"

func init() {
	RegisterCodec(CodecJson{})
}

// CodecJson stores one record per line as a JSON object. Raw frame
// bytes become base64 per encoding/json's []byte handling.
type CodecJson struct{}

func (c CodecJson) Marshal(r *Record) ([]byte, error) {
	return json.Marshal(r)
}

func (c CodecJson) Unmarshal(data []byte, r *Record) error {
	return json.Unmarshal(data, r)
}

func (c CodecJson) Name() string {
	return CodecJsonName
}
