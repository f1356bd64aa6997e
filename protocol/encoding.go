package protocol

import "strings"

type Codec interface {
	// Marshal returns the storage format of r.
	Marshal(r *Record) ([]byte, error)
	// Unmarshal parses the storage format into r.
	Unmarshal(data []byte, r *Record) error
	// Name returns the name of the Codec implementation. It is the value
	// the --codec flag selects at startup. The result must be static; the
	// result cannot change between calls.
	Name() string
}

var registeredCodecs = make(map[string]Codec)

func RegisterCodec(codec Codec) {
	if codec == nil {
		panic("cannot register a nil Codec")
	}
	if codec.Name() == "" {
		panic("cannot register Codec with empty string result for Name()")
	}
	registeredCodecs[strings.ToLower(codec.Name())] = codec
}

// GetCodec looks a codec up by name. The name is expected to be
// lowercase.
func GetCodec(codecType string) Codec {
	return registeredCodecs[codecType]
}
