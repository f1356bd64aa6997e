package plugin

import (
	"os"

	"github.com/vearne/h2replay/protocol"
)

type StdOutput struct {
	codec protocol.Codec
}

func NewStdOutput(codec string) *StdOutput {
	var o StdOutput
	o.codec = protocol.GetCodec(codec)
	return &o
}

func (o *StdOutput) Close() error {
	return nil
}

func (o *StdOutput) String() string {
	return "Std Output"
}

func (o *StdOutput) Write(rec *protocol.Record) (err error) {
	var (
		data []byte
	)

	data, err = o.codec.Marshal(rec)
	if err != nil {
		return err
	}

	_, err = os.Stderr.Write(data)
	if err != nil {
		return err
	}
	// make it more readable
	_, err = os.Stderr.Write([]byte{'\n', '\n'})
	return err
}
