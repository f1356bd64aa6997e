package plugin

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vearne/h2replay/frame"
	"github.com/vearne/h2replay/protocol"
)

func testRecord(uuid string, captureTime int64) *protocol.Record {
	f := frame.NewFrame(0, 0, frame.PingPayload{Value: 1})
	raw := make([]byte, f.EncodedLen())
	f.Encode(raw)
	return &protocol.Record{
		Meta: protocol.Meta{
			Version:     protocol.RecordVersion,
			UUID:        uuid,
			CaptureTime: captureTime,
			Direction:   protocol.DirIncoming,
			Src:         "192.168.0.7:51000",
			Dst:         "10.0.0.1:35001",
		},
		Kind:     "PING",
		Flags:    0,
		StreamID: 0,
		Length:   8,
		Raw:      raw,
	}
}

func writeRecordFile(t *testing.T, path string, compress bool, recs ...*protocol.Record) {
	codec := protocol.GetCodec(protocol.CodecSimpleName)
	var buf bytes.Buffer
	for _, rec := range recs {
		data, err := codec.Marshal(rec)
		assert.Nil(t, err)
		buf.Write(data)
		buf.WriteString("\n\n")
	}

	if compress {
		var gzBuf bytes.Buffer
		w := gzip.NewWriter(&gzBuf)
		_, err := w.Write(buf.Bytes())
		assert.Nil(t, err)
		assert.Nil(t, w.Close())
		assert.Nil(t, os.WriteFile(path, gzBuf.Bytes(), 0644))
		return
	}
	assert.Nil(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestReinforcedReader(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().UnixNano()
	writeRecordFile(t, filepath.Join(dir, "capture-a.log"), false,
		testRecord("u1", base), testRecord("u2", base+1000))
	writeRecordFile(t, filepath.Join(dir, "capture-b.log.gz"), true,
		testRecord("u3", base+2000))

	files, err := recordFiles(dir)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(files))

	r := NewReinforcedReader(files, protocol.GetCodec(protocol.CodecSimpleName))
	defer r.Close()

	var uuids []string
	for {
		rec, err := r.ReadRecord()
		if err == io.EOF {
			break
		}
		assert.Nil(t, err)
		uuids = append(uuids, rec.Meta.UUID)
	}
	assert.Equal(t, []string{"u1", "u2", "u3"}, uuids)

	// once exhausted the reader stays exhausted
	_, err = r.ReadRecord()
	assert.Equal(t, io.EOF, err)
}

func TestRecordFiles(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))

	touch := func(name string) {
		assert.Nil(t, os.WriteFile(filepath.Join(dir, name), []byte{}, 0644))
	}
	touch("capture.log")
	touch("capture-2026-01-02T15-04-05.000.log.gz")
	touch("other.log")
	touch(filepath.Join("sub", "capture-old.log"))

	files, err := recordFiles(dir)
	assert.Nil(t, err)
	assert.Equal(t, 3, len(files))
	for _, path := range files {
		assert.True(t, filepath.Base(path) != "other.log")
	}
}

func TestFileDirInputReplay(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().UnixNano()
	writeRecordFile(t, filepath.Join(dir, "capture.log"), false,
		testRecord("r1", base),
		testRecord("r2", base+int64(time.Millisecond)),
		testRecord("r3", base+2*int64(time.Millisecond)))

	in := NewFileDirInput(protocol.CodecSimpleName, dir, 10, 1)
	defer in.Close()

	var uuids []string
	for i := 0; i < 3; i++ {
		recCh := make(chan *protocol.Record, 1)
		go func() {
			rec, err := in.Read()
			assert.Nil(t, err)
			recCh <- rec
		}()
		select {
		case rec := <-recCh:
			uuids = append(uuids, rec.Meta.UUID)
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for replayed record")
		}
	}
	assert.Equal(t, []string{"r1", "r2", "r3"}, uuids)
}
