package plugin

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vearne/gtimer"
	"github.com/vearne/h2replay/buffpool"
	"github.com/vearne/h2replay/protocol"
	"github.com/vearne/h2replay/util"
	slog "github.com/vearne/simplelog"
)

// FileDirInput replays the records below a directory in capture-time
// order. A priority-queue timer holds readDepth records at a time, so
// records interleaved across rotated files still come out ordered.
type FileDirInput struct {
	codec     protocol.Codec
	recChan   chan *protocol.Record
	quit      chan struct{}
	timer     *gtimer.SuperTimer
	path      string
	readDepth int
	// replay runs this many times faster than the capture did
	speed float64
	// smallest timestamp
	benchmarkTimestamp int64
	reader             *ReinforcedReader
}

func NewFileDirInput(codec string, path string, readDepth int, speed float64) *FileDirInput {
	var in FileDirInput
	in.codec = protocol.GetCodec(codec)
	in.recChan = make(chan *protocol.Record, 100)
	in.quit = make(chan struct{})
	in.timer = gtimer.NewSuperTimer(3)
	in.path = path
	in.readDepth = readDepth
	if speed <= 0 {
		speed = 1
	}
	in.speed = speed
	in.benchmarkTimestamp = 0

	in.init()
	return &in
}

func (in *FileDirInput) init() {
	// scan directory
	files, err := recordFiles(in.path)
	if err != nil {
		slog.Fatal("FileDirInput-scan directory:%v", err)
	}
	in.reader = NewReinforcedReader(files, in.codec)
	recList := make([]*protocol.Record, 0, in.readDepth)

	slog.Debug("readDepth:%v", in.readDepth)
	for i := 0; i < in.readDepth; i++ {
		rec, err := in.reader.ReadRecord()
		if err != nil {
			if err == io.EOF {
				break
			} else {
				slog.Fatal("ReinforcedReader read:%v", err)
			}
		}
		recList = append(recList, rec)
		if i == 0 {
			in.benchmarkTimestamp = rec.Meta.CaptureTime
		} else if rec.Meta.CaptureTime < in.benchmarkTimestamp {
			in.benchmarkTimestamp = rec.Meta.CaptureTime
		}
	}
	slog.Info("benchmarkTimestamp:%v, len(recList):%v",
		in.benchmarkTimestamp, len(recList))
	for i := 0; i < len(recList); i++ {
		addTaskToTimer(in, recList[i])
	}
}

func addTaskToTimer(in *FileDirInput, rec *protocol.Record) {
	d := time.Duration(float64(rec.Meta.CaptureTime-in.benchmarkTimestamp) / in.speed)
	slog.Debug("delay:%v", time.Now().Add(d))
	task := gtimer.NewDelayedItemFunc(
		time.Now().Add(d),
		rec,
		func(t time.Time, param interface{}) {
			record := param.(*protocol.Record)
			in.recChan <- record
			// Keep the total number of records in the priority queue constant
			newRecord, err := in.reader.ReadRecord()
			if err != nil {
				if err == io.EOF {
					slog.Debug("All files are read")
				} else {
					slog.Error("ReinforcedReader read:%v", err)
				}
				return
			}
			addTaskToTimer(in, newRecord)
		},
	)
	in.timer.Add(task)
}

// Read reads a record from this plugin
func (in *FileDirInput) Read() (*protocol.Record, error) {
	select {
	case <-in.quit:
		return nil, ErrorStopped
	case rec := <-in.recChan:
		return rec, nil
	}
}

func (in *FileDirInput) String() string {
	return "FileDir Input: " + in.path
}

func (in *FileDirInput) Close() error {
	close(in.quit)
	return in.reader.Close()
}

// ReinforcedReader reads records from several files as if they were
// one. Records are separated by a blank line; files ending in .gz are
// decompressed on the fly.
type ReinforcedReader struct {
	sync.Mutex
	codec     protocol.Codec
	file      *os.File
	reader    *bufio.Reader
	filepaths []string
	index     int
	EOF       bool
}

func NewReinforcedReader(filepaths []string, codec protocol.Codec) *ReinforcedReader {
	var r ReinforcedReader
	r.index = 0
	r.codec = codec

	sort.Strings(filepaths)
	r.filepaths = filepaths

	slog.Debug("create ReinforcedReader, files:%v", filepaths)
	if len(r.filepaths) <= 0 {
		slog.Fatal("ReinforcedReader:no file to read")
	}

	var err error
	r.file, r.reader, err = createReader(r.filepaths[0])
	if err != nil {
		slog.Fatal("read file [%v]:%v", r.filepaths[0], err)
	}
	return &r
}

func createReader(path string) (file *os.File, reader *bufio.Reader, err error) {
	file, err = os.Open(path)
	if err != nil {
		return
	}
	// gzip file
	if strings.HasSuffix(path, ".gz") {
		var gz *gzip.Reader
		gz, err = gzip.NewReader(file)
		if err != nil {
			return
		}
		return file, bufio.NewReader(gz), nil
	}
	return file, bufio.NewReader(file), nil
}

func (r *ReinforcedReader) Close() error {
	return r.file.Close()
}

func (r *ReinforcedReader) NextFile() error {
	if r.index+1 < len(r.filepaths) {
		// close old file
		err := r.file.Close()
		if err != nil {
			return err
		}
		r.index++
		slog.Info("switch to file:%v", r.filepaths[r.index])
		r.file, r.reader, err = createReader(r.filepaths[r.index])
		if err != nil {
			return err
		}
		return nil
	}
	r.EOF = true
	slog.Info("All files are read")
	return io.EOF
}

// ReadRecord accumulates lines until the blank separator line, then
// unmarshals them as one record.
func (r *ReinforcedReader) ReadRecord() (*protocol.Record, error) {
	r.Lock()
	defer r.Unlock()

	if r.EOF {
		return nil, io.EOF
	}

	var line []byte
	var err error

	bf := buffpool.GetBuff()
	defer buffpool.PutBuff(bf)

	first := true
	for first || len(line) > 1 {
		// line contains the delimiter
		line, err = r.reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				return nil, err
			}
			// switch to the next file
			if err = r.NextFile(); err != nil {
				return nil, err
			}
			first = true
			continue
		}

		if len(line) > 1 {
			first = false
			bf.Write(line)
		}
	}

	data := bf.Bytes()
	// strip the delimiter of the last line
	data = data[0 : len(data)-1]

	var rec protocol.Record
	err = r.codec.Unmarshal(data, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// recordFiles collects capture*.log and capture*.log.gz below dirPath,
// rotated files included.
func recordFiles(dirPath string) ([]string, error) {
	set := util.NewStringSet()
	err := util.ListFilesRecursively(dirPath, set, ".log", ".log.gz")
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, set.Size())
	for _, path := range set.ToArray() {
		if strings.HasPrefix(filepath.Base(path), "capture") {
			files = append(files, path)
		}
	}
	return files, nil
}
