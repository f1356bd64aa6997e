package protocol

import (
	"testing"
	"time"

	"github.com/vearne/h2replay/consts"
)

func TestCodecSimple_MarshalUnmarshal(t *testing.T) {
	// Test cases
	tests := []struct {
		name             string
		rec              *Record
		wantErrMarshal   bool
		wantErrUnmarshal bool
	}{
		{
			name: "data frame without decoded headers",
			rec: &Record{
				Meta: Meta{
					Version:     RecordVersion,
					UUID:        "test-uuid",
					CaptureTime: time.Now().UnixNano(),
					Direction:   DirIncoming,
					Src:         "10.0.0.2:51234",
					Dst:         "10.0.0.1:35001",
				},
				Kind:     "DATA",
				Flags:    0x1,
				StreamID: 5,
				Length:   4,
				Raw:      []byte{0x0, 0x0, 0x4, 0x0, 0x1, 0x0, 0x0, 0x0, 0x5, 'p', 'i', 'n', 'g'},
			},
			wantErrMarshal:   false,
			wantErrUnmarshal: false,
		},
		{
			name: "headers frame with decoded headers",
			rec: &Record{
				Meta: Meta{
					Version:     RecordVersion,
					UUID:        "test-uuid-2",
					CaptureTime: time.Now().UnixNano(),
					Direction:   DirOutgoing,
					Src:         "10.0.0.1:35001",
					Dst:         "10.0.0.2:51234",
				},
				Kind:     "HEADERS",
				Flags:    0x4,
				StreamID: 7,
				Length:   2,
				Raw:      []byte{0x0, 0x0, 0x2, 0x1, 0x4, 0x0, 0x0, 0x0, 0x7, 0x82, 0x86},
				Headers: map[string]string{
					":method": "POST",
					":path":   "/search.SearchService/Search",
				},
			},
			wantErrMarshal:   false,
			wantErrUnmarshal: false,
		},
	}

	codec := CodecSimple{}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := codec.Marshal(tt.rec)
			if (err != nil) != tt.wantErrMarshal {
				t.Errorf("Marshal() error = %v, wantErr %v", err, tt.wantErrMarshal)
				return
			}
			if tt.wantErrMarshal {
				return
			}

			got := &Record{}
			err = codec.Unmarshal(data, got)
			if (err != nil) != tt.wantErrUnmarshal {
				t.Errorf("Unmarshal() error = %v, wantErr %v", err, tt.wantErrUnmarshal)
				return
			}

			if tt.rec.Meta != got.Meta {
				t.Errorf("Unmarshal() meta got = %+v, want %+v", got.Meta, tt.rec.Meta)
			}
			if tt.rec.Kind != got.Kind ||
				tt.rec.Flags != got.Flags ||
				tt.rec.StreamID != got.StreamID ||
				tt.rec.Length != got.Length {
				t.Errorf("Unmarshal() got = %+v, want %+v", got, tt.rec)
			}
			if string(tt.rec.Raw) != string(got.Raw) {
				t.Errorf("Unmarshal() raw got = %x, want %x", got.Raw, tt.rec.Raw)
			}
			for k, v := range tt.rec.Headers {
				if got.Headers[k] != v {
					t.Errorf("Unmarshal() header %q got = %q, want %q", k, got.Headers[k], v)
				}
			}
		})
	}
}

func TestCodecSimple_UnmarshalMalformed(t *testing.T) {
	codec := CodecSimple{}
	cases := [][]byte{
		[]byte(""),
		[]byte("1 uuid\nDATA 0 1 0\n00\n"),
		[]byte("1 uuid 0 incoming a b 0\nDATA 0\n00\n"),
	}
	for _, data := range cases {
		if err := codec.Unmarshal(data, &Record{}); err != consts.ErrBadRecord {
			t.Errorf("Unmarshal(%q) error = %v, want %v", data, err, consts.ErrBadRecord)
		}
	}
}

func TestCodecJson_MarshalUnmarshal(t *testing.T) {
	codec := CodecJson{}
	rec := &Record{
		Meta: Meta{
			Version:     RecordVersion,
			UUID:        "test-uuid",
			CaptureTime: 12345,
			Direction:   DirIncoming,
			Src:         "127.0.0.1:4000",
			Dst:         "127.0.0.1:35001",
		},
		Kind:     "SETTINGS",
		StreamID: 0,
		Length:   6,
		Raw:      []byte{0x0, 0x0, 0x6, 0x4, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x3, 0x0, 0x0, 0x0, 0x64},
	}

	data, err := codec.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got := &Record{}
	if err = codec.Unmarshal(data, got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Meta != rec.Meta || got.Kind != rec.Kind || string(got.Raw) != string(rec.Raw) {
		t.Errorf("Unmarshal() got = %+v, want %+v", got, rec)
	}
}
