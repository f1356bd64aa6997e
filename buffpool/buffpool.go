package buffpool

import (
	"bytes"
	"sync"
)

var pool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

func GetBuff() *bytes.Buffer {
	return pool.Get().(*bytes.Buffer)
}

func PutBuff(buff *bytes.Buffer) {
	buff.Reset()
	pool.Put(buff)
}
