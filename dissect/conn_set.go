package dissect

import (
	"strings"
	"sync"
)

type ConnSet struct {
	rw       sync.RWMutex
	internal map[DirectConn]int
}

func NewConnSet() *ConnSet {
	return &ConnSet{internal: make(map[DirectConn]int)}
}

func (set *ConnSet) Add(c DirectConn) {
	set.rw.Lock()
	defer set.rw.Unlock()

	set.internal[c] = 1
}

func (set *ConnSet) AddAll(cons []DirectConn) {
	set.rw.Lock()
	defer set.rw.Unlock()

	for _, conn := range cons {
		set.internal[conn] = 1
	}
}

func (set *ConnSet) Has(c DirectConn) bool {
	set.rw.RLock()
	defer set.rw.RUnlock()

	_, ok := set.internal[c]
	return ok
}

func (set *ConnSet) Remove(c DirectConn) {
	set.rw.Lock()
	defer set.rw.Unlock()

	delete(set.internal, c)
}

func (set *ConnSet) ToArray() []DirectConn {
	set.rw.RLock()
	defer set.rw.RUnlock()

	res := make([]DirectConn, len(set.internal))
	i := 0
	for key := range set.internal {
		res[i] = key
		i++
	}
	return res
}

func (set *ConnSet) Size() int {
	set.rw.RLock()
	defer set.rw.RUnlock()

	return len(set.internal)
}

func (set *ConnSet) String() string {
	strList := make([]string, 0)
	for _, conn := range set.ToArray() {
		strList = append(strList, conn.String())
	}
	return strings.Join(strList, ",")
}
