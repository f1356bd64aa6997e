package biz

import "github.com/vearne/h2replay/protocol"

// PluginReader is an interface for input plugins
type PluginReader interface {
	Read() (rec *protocol.Record, err error)
}

// PluginWriter is an interface for output plugins
type PluginWriter interface {
	Write(rec *protocol.Record) (err error)
}
