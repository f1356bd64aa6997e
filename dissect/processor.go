package dissect

import (
	"github.com/smallnest/gofsm"
	"github.com/vearne/h2replay/protocol"
	slog "github.com/vearne/simplelog"
)

// Options control how much work the dissector does per frame.
type Options struct {
	// TrackResponse also dissects the server -> client byte stream.
	TrackResponse bool
	// DecodeHeaders runs hpack over header block fragments and attaches
	// the fields to the emitted records.
	DecodeHeaders bool
}

// Processor owns every captured connection: it feeds TCP segments
// through the connection state machine, hands payload bytes to the
// right reassembly buffer and gathers the records the frame loops
// produce. ConnStates and ConnRepository are only touched from the
// ProcessTCPPkg goroutine.
type Processor struct {
	ConnRepository map[DirectConn]*H2Conn
	ConnStates     map[DirectConn]*TCPConnectionState
	InputChan      chan *NetPkg
	OutputChan     chan *protocol.Record

	opts    Options
	machine *fsm.StateMachine
	// connections that were already running when capture started
	notJoinable *ConnSet
}

func NewProcessor(input chan *NetPkg, opts Options) *Processor {
	var p Processor
	p.ConnRepository = make(map[DirectConn]*H2Conn, 100)
	p.ConnStates = make(map[DirectConn]*TCPConnectionState, 100)
	p.InputChan = input
	p.OutputChan = make(chan *protocol.Record, 100)
	p.opts = opts
	p.machine = InitTCPFSM(&TCPEventProcessor{})
	p.notJoinable = NewConnSet()
	slog.Info("create new Processor")
	return &p
}

func (p *Processor) ProcessTCPPkg() {
	for pkg := range p.InputChan {
		if pkg.Direction == DirUnknown {
			continue
		}
		// Connection state is keyed client -> server.
		key := pkg.DirectConn()
		if pkg.Direction == DirOutgoing {
			key = key.Reverse()
		}

		state, ok := p.ConnStates[key]
		if !ok {
			state = NewTCPConnection(key)
			p.ConnStates[key] = state
		}

		for _, event := range pkg.FSMEvents() {
			err := p.machine.Trigger(state.State, event, state, pkg, p)
			if err != nil {
				slog.Debug("fsm trigger, DirectConn:%v, state:%v, event:%v, error:%v",
					key.String(), state.State, event, err)
			}
		}

		if len(pkg.TCP.Payload) == 0 {
			continue
		}

		hc, ok := p.ConnRepository[key]
		if !ok {
			// No observed handshake: the connection predates the
			// capture and its hpack state can never be recovered.
			p.warnNotJoinable(key)
			continue
		}

		if pkg.Direction == DirIncoming {
			hc.Input.TCPBuffer.AddTCP(pkg.TCP)
		} else if p.opts.TrackResponse {
			hc.Output.TCPBuffer.AddTCP(pkg.TCP)
		}
	}
}

func (p *Processor) warnNotJoinable(dc DirectConn) {
	if p.notJoinable.Has(dc) {
		return
	}
	p.notJoinable.Add(dc)
	slog.Warn("connection %v was established before capture started, "+
		"frames are ignored until the client reconnects", dc.String())
}
