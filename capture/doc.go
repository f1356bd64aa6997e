/*
Package capture provides traffic sniffing using pcap, a pcap file or a raw socket.
it allows you to listen for traffic from any port (e.g. sniffing) because they operate on IP level.
Ports is TCP/IP feature, same as flow control, reliable transmission and etc.
This package only delivers raw packets: TCP reassembly and framing happen in the dissect package.
BPF filters can also be applied.

example:

listener, err := capture.NewListener(host, ports, opts)
if err != nil {
	// handle error
}
err = listener.Activate()
if err != nil {
	// handle it
}

if err := listener.Listen(context.Background(), handler); err != nil {
	 // handle error
}
// or
errCh := listener.ListenBackground(context.Background(), handler) // runs in the background
select {
case err := <- errCh:
	// handle error
case <-quit:
	//
case <- l.Reading: // if we have started reading
}

*/
package capture
