// Package cs104 implements IEC 60870-5-104 connections and a server accepting them.
//
// A Connection wraps an established TCP connection. It runs one reader goroutine,
// which decodes frames, maintains the sequence numbers and calls the Handler, and one
// timer goroutine, which drives t1, t2 and t3. Every frame write is serialized by the
// connection, so Send and the command helpers may be called from any goroutine.
//
// Client side:
//
//	cfg, _ := cs104.NewConnectionConfig(cs104.WithWaitConfirmation(5 * time.Second))
//	conn, err := cs104.Dial(ctx, "10.0.0.5:2404", cfg, cs104.HandlerFuncs{
//	    Unit: func(c *cs104.Connection, u *asdu.Unit) { ... },
//	})
//	if err != nil { ... }
//	defer conn.Close()
//
//	if err := conn.StartDataTransfer(ctx); err != nil { ... }
//	err = conn.Interrogation(ctx, 1, asdu.QOIStation)
//
// Server side:
//
//	cfg, _ := cs104.NewServerConfig(":2404", cs104.WithMaxConnections(4))
//	srv, _ := cs104.NewServer(cfg, cs104.ServerHandlerFuncs{
//	    ConnectionAccepted: func(c *cs104.Connection) cs104.Handler { return station },
//	})
//	err := srv.ListenAndServe(ctx)
//
// Handlers run on the reader goroutine of their connection. A handler that calls Send
// under WindowBlock while the send window is full waits until t1 closes the connection,
// because the acknowledgment it waits for is read by the same goroutine. Use
// WindowFailFast, a context with deadline, or the buffered event queue for such flows.
package cs104
