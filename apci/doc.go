// Package apci implements the transport layer of IEC 60870-5-104: the application
// protocol control information that frames every unit on a TCP stream.
//
// # Frames
//
// Every APDU starts with StartByte and a length octet followed by a four octet control
// field. The control field selects one of three formats:
//
//   - I frames carry an encoded unit together with a send and a receive sequence number.
//   - S frames acknowledge received I frames without carrying data.
//   - U frames carry the STARTDT, STOPDT and TESTFR activation and confirmation functions.
//
// Decode and FrameReader reject anything else as a framing error; such errors are fatal
// for the link.
//
// # Link supervision
//
// SeqController implements the numbering with modulus 32768, the send window k and the
// acknowledgment threshold w. Timers keeps the t1, t2 and t3 deadlines, and LinkStateMgr
// the inactive, active and closed states. These types hold no I/O; the cs104 package
// combines them into a connection.
package apci
