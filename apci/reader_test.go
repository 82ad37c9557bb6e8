package apci

import (
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeAsync(conn net.Conn, chunks ...[]byte) {
	go func() {
		for _, c := range chunks {
			if _, err := conn.Write(c); err != nil {
				return
			}
		}
	}()
}

func TestFrameReader_ReadFrame(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	iframe, _ := NewIFrame(5, 9, []byte{0x01, 0x01, 0x03, 0x00, 0x01, 0x00, 0x64, 0x00, 0x00, 0x01})
	sframe, _ := NewSFrame(6)
	uframe, _ := NewUFrame(StartDTAct)

	writeAsync(client, iframe.ToBytes(), sframe.ToBytes(), uframe.ToBytes())

	fr := NewFrameReader(time.Second)
	for _, expected := range []Frame{iframe, sframe, uframe} {
		f, raw, err := fr.ReadFrame(server)
		require.NoError(err)
		require.Equal(expected, f)
		require.Equal(expected.ToBytes(), raw)
	}
}

func TestFrameReader_Fragmented(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	writeAsync(client, []byte{0x68}, []byte{0x04, 0x43}, []byte{0x00, 0x00}, []byte{0x00})

	f, _, err := NewFrameReader(time.Second).ReadFrame(server)
	require.NoError(err)
	require.Equal(TestFRAct, f.Function())
}

func TestFrameReader_Errors(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		desc     string
		input    []byte
		expected error
	}{
		{"bad start byte", []byte{0x10, 0x04, 0x07, 0x00, 0x00, 0x00}, ErrBadStartByte},
		{"bad length", []byte{0x68, 0x02, 0x07, 0x00}, ErrBadLength},
		{"bad control", []byte{0x68, 0x04, 0x0F, 0x00, 0x00, 0x00}, ErrBadControl},
	}

	for _, tt := range tests {
		t.Logf("Test #%s", tt.desc)
		client, server := net.Pipe()
		writeAsync(client, tt.input)

		_, raw, err := NewFrameReader(time.Second).ReadFrame(server)
		require.ErrorIs(err, tt.expected)
		require.NotEmpty(raw)

		client.Close()
		server.Close()
	}
}

func TestFrameReader_FragmentTimeout(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	// start byte and length, then silence
	writeAsync(client, []byte{0x68, 0x04, 0x01})

	_, _, err := NewFrameReader(50*time.Millisecond).ReadFrame(server)
	require.Error(err)
	require.True(errors.Is(err, os.ErrDeadlineExceeded))
}

func TestFrameReader_EOF(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer server.Close()
	client.Close()

	_, _, err := NewFrameReader(time.Second).ReadFrame(server)
	require.ErrorIs(err, io.EOF)
}
