package wire

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipe(t *testing.T) (*Conn, *Conn) {
	t.Helper()

	a, b := net.Pipe()

	return NewConn(a), NewConn(b)
}

func TestRequestRoundTrip(t *testing.T) {
	client, server := pipe(t)
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})

	go func() {
		defer close(done)

		page, err := server.ReadRequest()
		assert.NoError(t, err)
		assert.Equal(t, 42, page)
	}()

	require.NoError(t, client.WriteRequest(42))
	<-done
}

func TestReplyRoundTrip(t *testing.T) {
	client, server := pipe(t)
	defer client.Close()
	defer server.Close()

	payload := []byte("0123456789abcdef")

	done := make(chan struct{})

	go func() {
		defer close(done)

		require.NoError(t, server.WriteReply(payload))
	}()

	got, err := client.ReadReply(len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	<-done
}

func TestReadRequestEOFOnCleanDisconnect(t *testing.T) {
	client, server := pipe(t)
	defer server.Close()

	require.NoError(t, client.Close())

	_, err := server.ReadRequest()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadRequestRejectsMalformedFrame(t *testing.T) {
	client, server := pipe(t)
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})

	go func() {
		defer close(done)

		_, err := server.ReadRequest()
		assert.Error(t, err)
	}()

	require.NoError(t, client.WriteReply([]byte("not-a-page-index")))
	<-done
}
