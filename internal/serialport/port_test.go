package serialport

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitAvailable(t *testing.T, p *Port, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return p.Available() >= n }, 2*time.Second, time.Millisecond)
}

func TestPort_ReadsBytes(t *testing.T) {
	r, w := io.Pipe()
	p := New(r, 0, nil)

	_, err := w.Write([]byte{0x01, 0x00, 0x00, 0x23})
	require.NoError(t, err)
	waitAvailable(t, p, 4)

	b, err := p.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b)
	assert.Equal(t, 3, p.Available())
	assert.False(t, p.LastRead().IsZero())

	require.NoError(t, p.Close())
}

func TestPort_EmptyRead(t *testing.T) {
	r, _ := io.Pipe()
	p := New(r, 0, nil)
	_, err := p.ReadByte()
	assert.ErrorIs(t, err, ErrEmpty)
	require.NoError(t, p.Close())
}

func TestPort_DropsBeyondLimit(t *testing.T) {
	r, w := io.Pipe()
	p := New(r, 4, nil)

	_, err := w.Write([]byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	waitAvailable(t, p, 4)
	require.Eventually(t, func() bool { return p.Dropped() == 2 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, 4, p.Available())

	require.NoError(t, p.Close())
}

func TestPort_ReadError(t *testing.T) {
	r, w := io.Pipe()
	p := New(r, 0, nil)

	boom := errors.New("unplugged")
	require.NoError(t, w.CloseWithError(boom))
	require.Eventually(t, func() bool { return p.Err() != nil }, 2*time.Second, time.Millisecond)
	assert.ErrorIs(t, p.Err(), boom)

	require.NoError(t, p.Close())
}
