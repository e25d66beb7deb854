package udp

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSpectrum is a SpectrumProvider with a fixed 8-point spectrum.
type fakeSpectrum struct {
	mags []float64
	rate float64
	size int
}

func (f *fakeSpectrum) MagnitudesInto(dest []float64) error {
	if len(dest) != len(f.mags) {
		return fmt.Errorf("dest length %d, want %d", len(dest), len(f.mags))
	}
	copy(dest, f.mags)
	return nil
}

func (f *fakeSpectrum) FrequencyForBin(bin int) float64 {
	return float64(bin) * f.rate / float64(f.size)
}

func (f *fakeSpectrum) FFTSize() int        { return f.size }
func (f *fakeSpectrum) SampleRate() float64 { return f.rate }

func newFakeSpectrum() *fakeSpectrum {
	// 8-point FFT has 5 magnitude bins.
	return &fakeSpectrum{
		mags: []float64{0.5, 1.0, 0.25, 0.125, 0.0625},
		rate: 44100,
		size: 8,
	}
}

// listenPacket binds a loopback UDP socket and returns it with its address.
func listenPacket(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNewPublisherValidation(t *testing.T) {
	conn := listenPacket(t)
	sender, err := NewSender(conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	_, err = NewPublisher(time.Millisecond, nil, newFakeSpectrum())
	assert.Error(t, err, "nil sender must be rejected")

	_, err = NewPublisher(time.Millisecond, sender, nil)
	assert.Error(t, err, "nil spectrum must be rejected")

	p, err := NewPublisher(0, sender, newFakeSpectrum())
	require.NoError(t, err)
	assert.Equal(t, 16*time.Millisecond, p.interval, "non-positive interval defaults")
}

func TestPacketLayout(t *testing.T) {
	conn := listenPacket(t)
	sender, err := NewSender(conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	spectrum := newFakeSpectrum()
	p, err := NewPublisher(time.Millisecond, sender, spectrum)
	require.NoError(t, err)

	before := time.Now().UnixNano()
	p.buildAndSendPacket()
	after := time.Now().UnixNano()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	packet := make([]byte, 2048)
	n, _, err := conn.ReadFromUDP(packet)
	require.NoError(t, err)
	packet = packet[:n]

	// Header: uint32 sequence, int64 timestamp, uint16 count.
	require.GreaterOrEqual(t, n, 14, "packet shorter than header")
	seq := binary.BigEndian.Uint32(packet[0:4])
	ts := int64(binary.BigEndian.Uint64(packet[4:12]))
	count := binary.BigEndian.Uint16(packet[12:14])

	assert.Equal(t, uint32(1), seq, "first packet sequence number")
	assert.GreaterOrEqual(t, ts, before)
	assert.LessOrEqual(t, ts, after)
	require.Equal(t, uint16(5), count)
	require.Equal(t, 14+5*4, n, "payload carries count float32 magnitudes")

	for i := 0; i < int(count); i++ {
		bits := binary.BigEndian.Uint32(packet[14+i*4:])
		got := math.Float32frombits(bits)
		assert.InDelta(t, spectrum.mags[i], float64(got), 1e-6, "magnitude bin %d", i)
	}
}

func TestPacketSequenceIncrements(t *testing.T) {
	conn := listenPacket(t)
	sender, err := NewSender(conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	p, err := NewPublisher(time.Millisecond, sender, newFakeSpectrum())
	require.NoError(t, err)

	p.buildAndSendPacket()
	p.buildAndSendPacket()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	packet := make([]byte, 2048)

	_, _, err = conn.ReadFromUDP(packet)
	require.NoError(t, err)
	first := binary.BigEndian.Uint32(packet[0:4])

	_, _, err = conn.ReadFromUDP(packet)
	require.NoError(t, err)
	second := binary.BigEndian.Uint32(packet[0:4])

	assert.Equal(t, first+1, second)
}

func TestStartStopIdempotent(t *testing.T) {
	conn := listenPacket(t)
	sender, err := NewSender(conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	p, err := NewPublisher(time.Millisecond, sender, newFakeSpectrum())
	require.NoError(t, err)

	p.Start()
	p.Start() // No-op while running.

	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop(), "repeated Stop is a no-op")
}

func TestSenderClosedSend(t *testing.T) {
	conn := listenPacket(t)
	sender, err := NewSender(conn.LocalAddr().String())
	require.NoError(t, err)

	require.NoError(t, sender.Close())
	assert.NoError(t, sender.Close(), "repeated Close is a no-op")
	assert.Error(t, sender.Send([]byte{1, 2, 3}), "send after close must fail")
}
