package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	applog "audiotap/internal/log"
	"audiotap/internal/transport"
)

// Sender owns the sending half of spectrum publishing: a connected UDP
// socket to a fixed target. A closed sender rejects further packets.
type Sender struct {
	mu   sync.Mutex
	conn net.Conn
}

// NewSender connects to the given "host:port" target.
func NewSender(targetAddress string) (*Sender, error) {
	conn, err := net.Dial("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("udp sender: dial %q: %w", targetAddress, err)
	}

	applog.Infof("UDP Sender: connection established to %s", conn.RemoteAddr())
	return &Sender{conn: conn}, nil
}

// Send transmits one datagram. Safe for concurrent use, though the publisher
// calls it sequentially.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("udp sender: closed")
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("udp sender: send: %w", err)
	}
	return nil
}

// Close releases the socket. Subsequent Close calls are no-ops.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Publisher periodically fetches the latest spectrum from a
// transport.SpectrumProvider, packs it into a binary packet, and sends it
// over UDP. It runs in its own goroutine managed by Start and Stop.
type Publisher struct {
	sender   *Sender
	spectrum transport.SpectrumProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	// Pre-allocated buffers to keep buildAndSendPacket allocation-light.
	magBuffer    []float64
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewPublisher creates a Publisher. An interval <= 0 defaults to 16ms (~60Hz).
func NewPublisher(interval time.Duration, sender *Sender, spectrum transport.SpectrumProvider) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	if spectrum == nil {
		return nil, fmt.Errorf("udp publisher: spectrum provider cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDP Publisher: invalid interval provided, defaulting to %s", interval)
	}

	requiredLen := spectrum.FFTSize()/2 + 1
	applog.Infof("UDP Publisher: initializing (interval: %s, bins: %d)", interval, requiredLen)

	return &Publisher{
		sender:       sender,
		spectrum:     spectrum,
		interval:     interval,
		magBuffer:    make([]float64, requiredLen),
		f32Buffer:    make([]float32, requiredLen),
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start begins periodic publishing. Safe to call more than once; subsequent
// calls are no-ops while running.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDP Publisher: Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture locals so the goroutine never races Start/Stop on the fields.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it.
// Safe to call more than once.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDP Publisher: stopped")
	return nil
}

/*
UDP Packet Structure (BigEndian)

| Field           | Type      | Size (Bytes) | Description              |
|-----------------|-----------|--------------|--------------------------|
| Sequence Number | uint32    | 4            | Monotonically increasing |
| Timestamp       | int64     | 8            | Nanoseconds since epoch  |
| Magnitude Count | uint16    | 2            | Number of floats (N)     |
| Magnitudes      | []float32 | N * 4        | Spectrum magnitudes      |
*/

func (p *Publisher) buildAndSendPacket() {
	if err := p.spectrum.MagnitudesInto(p.magBuffer); err != nil {
		applog.Errorf("UDP Publisher: error getting magnitudes: %v", err)
		return
	}

	for i, m := range p.magBuffer {
		p.f32Buffer[i] = float32(m)
	}

	p.packetBuffer.Reset()
	p.sequenceNum++

	binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	binary.Write(p.packetBuffer, binary.BigEndian, time.Now().UnixNano())
	binary.Write(p.packetBuffer, binary.BigEndian, uint16(len(p.f32Buffer)))
	binary.Write(p.packetBuffer, binary.BigEndian, p.f32Buffer)

	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		applog.Debugf("UDP Publisher: send failed: %v", err)
	}
}
