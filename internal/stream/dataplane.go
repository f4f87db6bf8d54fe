// If you are AI: This file is the data-plane boundary of a streaming session.
// It turns RTCP receiver reports into loss telemetry and emits encoder events.

package stream

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"go.uber.org/zap"

	"glint/internal/bitrate"
	"glint/internal/crypto"
)

// EventType identifies a data-plane event.
type EventType int

// Events the encoder boundary consumes.
const (
	// EventBitrateUpdate asks the encoder to retarget its bitrate.
	EventBitrateUpdate EventType = iota
	// EventIDR asks the encoder for an IDR frame.
	EventIDR
)

// Event is an instruction emitted towards the encoder boundary.
type Event struct {
	Type        EventType
	BitrateKbps int
}

// pollInterval is how often the bitrate controller is polled. The controller
// applies its own 2-second gate on top.
const pollInterval = 500 * time.Millisecond

// DataPlane owns the per-session feedback path between the RTP transport
// and the encoder. The actual packet pumps live outside this module; the
// plane consumes their RTCP telemetry and surfaces encoder events.
type DataPlane struct {
	controller *bitrate.Controller
	cipher     *crypto.GCM
	ivCounter  uint32
	pingSSRC   uint32

	avPingPayload string

	mu      sync.Mutex
	events  chan Event
	dropped int
	lossPct float64
	rtpSeq  uint16

	done chan struct{}
	wg   sync.WaitGroup

	logger *zap.Logger
}

// New creates a data plane for one session. cipher may be nil for
// cleartext RTSP sessions.
func New(controller *bitrate.Controller, cipher *crypto.GCM, avPingPayload string, logger *zap.Logger) *DataPlane {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataPlane{
		controller:    controller,
		cipher:        cipher,
		pingSSRC:      binary.BigEndian.Uint32(crypto.Rand(4)),
		avPingPayload: avPingPayload,
		events:        make(chan Event, 16),
		done:          make(chan struct{}),
		logger:        logger.Named("stream"),
	}
}

// Start launches the bitrate polling loop.
func (d *DataPlane) Start() {
	d.wg.Add(1)
	go d.pollLoop()
}

// pollLoop surfaces controller adjustments as bitrate events.
func (d *DataPlane) pollLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			if kbps := d.controller.NextBitrate(); kbps > 0 {
				d.emit(Event{Type: EventBitrateUpdate, BitrateKbps: kbps})
			}
		}
	}
}

// Stop terminates the polling loop and waits for it to exit.
func (d *DataPlane) Stop() {
	select {
	case <-d.done:
		return
	default:
	}
	close(d.done)
	d.wg.Wait()
}

// Events is the encoder-facing event stream.
func (d *DataPlane) Events() <-chan Event {
	return d.events
}

// emit never blocks the telemetry path; a full queue drops the event.
func (d *DataPlane) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.logger.Warn("event queue full, dropping event", zap.Int("type", int(ev.Type)))
	}
}

// RequestIDR asks the encoder for a recovery frame, typically after the
// client reports reference frame loss.
func (d *DataPlane) RequestIDR() {
	d.emit(Event{Type: EventIDR})
}

// IngestRTCP feeds a compound RTCP packet from the transport. Receiver
// reports update the loss estimate; picture-loss indications trigger an IDR.
func (d *DataPlane) IngestRTCP(packet []byte) error {
	packets, err := rtcp.Unmarshal(packet)
	if err != nil {
		return fmt.Errorf("stream: rtcp unmarshal: %w", err)
	}

	for _, p := range packets {
		switch report := p.(type) {
		case *rtcp.ReceiverReport:
			d.ingestReports(report.Reports)
		case *rtcp.SenderReport:
			d.ingestReports(report.Reports)
		case *rtcp.PictureLossIndication:
			d.RequestIDR()
		}
	}
	return nil
}

// ingestReports folds reception reports into the loss estimate.
func (d *DataPlane) ingestReports(reports []rtcp.ReceptionReport) {
	for _, r := range reports {
		// FractionLost is the loss fraction scaled to 0..255.
		pct := float64(r.FractionLost) / 255.0 * 100.0

		d.mu.Lock()
		d.lossPct = pct
		d.mu.Unlock()

		d.controller.Update(pct)
	}
}

// ReportFrameLoss feeds a loss percentage computed outside RTCP, e.g. from
// the control stream's own frame-loss counters.
func (d *DataPlane) ReportFrameLoss(pct float64) {
	d.mu.Lock()
	d.lossPct = pct
	d.mu.Unlock()

	d.controller.Update(pct)
}

// LossPct returns the most recent loss observation.
func (d *DataPlane) LossPct() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lossPct
}

// Dropped returns how many events were lost to a full queue.
func (d *DataPlane) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// AVPingPacket builds the RTP packet that opens the client's AV firewall
// pinhole. The payload is the random hex token exchanged at launch.
func (d *DataPlane) AVPingPacket() ([]byte, error) {
	d.mu.Lock()
	seq := d.rtpSeq
	d.rtpSeq++
	ssrc := d.pingSSRC
	d.mu.Unlock()

	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    127,
			SequenceNumber: seq,
			SSRC:           ssrc,
		},
		Payload: []byte(d.avPingPayload),
	}

	out, err := pkt.Marshal()
	if err != nil {
		return nil, fmt.Errorf("stream: marshal ping: %w", err)
	}
	return out, nil
}

// SealControl encrypts a control-stream message when GCM was negotiated,
// prefixing the big-endian IV counter the peer reconstructs the nonce from.
// Cleartext sessions get the message back untouched.
func (d *DataPlane) SealControl(plaintext []byte) ([]byte, error) {
	if d.cipher == nil {
		return plaintext, nil
	}

	d.mu.Lock()
	counter := d.ivCounter
	d.ivCounter++
	d.mu.Unlock()

	iv := make([]byte, 16)
	binary.BigEndian.PutUint32(iv, counter)

	sealed, err := d.cipher.EncryptTagged(iv, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 4+len(sealed))
	out = binary.BigEndian.AppendUint32(out, counter)
	return append(out, sealed...), nil
}

// Encrypted reports whether the session negotiated GCM.
func (d *DataPlane) Encrypted() bool {
	return d.cipher != nil
}
