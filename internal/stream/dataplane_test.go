// If you are AI: This file contains unit tests for the data-plane boundary.

package stream

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"glint/internal/bitrate"
	"glint/internal/crypto"
)

func newPlane(t *testing.T, encrypted bool) (*DataPlane, *bitrate.Controller) {
	t.Helper()

	controller := bitrate.New(20000, 500, 150000, bitrate.Options{}, nil)

	var cipher *crypto.GCM
	if encrypted {
		var err error
		cipher, err = crypto.NewGCM(crypto.Rand(16))
		if err != nil {
			t.Fatalf("NewGCM: %v", err)
		}
	}
	return New(controller, cipher, "0011223344556677", nil), controller
}

func receiverReport(t *testing.T, fractionLost uint8) []byte {
	t.Helper()
	rr := rtcp.ReceiverReport{
		SSRC: 1,
		Reports: []rtcp.ReceptionReport{{
			SSRC:         2,
			FractionLost: fractionLost,
		}},
	}
	data, err := rr.Marshal()
	if err != nil {
		t.Fatalf("marshal receiver report: %v", err)
	}
	return data
}

func TestIngestRTCPUpdatesLoss(t *testing.T) {
	plane, _ := newPlane(t, false)

	// 10% loss is 25.5/255; use 26 for just above 10%.
	if err := plane.IngestRTCP(receiverReport(t, 26)); err != nil {
		t.Fatalf("IngestRTCP: %v", err)
	}

	loss := plane.LossPct()
	if loss < 10.0 || loss > 10.5 {
		t.Errorf("loss = %g, want about 10.2", loss)
	}
}

func TestIngestRTCPRejectsGarbage(t *testing.T) {
	plane, _ := newPlane(t, false)
	if err := plane.IngestRTCP([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error for malformed RTCP")
	}
}

func TestPictureLossTriggersIDR(t *testing.T) {
	plane, _ := newPlane(t, false)

	pli := rtcp.PictureLossIndication{SenderSSRC: 1, MediaSSRC: 2}
	data, err := pli.Marshal()
	if err != nil {
		t.Fatalf("marshal PLI: %v", err)
	}
	if err := plane.IngestRTCP(data); err != nil {
		t.Fatalf("IngestRTCP: %v", err)
	}

	select {
	case ev := <-plane.Events():
		if ev.Type != EventIDR {
			t.Errorf("event type = %v, want IDR", ev.Type)
		}
	default:
		t.Error("no IDR event emitted")
	}
}

func TestBitrateUpdateEventFlow(t *testing.T) {
	plane, controller := newPlane(t, false)

	clock := time.Unix(1000, 0)
	controller.SetClock(func() time.Time { return clock })

	plane.ReportFrameLoss(10.0)
	clock = clock.Add(2100 * time.Millisecond)

	plane.Start()
	defer plane.Stop()

	select {
	case ev := <-plane.Events():
		if ev.Type != EventBitrateUpdate {
			t.Fatalf("event type = %v", ev.Type)
		}
		if ev.BitrateKbps != 16000 {
			t.Errorf("bitrate = %d, want 16000", ev.BitrateKbps)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no bitrate update emitted")
	}
}

func TestStopIsIdempotentAndJoins(t *testing.T) {
	plane, _ := newPlane(t, false)
	plane.Start()

	plane.Stop()
	plane.Stop() // second stop must not panic or hang
}

func TestAVPingPacket(t *testing.T) {
	plane, _ := newPlane(t, false)

	data, err := plane.AVPingPacket()
	if err != nil {
		t.Fatalf("AVPingPacket: %v", err)
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		t.Fatalf("unmarshal ping: %v", err)
	}
	if string(pkt.Payload) != "0011223344556677" {
		t.Errorf("payload = %q", pkt.Payload)
	}

	// Sequence numbers advance per packet.
	second, _ := plane.AVPingPacket()
	var pkt2 rtp.Packet
	pkt2.Unmarshal(second)
	if pkt2.SequenceNumber != pkt.SequenceNumber+1 {
		t.Errorf("sequence = %d after %d", pkt2.SequenceNumber, pkt.SequenceNumber)
	}
}

func TestSealControlCleartext(t *testing.T) {
	plane, _ := newPlane(t, false)

	msg := []byte("OPTIONS rtsp://host")
	out, err := plane.SealControl(msg)
	if err != nil {
		t.Fatalf("SealControl: %v", err)
	}
	if string(out) != string(msg) {
		t.Error("cleartext session must pass messages through")
	}
	if plane.Encrypted() {
		t.Error("plane without cipher reports encrypted")
	}
}

func TestSealControlEncrypted(t *testing.T) {
	key := crypto.Rand(16)
	cipher, _ := crypto.NewGCM(key)
	controller := bitrate.New(20000, 500, 150000, bitrate.Options{}, nil)
	plane := New(controller, cipher, "00", nil)

	msg := []byte("PLAY rtsp://host streamid=video")
	sealed, err := plane.SealControl(msg)
	if err != nil {
		t.Fatalf("SealControl: %v", err)
	}

	// Layout: 4-byte big-endian counter || 16-byte tag || ciphertext.
	if len(sealed) != 4+crypto.GCMTagSize+len(msg) {
		t.Fatalf("sealed length = %d", len(sealed))
	}
	counter := binary.BigEndian.Uint32(sealed[:4])
	if counter != 0 {
		t.Errorf("first counter = %d, want 0", counter)
	}

	iv := make([]byte, 16)
	binary.BigEndian.PutUint32(iv, counter)
	verify, _ := crypto.NewGCM(key)
	plain, err := verify.Decrypt(iv, sealed[4+crypto.GCMTagSize:], sealed[4:4+crypto.GCMTagSize])
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(plain) != string(msg) {
		t.Error("round trip mismatch")
	}

	// The counter advances per message.
	sealed2, _ := plane.SealControl(msg)
	if binary.BigEndian.Uint32(sealed2[:4]) != 1 {
		t.Error("iv counter did not advance")
	}
}
