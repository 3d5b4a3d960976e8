package wire

import (
	"testing"

	"exchange-core/domain"
)

func TestGwRequestRoundTrip(t *testing.T) {
	want := GwRequest{
		Seq: 42,
		Req: ClientRequest{
			Type:     RequestNew,
			ClientId: 7,
			TickerId: 3,
			OrderId:  1001,
			Side:     domain.SideSell,
			Price:    -5000,
			Qty:      250,
		},
	}

	var buf [GwRequestSize]byte
	n := EncodeGwRequest(buf[:], &want)
	if n != GwRequestSize {
		t.Fatalf("expected %d bytes written, got %d", GwRequestSize, n)
	}

	got, err := DecodeGwRequest(buf[:])
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestGwResponseRoundTrip(t *testing.T) {
	want := GwResponse{
		Seq: 99,
		Resp: ClientResponse{
			Type:          ResponseFilled,
			ClientId:      1,
			TickerId:      0,
			ClientOrderId: 5,
			MarketOrderId: 6,
			Side:          domain.SideBuy,
			Price:         123456,
			QtyExec:       10,
			QtyRemain:     0,
		},
	}

	var buf [GwResponseSize]byte
	n := EncodeGwResponse(buf[:], &want)
	if n != GwResponseSize {
		t.Fatalf("expected %d bytes written, got %d", GwResponseSize, n)
	}

	got, err := DecodeGwResponse(buf[:])
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecodeGwRequestShortBuffer(t *testing.T) {
	_, err := DecodeGwRequest(make([]byte, GwRequestSize-1))
	if err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestDecodeGwResponseShortBuffer(t *testing.T) {
	_, err := DecodeGwResponse(make([]byte, GwResponseSize-1))
	if err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestGwRequestSizeMatchesSpec(t *testing.T) {
	const want = 8 + 1 + 4 + 4 + 8 + 1 + 8 + 4
	if GwRequestSize != want {
		t.Fatalf("expected GwRequestSize %d, got %d", want, GwRequestSize)
	}
}

func TestGwResponseSizeMatchesSpec(t *testing.T) {
	const want = 8 + 1 + 4 + 4 + 8 + 8 + 1 + 8 + 4 + 4
	if GwResponseSize != want {
		t.Fatalf("expected GwResponseSize %d, got %d", want, GwResponseSize)
	}
}
