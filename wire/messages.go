// Package wire holds the byte-packed, little-endian record formats
// crossing a process or network boundary: the order-entry requests and
// responses a client gateway connection carries (§6), and the internal
// ClientRequest/ClientResponse/MarketUpdate records the sequencer,
// matching engine and gateway pass between their queues (§3).
//
// The teacher repo has no equivalent wire layer — orders there never
// leave the process — so the encode/decode style here is grounded on the
// original implementation's order_server_request.h/order_server_response.h
// struct layouts, expressed with encoding/binary the way Go idiomatically
// replaces a C++ "#pragma pack" struct.
package wire

import (
	"encoding/binary"
	"errors"

	"exchange-core/domain"
)

// ErrShortBuffer is returned by the Decode functions when buf does not
// hold a complete record.
var ErrShortBuffer = errors.New("wire: buffer too short for record")

// RequestType tags a ClientRequest / GwRequest.
type RequestType uint8

const (
	RequestInvalid RequestType = 0
	RequestNew     RequestType = 1
	RequestCancel  RequestType = 2
)

// ResponseType tags a ClientResponse / GwResponse.
type ResponseType uint8

const (
	ResponseInvalid        ResponseType = 0
	ResponseAccepted       ResponseType = 1
	ResponseCancelled      ResponseType = 2
	ResponseFilled         ResponseType = 3
	ResponseCancelRejected ResponseType = 4
)

// MarketUpdateType tags a MarketUpdate.
type MarketUpdateType uint8

const (
	MarketUpdateInvalid       MarketUpdateType = 0
	MarketUpdateAdd           MarketUpdateType = 1
	MarketUpdateModify        MarketUpdateType = 2
	MarketUpdateCancel        MarketUpdateType = 3
	MarketUpdateTrade         MarketUpdateType = 4
	MarketUpdateClear         MarketUpdateType = 5
	MarketUpdateSnapshotStart MarketUpdateType = 6
	MarketUpdateSnapshotEnd   MarketUpdateType = 7
)

// ClientRequest is what a client asks the engine to do: place or cancel
// an order on one ticker. Travels gateway -> sequencer -> engine.
type ClientRequest struct {
	Type     RequestType
	ClientId domain.ClientId
	TickerId domain.TickerId
	OrderId  domain.OrderId
	Side     domain.Side
	Price    domain.Price
	Qty      domain.Qty
}

// ClientResponse reports the outcome of a ClientRequest back to its
// originating client. Travels engine -> gateway -> client.
type ClientResponse struct {
	Type          ResponseType
	ClientId      domain.ClientId
	TickerId      domain.TickerId
	ClientOrderId domain.OrderId
	MarketOrderId domain.OrderId
	Side          domain.Side
	Price         domain.Price
	QtyExec       domain.Qty
	QtyRemain     domain.Qty
}

// MarketUpdate is a public book-change event. Travels engine -> market
// data queue; never seen by a specific client.
type MarketUpdate struct {
	Type     MarketUpdateType
	OrderId  domain.OrderId
	TickerId domain.TickerId
	Side     domain.Side
	Price    domain.Price
	Qty      domain.Qty
	Priority domain.Priority
}

// GwRequest is a ClientRequest framed with the per-client sequence number
// a gateway connection assigns on receipt, per §6. Fixed size: 38 bytes.
type GwRequest struct {
	Seq uint64
	Req ClientRequest
}

// GwRequestSize is the wire size of a GwRequest record, in bytes.
const GwRequestSize = 8 + 1 + 4 + 4 + 8 + 1 + 8 + 4

// GwResponse is a ClientResponse framed with the per-client sequence
// number the gateway assigns on send, per §6. Fixed size: 50 bytes.
type GwResponse struct {
	Seq  uint64
	Resp ClientResponse
}

// GwResponseSize is the wire size of a GwResponse record, in bytes.
const GwResponseSize = 8 + 1 + 4 + 4 + 8 + 8 + 1 + 8 + 4 + 4

// EncodeGwRequest writes r into buf, which must be at least
// GwRequestSize bytes long, and returns the number of bytes written.
func EncodeGwRequest(buf []byte, r *GwRequest) int {
	binary.LittleEndian.PutUint64(buf[0:8], r.Seq)
	buf[8] = byte(r.Req.Type)
	binary.LittleEndian.PutUint32(buf[9:13], uint32(r.Req.ClientId))
	binary.LittleEndian.PutUint32(buf[13:17], uint32(r.Req.TickerId))
	binary.LittleEndian.PutUint64(buf[17:25], uint64(r.Req.OrderId))
	buf[25] = byte(r.Req.Side)
	binary.LittleEndian.PutUint64(buf[26:34], uint64(r.Req.Price))
	binary.LittleEndian.PutUint32(buf[34:38], uint32(r.Req.Qty))
	return GwRequestSize
}

// DecodeGwRequest reads a GwRequest from the front of buf. Returns
// ErrShortBuffer if buf holds fewer than GwRequestSize bytes.
func DecodeGwRequest(buf []byte) (GwRequest, error) {
	var r GwRequest
	if len(buf) < GwRequestSize {
		return r, ErrShortBuffer
	}
	r.Seq = binary.LittleEndian.Uint64(buf[0:8])
	r.Req.Type = RequestType(buf[8])
	r.Req.ClientId = domain.ClientId(binary.LittleEndian.Uint32(buf[9:13]))
	r.Req.TickerId = domain.TickerId(binary.LittleEndian.Uint32(buf[13:17]))
	r.Req.OrderId = domain.OrderId(binary.LittleEndian.Uint64(buf[17:25]))
	r.Req.Side = domain.Side(int8(buf[25]))
	r.Req.Price = domain.Price(binary.LittleEndian.Uint64(buf[26:34]))
	r.Req.Qty = domain.Qty(binary.LittleEndian.Uint32(buf[34:38]))
	return r, nil
}

// EncodeGwResponse writes r into buf, which must be at least
// GwResponseSize bytes long, and returns the number of bytes written.
func EncodeGwResponse(buf []byte, r *GwResponse) int {
	binary.LittleEndian.PutUint64(buf[0:8], r.Seq)
	buf[8] = byte(r.Resp.Type)
	binary.LittleEndian.PutUint32(buf[9:13], uint32(r.Resp.ClientId))
	binary.LittleEndian.PutUint32(buf[13:17], uint32(r.Resp.TickerId))
	binary.LittleEndian.PutUint64(buf[17:25], uint64(r.Resp.ClientOrderId))
	binary.LittleEndian.PutUint64(buf[25:33], uint64(r.Resp.MarketOrderId))
	buf[33] = byte(r.Resp.Side)
	binary.LittleEndian.PutUint64(buf[34:42], uint64(r.Resp.Price))
	binary.LittleEndian.PutUint32(buf[42:46], uint32(r.Resp.QtyExec))
	binary.LittleEndian.PutUint32(buf[46:50], uint32(r.Resp.QtyRemain))
	return GwResponseSize
}

// DecodeGwResponse reads a GwResponse from the front of buf. Returns
// ErrShortBuffer if buf holds fewer than GwResponseSize bytes.
func DecodeGwResponse(buf []byte) (GwResponse, error) {
	var r GwResponse
	if len(buf) < GwResponseSize {
		return r, ErrShortBuffer
	}
	r.Seq = binary.LittleEndian.Uint64(buf[0:8])
	r.Resp.Type = ResponseType(buf[8])
	r.Resp.ClientId = domain.ClientId(binary.LittleEndian.Uint32(buf[9:13]))
	r.Resp.TickerId = domain.TickerId(binary.LittleEndian.Uint32(buf[13:17]))
	r.Resp.ClientOrderId = domain.OrderId(binary.LittleEndian.Uint64(buf[17:25]))
	r.Resp.MarketOrderId = domain.OrderId(binary.LittleEndian.Uint64(buf[25:33]))
	r.Resp.Side = domain.Side(int8(buf[33]))
	r.Resp.Price = domain.Price(binary.LittleEndian.Uint64(buf[34:42]))
	r.Resp.QtyExec = domain.Qty(binary.LittleEndian.Uint32(buf[42:46]))
	r.Resp.QtyRemain = domain.Qty(binary.LittleEndian.Uint32(buf[46:50]))
	return r, nil
}
