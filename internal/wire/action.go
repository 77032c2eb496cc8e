package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from the venue's served schema. The Action envelope carries
// a timestamp, a nonce, and exactly one variant.
const (
	actionFieldTimestamp     = 1
	actionFieldNonce         = 2
	actionFieldCreateSession = 10
	actionFieldPlaceOrder    = 11
	actionFieldCancelOrder   = 12

	csFieldUserPubkey    = 1
	csFieldSessionPubkey = 2
	csFieldExpiry        = 3

	poFieldSessionID  = 1
	poFieldMarketID   = 2
	poFieldClientID   = 3
	poFieldPrice      = 4
	poFieldSize       = 5
	poFieldFillMode   = 6
	poFieldReduceOnly = 7

	coFieldSessionID = 1
	coFieldOrderID   = 2
)

// FillMode selects the order's matching behavior.
type FillMode int32

const (
	// FillPostOnly rejects the order if any part would match immediately.
	FillPostOnly FillMode = 0
	// FillImmediateOrCancel matches what it can and cancels the rest.
	FillImmediateOrCancel FillMode = 1
)

// CreateSession registers an ephemeral session key under the user identity.
type CreateSession struct {
	UserPubkey    []byte
	SessionPubkey []byte
	Expiry        int64 // unix seconds
}

// PlaceOrder submits a limit order. Price and Size are in 10⁻⁸ units; Size
// is positive for buys and negative for sells.
type PlaceOrder struct {
	SessionID     uint64
	MarketID      uint32
	ClientOrderID uint32
	Price         int64
	Size          int64
	FillMode      FillMode
	ReduceOnly    bool
}

// CancelOrder removes a resting order by client order id.
type CancelOrder struct {
	SessionID uint64
	OrderID   uint32
}

// Action is the request envelope; exactly one of the variant fields is set.
type Action struct {
	Timestamp     int64 // unix seconds at submission
	Nonce         uint64
	CreateSession *CreateSession
	PlaceOrder    *PlaceOrder
	CancelOrder   *CancelOrder
}

// Marshal encodes the action with protowire.
func (a *Action) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, actionFieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Timestamp))
	b = protowire.AppendTag(b, actionFieldNonce, protowire.VarintType)
	b = protowire.AppendVarint(b, a.Nonce)

	switch {
	case a.CreateSession != nil:
		b = appendMessage(b, actionFieldCreateSession, a.CreateSession.marshal())
	case a.PlaceOrder != nil:
		b = appendMessage(b, actionFieldPlaceOrder, a.PlaceOrder.marshal())
	case a.CancelOrder != nil:
		b = appendMessage(b, actionFieldCancelOrder, a.CancelOrder.marshal())
	}
	return b
}

func (m *CreateSession) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, csFieldUserPubkey, protowire.BytesType)
	b = protowire.AppendBytes(b, m.UserPubkey)
	b = protowire.AppendTag(b, csFieldSessionPubkey, protowire.BytesType)
	b = protowire.AppendBytes(b, m.SessionPubkey)
	b = protowire.AppendTag(b, csFieldExpiry, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Expiry))
	return b
}

func (m *PlaceOrder) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, poFieldSessionID, protowire.VarintType)
	b = protowire.AppendVarint(b, m.SessionID)
	b = protowire.AppendTag(b, poFieldMarketID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.MarketID))
	b = protowire.AppendTag(b, poFieldClientID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ClientOrderID))
	b = protowire.AppendTag(b, poFieldPrice, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(m.Price))
	b = protowire.AppendTag(b, poFieldSize, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(m.Size))
	b = protowire.AppendTag(b, poFieldFillMode, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.FillMode))
	if m.ReduceOnly {
		b = protowire.AppendTag(b, poFieldReduceOnly, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func (m *CancelOrder) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, coFieldSessionID, protowire.VarintType)
	b = protowire.AppendVarint(b, m.SessionID)
	b = protowire.AppendTag(b, coFieldOrderID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.OrderID))
	return b
}

func appendMessage(b []byte, field protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, field, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
