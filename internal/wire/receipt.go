package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrorCode is the venue's receipt-level error enum. Zero means success.
type ErrorCode int32

const (
	ErrNone ErrorCode = iota
	ErrSignatureMismatch
	ErrSessionExpired
	ErrSessionNotFound
	ErrDuplicateSession
	ErrOrderNotFound
	ErrPostOnlyWouldMatch
	ErrInvalidOrder
)

func (e ErrorCode) String() string {
	switch e {
	case ErrNone:
		return "OK"
	case ErrSignatureMismatch:
		return "SIGNATURE_MISMATCH"
	case ErrSessionExpired:
		return "SESSION_EXPIRED"
	case ErrSessionNotFound:
		return "SESSION_NOT_FOUND"
	case ErrDuplicateSession:
		return "DUPLICATE_SESSION"
	case ErrOrderNotFound:
		return "ORDER_NOT_FOUND"
	case ErrPostOnlyWouldMatch:
		return "POST_ONLY_WOULD_MATCH"
	case ErrInvalidOrder:
		return "INVALID_ORDER"
	default:
		return fmt.Sprintf("ERR_%d", int32(e))
	}
}

const (
	receiptFieldErr           = 1
	receiptFieldCreateSession = 2
	receiptFieldPlaceOrder    = 3
	receiptFieldCancelOrder   = 4

	csResultFieldSessionID = 1
	poResultFieldPosted    = 1
	postedFieldOrderID     = 1
)

// CreateSessionResult carries the id the venue assigned to the session.
type CreateSessionResult struct {
	SessionID uint64
}

// PlaceOrderResult reports the outcome of a place. Posted is nil when the
// receipt-level error already describes the failure.
type PlaceOrderResult struct {
	Posted *PostedOrder
}

// PostedOrder confirms the order is resting on the book.
type PostedOrder struct {
	OrderID uint32
}

// CancelOrderResult is empty; success is carried by the receipt error code.
type CancelOrderResult struct{}

// Receipt is the venue's response to an action. Err is always meaningful;
// at most one result variant is set, matching the action variant sent.
type Receipt struct {
	Err           ErrorCode
	CreateSession *CreateSessionResult
	PlaceOrder    *PlaceOrderResult
	CancelOrder   *CancelOrderResult
}

// DecodeReceiptFrame splits the length-prefixed response body and parses
// the receipt payload. Trailing bytes after the declared length are
// ignored, as the protocol allows.
func DecodeReceiptFrame(body []byte) (*Receipt, error) {
	payload, _, err := SplitFrame(body)
	if err != nil {
		return nil, err
	}
	return ParseReceipt(payload)
}

// ParseReceipt decodes a receipt payload. Unknown fields are skipped so
// schema additions on the venue side do not break older clients.
func ParseReceipt(payload []byte) (*Receipt, error) {
	r := &Receipt{}
	for len(payload) > 0 {
		num, typ, n := protowire.ConsumeTag(payload)
		if n < 0 {
			return nil, ErrMalformedFrame
		}
		payload = payload[n:]

		switch {
		case num == receiptFieldErr && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(payload)
			if n < 0 {
				return nil, ErrMalformedFrame
			}
			r.Err = ErrorCode(v)
			payload = payload[n:]
		case num == receiptFieldCreateSession && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(payload)
			if n < 0 {
				return nil, ErrMalformedFrame
			}
			res, err := parseCreateSessionResult(msg)
			if err != nil {
				return nil, err
			}
			r.CreateSession = res
			payload = payload[n:]
		case num == receiptFieldPlaceOrder && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(payload)
			if n < 0 {
				return nil, ErrMalformedFrame
			}
			res, err := parsePlaceOrderResult(msg)
			if err != nil {
				return nil, err
			}
			r.PlaceOrder = res
			payload = payload[n:]
		case num == receiptFieldCancelOrder && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(payload)
			if n < 0 {
				return nil, ErrMalformedFrame
			}
			r.CancelOrder = &CancelOrderResult{}
			_ = msg
			payload = payload[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, payload)
			if n < 0 {
				return nil, ErrMalformedFrame
			}
			payload = payload[n:]
		}
	}
	return r, nil
}

func parseCreateSessionResult(msg []byte) (*CreateSessionResult, error) {
	res := &CreateSessionResult{}
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return nil, ErrMalformedFrame
		}
		msg = msg[n:]
		if num == csResultFieldSessionID && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return nil, ErrMalformedFrame
			}
			res.SessionID = v
			msg = msg[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, msg)
		if n < 0 {
			return nil, ErrMalformedFrame
		}
		msg = msg[n:]
	}
	return res, nil
}

func parsePlaceOrderResult(msg []byte) (*PlaceOrderResult, error) {
	res := &PlaceOrderResult{}
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return nil, ErrMalformedFrame
		}
		msg = msg[n:]
		if num == poResultFieldPosted && typ == protowire.BytesType {
			inner, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return nil, ErrMalformedFrame
			}
			posted, err := parsePosted(inner)
			if err != nil {
				return nil, err
			}
			res.Posted = posted
			msg = msg[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, msg)
		if n < 0 {
			return nil, ErrMalformedFrame
		}
		msg = msg[n:]
	}
	return res, nil
}

func parsePosted(msg []byte) (*PostedOrder, error) {
	p := &PostedOrder{}
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return nil, ErrMalformedFrame
		}
		msg = msg[n:]
		if num == postedFieldOrderID && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return nil, ErrMalformedFrame
			}
			p.OrderID = uint32(v)
			msg = msg[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, msg)
		if n < 0 {
			return nil, ErrMalformedFrame
		}
		msg = msg[n:]
	}
	return p, nil
}
