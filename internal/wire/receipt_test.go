package wire

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// buildReceipt assembles receipt payloads the way the venue would, using
// protowire directly so the parser is tested against independent encoding.
func buildReceipt(code ErrorCode, variant protowire.Number, inner []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, receiptFieldErr, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(code))
	if variant != 0 {
		b = protowire.AppendTag(b, variant, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	return b
}

func TestParseReceiptCreateSession(t *testing.T) {
	t.Parallel()

	var inner []byte
	inner = protowire.AppendTag(inner, csResultFieldSessionID, protowire.VarintType)
	inner = protowire.AppendVarint(inner, 987654321)

	r, err := ParseReceipt(buildReceipt(ErrNone, receiptFieldCreateSession, inner))
	if err != nil {
		t.Fatal(err)
	}
	if r.Err != ErrNone {
		t.Errorf("Err = %v, want OK", r.Err)
	}
	if r.CreateSession == nil || r.CreateSession.SessionID != 987654321 {
		t.Errorf("CreateSession = %+v, want session id 987654321", r.CreateSession)
	}
}

func TestParseReceiptPlaceOrderPosted(t *testing.T) {
	t.Parallel()

	var posted []byte
	posted = protowire.AppendTag(posted, postedFieldOrderID, protowire.VarintType)
	posted = protowire.AppendVarint(posted, 42)
	var inner []byte
	inner = protowire.AppendTag(inner, poResultFieldPosted, protowire.BytesType)
	inner = protowire.AppendBytes(inner, posted)

	r, err := ParseReceipt(buildReceipt(ErrNone, receiptFieldPlaceOrder, inner))
	if err != nil {
		t.Fatal(err)
	}
	if r.PlaceOrder == nil || r.PlaceOrder.Posted == nil || r.PlaceOrder.Posted.OrderID != 42 {
		t.Errorf("PlaceOrder = %+v, want posted order 42", r.PlaceOrder)
	}
}

func TestParseReceiptErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code ErrorCode
		want string
	}{
		{"post only would match", ErrPostOnlyWouldMatch, "POST_ONLY_WOULD_MATCH"},
		{"order not found", ErrOrderNotFound, "ORDER_NOT_FOUND"},
		{"session expired", ErrSessionExpired, "SESSION_EXPIRED"},
		{"signature mismatch", ErrSignatureMismatch, "SIGNATURE_MISMATCH"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := ParseReceipt(buildReceipt(tt.code, 0, nil))
			if err != nil {
				t.Fatal(err)
			}
			if r.Err != tt.code || r.Err.String() != tt.want {
				t.Errorf("Err = %v (%s), want %s", r.Err, r.Err, tt.want)
			}
		})
	}
}

func TestParseReceiptSkipsUnknownFields(t *testing.T) {
	t.Parallel()

	b := buildReceipt(ErrNone, receiptFieldCancelOrder, nil)
	// Unknown field 15 added by a newer venue schema.
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))

	r, err := ParseReceipt(b)
	if err != nil {
		t.Fatal(err)
	}
	if r.CancelOrder == nil {
		t.Error("CancelOrder result missing")
	}
}

func TestDecodeReceiptFrame(t *testing.T) {
	t.Parallel()

	payload := buildReceipt(ErrOrderNotFound, receiptFieldCancelOrder, nil)
	body := append(Frame(payload), 0x00, 0x00) // trailing padding is legal

	r, err := DecodeReceiptFrame(body)
	if err != nil {
		t.Fatal(err)
	}
	if r.Err != ErrOrderNotFound {
		t.Errorf("Err = %v, want ORDER_NOT_FOUND", r.Err)
	}

	if _, err := DecodeReceiptFrame([]byte{0x20, 0x01}); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("short body err = %v, want ErrMalformedFrame", err)
	}
}

func TestActionMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	a := &Action{
		Timestamp: 1700000000,
		Nonce:     7,
		PlaceOrder: &PlaceOrder{
			SessionID:     11,
			MarketID:      1,
			ClientOrderID: 123456,
			Price:         7000000000000,
			Size:          -100000, // sell
			FillMode:      FillPostOnly,
			ReduceOnly:    true,
		},
	}
	b := a.Marshal()

	var sawPlace bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			t.Fatal("bad tag")
		}
		b = b[n:]
		switch num {
		case actionFieldPlaceOrder:
			sawPlace = true
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				t.Fatal("bad place message")
			}
			b = b[n:]
			checkPlaceFields(t, msg)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				t.Fatal("bad field")
			}
			b = b[n:]
		}
	}
	if !sawPlace {
		t.Error("marshalled action has no place_order field")
	}
}

func checkPlaceFields(t *testing.T, msg []byte) {
	t.Helper()
	got := map[protowire.Number]int64{}
	for len(msg) > 0 {
		num, _, n := protowire.ConsumeTag(msg)
		if n < 0 {
			t.Fatal("bad tag in place message")
		}
		msg = msg[n:]
		v, n := protowire.ConsumeVarint(msg)
		if n < 0 {
			t.Fatal("bad varint in place message")
		}
		msg = msg[n:]
		if num == poFieldPrice || num == poFieldSize {
			got[num] = protowire.DecodeZigZag(v)
		} else {
			got[num] = int64(v)
		}
	}
	want := map[protowire.Number]int64{
		poFieldSessionID:  11,
		poFieldMarketID:   1,
		poFieldClientID:   123456,
		poFieldPrice:      7000000000000,
		poFieldSize:       -100000,
		poFieldFillMode:   int64(FillPostOnly),
		poFieldReduceOnly: 1,
	}
	for num, w := range want {
		if got[num] != w {
			t.Errorf("field %d = %d, want %d", num, got[num], w)
		}
	}
}
