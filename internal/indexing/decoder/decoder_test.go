package decoder

import (
	"errors"
	"testing"

	"github.com/stellar/go/xdr"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/decoder/xdrtest"
)

func TestDecode_V3Contribution(t *testing.T) {
	blob := xdrtest.MetaV3(xdrtest.Contribution("G", "U", "GWALLET", 5000000, 3))

	events, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.Name != domain.EventContributionReceived {
		t.Errorf("expected ContributionReceived, got %s", ev.Name)
	}
	checks := map[string]string{
		"groupId":       "G",
		"userId":        "U",
		"walletAddress": "GWALLET",
		"amount":        "5000000",
		"roundNumber":   "3",
	}
	for key, want := range checks {
		if got := ev.Payload.String(key); got != want {
			t.Errorf("payload[%s] = %q, want %q", key, got, want)
		}
	}
}

func TestDecode_V4CollectsAllOperations(t *testing.T) {
	blob := xdrtest.MetaV4(
		[]xdr.ContractEvent{xdrtest.Contribution("G", "U1", "W1", 1, 1)},
		nil,
		[]xdr.ContractEvent{
			xdrtest.SystemEvent(xdrtest.Void(), xdrtest.Sym("RoundCompleted")),
			xdrtest.RoundCompleted("G", "U1"),
		},
	)

	events, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Name != domain.EventContributionReceived || events[1].Name != domain.EventRoundCompleted {
		t.Errorf("unexpected order: %s, %s", events[0].Name, events[1].Name)
	}
}

func TestDecode_NoEvents(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"empty blob", ""},
		{"whitespace blob", "   "},
		{"version 2 meta", xdrtest.MetaV2()},
		{"version 3 without events", xdrtest.MetaV3()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Decode(tt.blob)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(events) != 0 {
				t.Errorf("expected no events, got %d", len(events))
			}
		})
	}
}

func TestDecode_InvalidBlob(t *testing.T) {
	_, err := Decode("not-base64-xdr!!")
	if !errors.Is(err, ErrInvalidMeta) {
		t.Fatalf("expected ErrInvalidMeta, got %v", err)
	}
}

func TestDecode_NameResolution(t *testing.T) {
	tests := []struct {
		name  string
		event xdr.ContractEvent
		want  domain.EventName
		drop  bool
	}{
		{
			name:  "topic exact",
			event: xdrtest.Event(xdrtest.Map("groupId", xdrtest.Str("G")), xdrtest.Sym("RoundCompleted")),
			want:  domain.EventRoundCompleted,
		},
		{
			name:  "topic case insensitive after other topics",
			event: xdrtest.Event(xdrtest.Map("groupId", xdrtest.Str("G")), xdrtest.Sym("group"), xdrtest.Str("roundcompleted")),
			want:  domain.EventRoundCompleted,
		},
		{
			name:  "payload eventName alias",
			event: xdrtest.Event(xdrtest.Map("eventName", xdrtest.Str("ContributionReceived")), xdrtest.Sym("emit")),
			want:  domain.EventContributionReceived,
		},
		{
			name:  "payload type alias",
			event: xdrtest.Event(xdrtest.Map("type", xdrtest.Sym("ROUNDCOMPLETED"))),
			want:  domain.EventRoundCompleted,
		},
		{
			name:  "unknown name dropped",
			event: xdrtest.Event(xdrtest.Map("event", xdrtest.Str("GroupCreated")), xdrtest.Sym("GroupCreated")),
			drop:  true,
		},
		{
			name:  "no topics no aliases dropped",
			event: xdrtest.Event(xdrtest.U32(7)),
			drop:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Decode(xdrtest.MetaV3(tt.event))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if tt.drop {
				if len(events) != 0 {
					t.Errorf("expected event to be dropped, got %s", events[0].Name)
				}
				return
			}
			if len(events) != 1 || events[0].Name != tt.want {
				t.Fatalf("expected %s, got %+v", tt.want, events)
			}
		})
	}
}

func TestDecode_NonMapDataUnderDataKey(t *testing.T) {
	blob := xdrtest.MetaV3(xdrtest.Event(xdrtest.Str("G"), xdrtest.Sym("RoundCompleted")))

	events, err := Decode(blob)
	if err != nil || len(events) != 1 {
		t.Fatalf("unexpected result: %v %v", events, err)
	}
	if got := events[0].Payload.String("data"); got != "G" {
		t.Errorf("expected data=G, got %q", got)
	}
}

func TestConvertScVal(t *testing.T) {
	tests := []struct {
		name string
		in   xdr.ScVal
		kind domain.ValueKind
		text string
	}{
		{"void", xdrtest.Void(), domain.KindNull, ""},
		{"u32", xdrtest.U32(42), domain.KindNumber, "42"},
		{"i128 positive", xdrtest.I128(0, 5000000), domain.KindNumber, "5000000"},
		{"i128 negative", xdrtest.I128(-1, ^uint64(0)), domain.KindNumber, "-1"},
		{"i128 wide", xdrtest.I128(1, 0), domain.KindNumber, "18446744073709551616"},
		{"u128 wide", xdrtest.U128(1, 1), domain.KindNumber, "18446744073709551617"},
		{"symbol", xdrtest.Sym("hello"), domain.KindString, "hello"},
		{"string", xdrtest.Str("world"), domain.KindString, "world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertScVal(tt.in)
			if got.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.kind)
			}
			if got.Text != tt.text {
				t.Errorf("text = %q, want %q", got.Text, tt.text)
			}
		})
	}
}

func TestConvertScVal_Nested(t *testing.T) {
	val := xdrtest.Map(
		"flag", xdrtest.Bool(true),
		"members", xdrtest.Vec(xdrtest.Str("a"), xdrtest.Str("b")),
		"empty", xdrtest.Vec(),
	)

	got := ConvertScVal(val)
	if got.Kind != domain.KindMap {
		t.Fatalf("expected map, got %s", got.Kind)
	}
	if flag := got.Map["flag"]; flag.Kind != domain.KindBool || !flag.Bool {
		t.Errorf("unexpected flag: %+v", flag)
	}
	members := got.Map["members"]
	if members.Kind != domain.KindList || len(members.List) != 2 || members.List[1].Text != "b" {
		t.Errorf("unexpected members: %+v", members)
	}
	if empty := got.Map["empty"]; empty.Kind != domain.KindList || len(empty.List) != 0 {
		t.Errorf("unexpected empty: %+v", empty)
	}

	native, ok := got.Native().(map[string]any)
	if !ok || native["flag"] != true {
		t.Errorf("unexpected native form: %#v", got.Native())
	}
}
