// Package xdrtest builds transaction metadata blobs for tests.
package xdrtest

import (
	"github.com/stellar/go/xdr"
)

func Sym(s string) xdr.ScVal {
	sym := xdr.ScSymbol(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}
}

func Str(s string) xdr.ScVal {
	str := xdr.ScString(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &str}
}

func U32(n uint32) xdr.ScVal {
	u := xdr.Uint32(n)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &u}
}

func I128(hi int64, lo uint64) xdr.ScVal {
	return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &xdr.Int128Parts{Hi: xdr.Int64(hi), Lo: xdr.Uint64(lo)}}
}

func U128(hi, lo uint64) xdr.ScVal {
	return xdr.ScVal{Type: xdr.ScValTypeScvU128, U128: &xdr.UInt128Parts{Hi: xdr.Uint64(hi), Lo: xdr.Uint64(lo)}}
}

func Bool(b bool) xdr.ScVal {
	return xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b}
}

func Void() xdr.ScVal {
	return xdr.ScVal{Type: xdr.ScValTypeScvVoid}
}

func Vec(items ...xdr.ScVal) xdr.ScVal {
	vec := xdr.ScVec(items)
	p := &vec
	return xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &p}
}

// Map builds a symbol-keyed map from alternating key/value arguments.
func Map(kv ...any) xdr.ScVal {
	var m xdr.ScMap
	for i := 0; i+1 < len(kv); i += 2 {
		m = append(m, xdr.ScMapEntry{Key: Sym(kv[i].(string)), Val: kv[i+1].(xdr.ScVal)})
	}
	p := &m
	return xdr.ScVal{Type: xdr.ScValTypeScvMap, Map: &p}
}

// Event builds a contract event with the given topics and data.
func Event(data xdr.ScVal, topics ...xdr.ScVal) xdr.ContractEvent {
	return xdr.ContractEvent{
		Type: xdr.ContractEventTypeContract,
		Body: xdr.ContractEventBody{
			V:  0,
			V0: &xdr.ContractEventV0{Topics: topics, Data: data},
		},
	}
}

// SystemEvent builds a non-contract event, which decoding ignores.
func SystemEvent(data xdr.ScVal, topics ...xdr.ScVal) xdr.ContractEvent {
	ev := Event(data, topics...)
	ev.Type = xdr.ContractEventTypeSystem
	return ev
}

// MetaV3 encodes events as soroban meta of a version 3 TransactionMeta.
func MetaV3(events ...xdr.ContractEvent) string {
	meta := xdr.TransactionMeta{
		V: 3,
		V3: &xdr.TransactionMetaV3{
			SorobanMeta: &xdr.SorobanTransactionMeta{
				Events:      events,
				ReturnValue: Void(),
			},
		},
	}
	return mustEncode(meta)
}

// MetaV4 encodes one operation per events slice in a version 4 TransactionMeta.
func MetaV4(ops ...[]xdr.ContractEvent) string {
	v4 := &xdr.TransactionMetaV4{}
	for _, events := range ops {
		v4.Operations = append(v4.Operations, xdr.OperationMetaV2{Events: events})
	}
	return mustEncode(xdr.TransactionMeta{V: 4, V4: v4})
}

// MetaV2 encodes an eventless version 2 TransactionMeta.
func MetaV2() string {
	return mustEncode(xdr.TransactionMeta{V: 2, V2: &xdr.TransactionMetaV2{}})
}

func mustEncode(meta xdr.TransactionMeta) string {
	s, err := xdr.MarshalBase64(meta)
	if err != nil {
		panic(err)
	}
	return s
}

// Contribution is a ContributionReceived event in the shape group contracts emit.
func Contribution(groupID, userID, wallet string, amount uint64, round uint32) xdr.ContractEvent {
	return Event(
		Map(
			"groupId", Str(groupID),
			"userId", Str(userID),
			"walletAddress", Str(wallet),
			"amount", I128(0, amount),
			"roundNumber", U32(round),
		),
		Sym("ContributionReceived"),
	)
}

// RoundCompleted is a RoundCompleted event naming the payout recipient.
func RoundCompleted(groupID, recipientUserID string) xdr.ContractEvent {
	return Event(
		Map(
			"groupId", Str(groupID),
			"payoutRecipientUserId", Str(recipientUserID),
		),
		Sym("RoundCompleted"),
	)
}
