// Package decoder turns transaction result metadata into contract events.
package decoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

// ErrInvalidMeta is returned when the metadata blob cannot be decoded.
var ErrInvalidMeta = errors.New("invalid transaction meta")

// payloadNameKeys are probed when no topic names the event.
var payloadNameKeys = []string{"eventName", "event", "type"}

// Decode parses a base64 TransactionMeta and returns the recognized contract
// events it carries, in emission order. Unrecognized events are dropped. An
// empty blob yields no events.
func Decode(metaXDR string) ([]domain.ContractEvent, error) {
	metaXDR = strings.TrimSpace(metaXDR)
	if metaXDR == "" {
		return nil, nil
	}

	var meta xdr.TransactionMeta
	if err := xdr.SafeUnmarshalBase64(metaXDR, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMeta, err)
	}

	var out []domain.ContractEvent
	for _, raw := range ContractEvents(meta) {
		if ev, ok := convertEvent(raw); ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ContractEvents selects the event list matching the meta version. Only
// contract-type events are returned; system and diagnostic events are not.
func ContractEvents(meta xdr.TransactionMeta) []xdr.ContractEvent {
	var all []xdr.ContractEvent
	switch meta.V {
	case 3:
		v3, ok := meta.GetV3()
		if !ok || v3.SorobanMeta == nil {
			return nil
		}
		all = v3.SorobanMeta.Events
	case 4:
		v4, ok := meta.GetV4()
		if !ok {
			return nil
		}
		for _, op := range v4.Operations {
			all = append(all, op.Events...)
		}
	default:
		return nil
	}

	out := make([]xdr.ContractEvent, 0, len(all))
	for _, ev := range all {
		if ev.Type == xdr.ContractEventTypeContract {
			out = append(out, ev)
		}
	}
	return out
}

func convertEvent(raw xdr.ContractEvent) (domain.ContractEvent, bool) {
	body, ok := raw.Body.GetV0()
	if !ok {
		return domain.ContractEvent{}, false
	}

	topics := make([]domain.Value, len(body.Topics))
	for i, t := range body.Topics {
		topics[i] = ConvertScVal(t)
	}
	payload := payloadOf(ConvertScVal(body.Data))

	name, ok := resolveName(topics, payload)
	if !ok {
		return domain.ContractEvent{}, false
	}

	ev := domain.ContractEvent{
		Name:    name,
		Topics:  topics,
		Payload: payload,
	}
	if raw.ContractId != nil {
		if id, err := strkey.Encode(strkey.VersionByteContract, raw.ContractId[:]); err == nil {
			ev.ContractID = id
		}
	}
	return ev, true
}

// payloadOf exposes map data as the payload itself and wraps anything else
// under the "data" key.
func payloadOf(data domain.Value) domain.Payload {
	switch data.Kind {
	case domain.KindMap:
		return domain.Payload(data.Map)
	case domain.KindNull:
		return domain.Payload{}
	default:
		return domain.Payload{"data": data}
	}
}

func resolveName(topics []domain.Value, payload domain.Payload) (domain.EventName, bool) {
	for _, t := range topics {
		if s, ok := t.AsString(); ok {
			if name, ok := domain.ParseEventName(s); ok {
				return name, true
			}
		}
	}
	for _, key := range payloadNameKeys {
		if s := payload.String(key); s != "" {
			if name, ok := domain.ParseEventName(s); ok {
				return name, true
			}
		}
	}
	return "", false
}
