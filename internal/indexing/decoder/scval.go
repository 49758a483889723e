package decoder

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/stellar/go/xdr"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

// ConvertScVal maps a contract value onto the generic Value union.
func ConvertScVal(val xdr.ScVal) domain.Value {
	switch val.Type {
	case xdr.ScValTypeScvVoid:
		return domain.NullValue()
	case xdr.ScValTypeScvBool:
		return domain.BoolValue(val.MustB())

	case xdr.ScValTypeScvU32:
		return domain.NumberValue(strconv.FormatUint(uint64(val.MustU32()), 10))
	case xdr.ScValTypeScvI32:
		return domain.NumberValue(strconv.FormatInt(int64(val.MustI32()), 10))
	case xdr.ScValTypeScvU64:
		return domain.NumberValue(strconv.FormatUint(uint64(val.MustU64()), 10))
	case xdr.ScValTypeScvI64:
		return domain.NumberValue(strconv.FormatInt(int64(val.MustI64()), 10))
	case xdr.ScValTypeScvTimepoint:
		return domain.NumberValue(strconv.FormatUint(uint64(val.MustTimepoint()), 10))
	case xdr.ScValTypeScvDuration:
		return domain.NumberValue(strconv.FormatUint(uint64(val.MustDuration()), 10))
	case xdr.ScValTypeScvU128:
		return domain.NumberValue(uint128ToString(val.MustU128()))
	case xdr.ScValTypeScvI128:
		return domain.NumberValue(int128ToString(val.MustI128()))
	case xdr.ScValTypeScvU256:
		return domain.NumberValue(uint256ToString(val.MustU256()))
	case xdr.ScValTypeScvI256:
		return domain.NumberValue(int256ToString(val.MustI256()))

	case xdr.ScValTypeScvSymbol:
		return domain.StringValue(string(val.MustSym()))
	case xdr.ScValTypeScvString:
		return domain.StringValue(string(val.MustStr()))
	case xdr.ScValTypeScvAddress:
		addr := val.MustAddress()
		s, err := addr.String()
		if err != nil {
			return domain.NullValue()
		}
		return domain.StringValue(s)
	case xdr.ScValTypeScvBytes:
		return domain.BytesValue(hex.EncodeToString(val.MustBytes()))

	case xdr.ScValTypeScvVec:
		vec, ok := val.GetVec()
		if !ok || vec == nil {
			return domain.ListValue()
		}
		items := make([]domain.Value, len(*vec))
		for i, item := range *vec {
			items[i] = ConvertScVal(item)
		}
		return domain.ListValue(items...)

	case xdr.ScValTypeScvMap:
		m, ok := val.GetMap()
		if !ok || m == nil {
			return domain.MapValue(nil)
		}
		out := make(map[string]domain.Value, len(*m))
		for _, entry := range *m {
			key, ok := ConvertScVal(entry.Key).AsString()
			if !ok {
				continue
			}
			out[key] = ConvertScVal(entry.Val)
		}
		return domain.MapValue(out)

	default:
		// Errors, ledger keys and contract instances carry nothing handlers use
		return domain.NullValue()
	}
}

// Helper functions for large integer conversions

func uint128ToString(val xdr.UInt128Parts) string {
	hi := new(big.Int).SetUint64(uint64(val.Hi))
	lo := new(big.Int).SetUint64(uint64(val.Lo))
	hi.Lsh(hi, 64)
	return hi.Add(hi, lo).String()
}

func int128ToString(val xdr.Int128Parts) string {
	hi := big.NewInt(int64(val.Hi))
	lo := new(big.Int).SetUint64(uint64(val.Lo))
	hi.Lsh(hi, 64)
	return hi.Add(hi, lo).String()
}

func uint256ToString(val xdr.UInt256Parts) string {
	result := new(big.Int)
	for _, part := range []xdr.Uint64{val.HiHi, val.HiLo, val.LoHi, val.LoLo} {
		result.Lsh(result, 64)
		result.Add(result, new(big.Int).SetUint64(uint64(part)))
	}
	return result.String()
}

func int256ToString(val xdr.Int256Parts) string {
	result := big.NewInt(int64(val.HiHi))
	for _, part := range []xdr.Uint64{val.HiLo, val.LoHi, val.LoLo} {
		result.Lsh(result, 64)
		result.Add(result, new(big.Int).SetUint64(uint64(part)))
	}
	return result.String()
}
