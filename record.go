package cratedig

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/learn-decentralized-systems/toytlv"

	"github.com/cratedig/cratedig/cratedig_errors"
)

// Stored values are TLV-framed with an integrity footer:
//
//	<lit> ( H <xxhash64 of body> ) ( B <json body> )
//
// lit is 'P' for posts and 'U' for users. The hash catches torn or
// bit-rotted records before they turn into surprising JSON errors.

func Seal(lit byte, body []byte) []byte {
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], xxhash.Sum64(body))
	return toytlv.Record(lit,
		toytlv.Record('H', sum[:]),
		toytlv.Record('B', body),
	)
}

func Unseal(lit byte, data []byte) (body []byte, err error) {
	rec, rest := toytlv.Take(lit, data)
	if rec == nil || len(rest) != 0 {
		return nil, cratedig_errors.ErrCorruptRecord
	}
	sum, rest := toytlv.Take('H', rec)
	if len(sum) != 8 {
		return nil, cratedig_errors.ErrCorruptRecord
	}
	body, rest = toytlv.Take('B', rest)
	if body == nil || len(rest) != 0 {
		return nil, cratedig_errors.ErrCorruptRecord
	}
	if binary.BigEndian.Uint64(sum) != xxhash.Sum64(body) {
		return nil, cratedig_errors.ErrCorruptRecord
	}
	return body, nil
}
