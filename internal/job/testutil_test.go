package job

import (
	"encoding/binary"
	"errors"
	"math"
)

var errBadPayload = errors.New("job: malformed payload")

func float64ToBytes(v float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

func bytesToFloat64(buf []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf))
}
