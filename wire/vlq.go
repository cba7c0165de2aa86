package wire

import "errors"

var ErrTruncatedVLQ = errors.New("wire: truncated VLQ value")

// AppendVLQUint appends v in base-128 VLQ encoding, most significant
// group first, continuation bit 0x80.
func AppendVLQUint(dst []byte, v uint32) []byte {
	if v >= 1<<28 {
		dst = append(dst, byte(v>>28)|0x80)
	}
	if v >= 1<<21 {
		dst = append(dst, byte(v>>21)&0x7F|0x80)
	}
	if v >= 1<<14 {
		dst = append(dst, byte(v>>14)&0x7F|0x80)
	}
	if v >= 1<<7 {
		dst = append(dst, byte(v>>7)&0x7F|0x80)
	}
	return append(dst, byte(v&0x7F))
}

// DecodeVLQUint decodes a VLQ value from the front of *data, advancing
// the slice past the consumed bytes.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	if len(*data) == 0 {
		return 0, ErrTruncatedVLQ
	}
	c := uint32((*data)[0])
	*data = (*data)[1:]
	v := c & 0x7F
	for c&0x80 != 0 {
		if len(*data) == 0 {
			return 0, ErrTruncatedVLQ
		}
		c = uint32((*data)[0])
		*data = (*data)[1:]
		v = v<<7 | c&0x7F
	}
	return v, nil
}
