package knxnet

import "fmt"

// region returns a destination slice with at least n writable bytes at offset.
//
// A nil dst means the caller wants an owned buffer: a zeroed slice of exactly
// offset+n bytes is allocated. A non-nil dst is borrowed and returned as-is
// (no copy) provided it has room; otherwise ErrBufferTooSmall is returned.
//
// Every encoder goes through region, so no codec writes past a caller's
// slice and none under-allocates.
func region(dst []byte, offset, n int) ([]byte, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: negative offset %d", ErrBufferTooSmall, offset)
	}
	if dst == nil {
		return make([]byte, offset+n), nil
	}
	if len(dst)-offset < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrBufferTooSmall, n, offset, max(len(dst)-offset, 0))
	}
	return dst, nil
}

// borrow is region for the EncodeTo entry points, which return no buffer:
// a nil dst fails with ErrBufferTooSmall instead of allocating a region the
// caller never sees.
func borrow(dst []byte, offset, n int) ([]byte, error) {
	if dst == nil {
		return nil, fmt.Errorf("%w: nil destination, use Encode for an owned buffer", ErrBufferTooSmall)
	}
	return region(dst, offset, n)
}

// remaining checks that b holds at least n bytes from offset and returns the
// window b[offset:offset+n].
func remaining(b []byte, offset, n int, what string) ([]byte, error) {
	if offset < 0 || offset > len(b) {
		return nil, fmt.Errorf("%w: offset %d outside %d-byte input", ErrBufferTooSmall, offset, len(b))
	}
	if len(b)-offset < n {
		return nil, errShort(what, n, len(b)-offset)
	}
	return b[offset : offset+n], nil
}
