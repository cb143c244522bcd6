package units

import "errors"

// ErrSizeOverflow is returned when a parsed size does not fit in int64.
var ErrSizeOverflow = errors.New("size overflows int64")
