// Package units provides size unit multipliers and human-readable formatting.
package units

import "github.com/dustin/go-humanize"

// Binary size multipliers.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

// Decimal size multipliers, used where the destination platform documents
// its limits in SI units.
const (
	KB = 1000
	MB = 1000 * KB
	GB = 1000 * MB
)

// Bytes renders a byte count with binary units, e.g. "5.0 GiB".
// Negative values render as zero.
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}

	return humanize.IBytes(uint64(n))
}

// Parse converts a human size string ("512MB", "2GiB", "1024") to bytes.
func Parse(s string) (int64, error) {
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}

	if v > uint64(^uint64(0)>>1) {
		return 0, ErrSizeOverflow
	}

	return int64(v), nil
}
