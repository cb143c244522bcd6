//go:build !windows

package source

import (
	"io/fs"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

// platformAttrs reports no attribute bits; hidden is derived from the name.
func platformAttrs(_ string, _ fs.FileInfo) model.Attribute {
	return 0
}
