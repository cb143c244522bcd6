//go:build windows

package source

import (
	"io/fs"

	"golang.org/x/sys/windows"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

func platformAttrs(path string, _ fs.FileInfo) model.Attribute {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0
	}

	raw, err := windows.GetFileAttributes(p)
	if err != nil {
		return 0
	}

	var attrs model.Attribute

	if raw&windows.FILE_ATTRIBUTE_HIDDEN != 0 {
		attrs |= model.AttrHidden
	}

	if raw&windows.FILE_ATTRIBUTE_SYSTEM != 0 {
		attrs |= model.AttrSystem
	}

	if raw&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0 {
		attrs |= model.AttrReparse
	}

	return attrs
}
