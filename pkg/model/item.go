package model

import (
	"path"
	"strings"
)

// Attribute flags reported by the platform for an item.
type Attribute uint8

// Attribute bits.
const (
	AttrHidden Attribute = 1 << iota
	AttrSystem
	AttrReparse
)

// Has reports whether all bits in flag are set.
func (a Attribute) Has(flag Attribute) bool {
	return a&flag == flag
}

// Item is one file-system entry produced by an item source.
//
// RelPath is slash-separated and relative to the scan root; it never starts
// with a slash and is never ".".
type Item struct {
	Path    string
	Name    string
	RelPath string
	IsDir   bool
	Size    int64
	Attrs   Attribute
}

// Parent returns the slash-separated relative path of the item's parent, or
// "" for direct children of the scan root.
func (i *Item) Parent() string {
	return ParentOf(i.RelPath)
}

// Ext returns the lowercased final extension including the dot, or "".
func (i *Item) Ext() string {
	return strings.ToLower(path.Ext(i.Name))
}

// Hidden reports whether the item is hidden by name or by attribute.
func (i *Item) Hidden() bool {
	return strings.HasPrefix(i.Name, ".") || i.Attrs.Has(AttrHidden)
}

// ParentOf returns the parent of a slash-separated relative path, "" at the root.
func ParentOf(rel string) string {
	idx := strings.LastIndexByte(rel, '/')
	if idx < 0 {
		return ""
	}

	return rel[:idx]
}

// Ancestors calls fn for every ancestor directory of rel, nearest first,
// excluding the scan root itself.
func Ancestors(rel string, fn func(dir string)) {
	for dir := ParentOf(rel); dir != ""; dir = ParentOf(dir) {
		fn(dir)
	}
}

// IsWithin reports whether rel equals dir or lies beneath it.
func IsWithin(rel, dir string) bool {
	if dir == "" {
		return true
	}

	return rel == dir || strings.HasPrefix(rel, dir+"/")
}
