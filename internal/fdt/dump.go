package fdt

import (
	"fmt"
	"io"
	"strings"
)

// Dump renders the structure block to w, one line per node or property,
// indented by depth. It is a debug aid for operators, built on top of Walk
// rather than a second parser, the way the reader's original print() method
// walked the same tree it parsed.
func Dump(f *FDT, w io.Writer) error {
	return f.Walk(Walker{
		OnNode: func(path, unitAddr []string) bool {
			indent := strings.Repeat("  ", len(path)-1)
			name := path[len(path)-1]
			if ua := unitAddr[len(unitAddr)-1]; ua != "" {
				name += "@" + ua
			}
			if name == "" {
				name = "/"
			}
			fmt.Fprintf(w, "%s%s {\n", indent, name)
			return false
		},
		OnProperty: func(path, unitAddr []string, name string, value []byte, _ int) {
			indent := strings.Repeat("  ", len(path))
			fmt.Fprintf(w, "%s%s = %q;\n", indent, name, AsString(value))
		},
	})
}
