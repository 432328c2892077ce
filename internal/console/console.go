// Package console prints the user-facing section markers and SSH hints that
// make up the tool's terminal output. Everything here is plain stdout, not
// logging; the output format is part of the CLI contract.
package console

import (
	"fmt"
	"io"
	"strings"
)

const dividerWidth = 80

// Divider prints a section marker like:
//
//	-------------------- Deploying infrastructure --------------------
func Divider(w io.Writer, title string) {
	pad := dividerWidth - len(title) - 2
	if pad < 2 {
		pad = 2
	}
	left := pad / 2
	right := pad - left
	fmt.Fprintf(w, "%s %s %s\n", strings.Repeat("-", left), title, strings.Repeat("-", right))
}
