package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDivider(t *testing.T) {
	var buf bytes.Buffer
	Divider(&buf, "Running tests")
	got := strings.TrimSuffix(buf.String(), "\n")

	assert.Len(t, got, 80)
	assert.Contains(t, got, " Running tests ")
	assert.True(t, strings.HasPrefix(got, "-"))
	assert.True(t, strings.HasSuffix(got, "-"))
}

func TestDividerLongTitle(t *testing.T) {
	var buf bytes.Buffer
	long := strings.Repeat("x", 100)
	Divider(&buf, long)

	// Long titles still get at least one dash on each side.
	assert.Contains(t, buf.String(), "- "+long+" -")
}
