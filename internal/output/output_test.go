package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_NonTTYOmitsIcons(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Success("ingest complete")

	// A bytes.Buffer is never a terminal, so no icon prefix.
	assert.Equal(t, "ingest complete\n", buf.String())
}

func TestStatusf_Formats(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Statusf("", "found %d results for %q", 3, "fox")

	assert.Equal(t, "found 3 results for \"fox\"\n", buf.String())
}

func TestWarningAndError(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Warning("vault directory missing")
	w.Errorf("open store: %s", "disk full")
	w.Newline()

	assert.Equal(t, "vault directory missing\nopen store: disk full\n\n", buf.String())
}
