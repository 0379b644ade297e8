package localocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLinesDropsBlankLines(t *testing.T) {
	lines := splitLines("Amoxicillin 500mg\n\n  3x daily  \n\nfor 7 days\n")
	assert.Equal(t, []string{"Amoxicillin 500mg", "3x daily", "for 7 days"}, lines)
}

func TestSplitLinesEmpty(t *testing.T) {
	assert.Nil(t, splitLines("   \n \n"))
}

func TestIsPDF(t *testing.T) {
	assert.True(t, isPDF([]byte("%PDF-1.7 ..."), ""))
	assert.True(t, isPDF([]byte{0x00}, "application/pdf; charset=binary"))
	assert.False(t, isPDF([]byte{0x89, 0x50, 0x4e, 0x47}, "image/png"))
}
