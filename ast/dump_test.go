package ast

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumper(t *testing.T) {
	var buf bytes.Buffer
	NewDumper(&buf).Dump(MustParse(`~ year == 2021 & !(region %in% c("A", "B"))`))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)

	prefixes := []string{
		"And (",
		"  Comparison year == number(2021) (",
		"  Not (",
		"    In region (",
		`      Member 1: string("A")`,
		`      Member 2: string("B")`,
	}
	for i, prefix := range prefixes {
		assert.True(t, strings.HasPrefix(lines[i], prefix), "line %d: %q", i, lines[i])
	}
}

func TestDescribeLiteral(t *testing.T) {
	assert.Equal(t, "bool(true)", describeLiteral(true))
	assert.Equal(t, "number(-2.5)", describeLiteral(-2.5))
	assert.Equal(t, "nil", describeLiteral(nil))
}
