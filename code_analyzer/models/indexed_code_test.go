package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolsOfType(t *testing.T) {
	ic := NewIndexedCode("/repo")
	ic.AddSymbols([]SymbolInfo{
		{Name: "os", Type: SymbolImport, FilePath: "/repo/a.py", LineNumber: 1},
		{Name: "foo", Type: SymbolFunction, FilePath: "/repo/a.py", LineNumber: 3},
		{Name: "bar", Type: SymbolFunction, FilePath: "/repo/a.py", LineNumber: 6},
	})

	functions := ic.SymbolsOfType(SymbolFunction)
	assert.Len(t, functions, 2)
	assert.Equal(t, "foo", functions[0].Name)
	assert.Equal(t, "bar", functions[1].Name)
	assert.Len(t, ic.SymbolsOfType(SymbolImport), 1)
	assert.Empty(t, ic.SymbolsOfType(SymbolClass))
}

func TestSymbolTypes_AllNamed(t *testing.T) {
	assert.Len(t, SymbolTypes, 6)
	for _, st := range SymbolTypes {
		assert.NotEqual(t, "unknown", st.String())
	}
}
