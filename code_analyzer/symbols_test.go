package code_analyzer

import (
	"testing"

	"github.com/meysamhadeli/codelve/code_analyzer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type symbolKey struct {
	name       string
	symbolType models.SymbolType
}

func keysOf(symbols []models.SymbolInfo) []symbolKey {
	keys := make([]symbolKey, 0, len(symbols))
	for _, s := range symbols {
		keys = append(keys, symbolKey{s.Name, s.Type})
	}
	return keys
}

func TestExtract_CFamily(t *testing.T) {
	content := `#include <vector>
#include "scanner.h"

#define MAX_DEPTH 16

class Scanner : public Base {
public:
    int scan(const char* path);
};

int main(int argc, char** argv) {
    if (argc > 1) {
        return 1;
    }
    while (run(argc)) {}
    return 0;
}
`
	symbols := NewSymbolExtractor().Extract("/src/main.cpp", content)

	keys := keysOf(symbols)
	assert.Contains(t, keys, symbolKey{"vector", models.SymbolInclude})
	assert.Contains(t, keys, symbolKey{"scanner.h", models.SymbolInclude})
	assert.Contains(t, keys, symbolKey{"Scanner", models.SymbolClass})
	assert.Contains(t, keys, symbolKey{"scan", models.SymbolFunction})
	assert.Contains(t, keys, symbolKey{"main", models.SymbolFunction})
	assert.Contains(t, keys, symbolKey{"MAX_DEPTH", models.SymbolConstant})

	for _, s := range symbols {
		assert.NotEqual(t, "if", s.Name)
		assert.NotEqual(t, "while", s.Name)
		assert.Equal(t, "/src/main.cpp", s.FilePath)
	}
}

func TestExtract_Python(t *testing.T) {
	content := "import os\nfrom collections import OrderedDict\n\nclass Indexer(Base):\n    def scan(self, root):\n        pass\n\ndef foo():\n    return 1\n"

	symbols := NewSymbolExtractor().Extract("/src/a.py", content)

	assert.Equal(t, []symbolKey{
		{"os", models.SymbolImport},
		{"collections", models.SymbolImport},
		{"Indexer", models.SymbolClass},
		{"scan", models.SymbolFunction},
		{"foo", models.SymbolFunction},
	}, keysOf(symbols))

	foo := symbols[4]
	assert.Equal(t, 8, foo.LineNumber)
	assert.Equal(t, "def foo():", foo.Signature)
	assert.Empty(t, foo.Documentation)
}

func TestExtract_PythonImportsMatchSimpleNames(t *testing.T) {
	content := "import os.path\nfrom . import helpers\nfrom pkg.sub import thing\n"

	symbols := NewSymbolExtractor().Extract("/src/b.py", content)

	assert.Equal(t, []symbolKey{
		{"os", models.SymbolImport},
		{"helpers", models.SymbolImport},
		{"thing", models.SymbolImport},
	}, keysOf(symbols))
	assert.Equal(t, []int{1, 2, 3}, []int{symbols[0].LineNumber, symbols[1].LineNumber, symbols[2].LineNumber})
}

func TestExtract_CFamilyRejectsControlKeywords(t *testing.T) {
	content := "void run() {\n    for each(items) {\n    }\n}\n"

	symbols := NewSymbolExtractor().Extract("/src/run.cpp", content)

	assert.Equal(t, []symbolKey{{"run", models.SymbolFunction}}, keysOf(symbols))
}

func TestExtract_JavaScript(t *testing.T) {
	content := `import React from 'react';
const fs = require("fs");

class Widget extends Component {
}

function render(props) {}
const handlers = {
  onClick: function(event) {},
};
helper = function(x) {};
const add = (a, b) => a + b;
`
	symbols := NewSymbolExtractor().Extract("/src/app.JS", content)

	keys := keysOf(symbols)
	assert.Contains(t, keys, symbolKey{"react", models.SymbolImport})
	assert.Contains(t, keys, symbolKey{"fs", models.SymbolImport})
	assert.Contains(t, keys, symbolKey{"Widget", models.SymbolClass})
	assert.Contains(t, keys, symbolKey{"render", models.SymbolFunction})
	assert.Contains(t, keys, symbolKey{"onClick", models.SymbolFunction})
	assert.Contains(t, keys, symbolKey{"helper", models.SymbolFunction})
	assert.Contains(t, keys, symbolKey{"add", models.SymbolFunction})
}

func TestExtract_LanguageAgnosticOrdering(t *testing.T) {
	content := "package main\n\n// TODO: handle retries\nconst MAX_RETRIES = 3\nfunc run() {}\n"

	symbols := NewSymbolExtractor().Extract("/src/main.go", content)

	require.Len(t, symbols, 2)

	todo := symbols[0]
	assert.Equal(t, "TODO", todo.Name)
	assert.Equal(t, models.SymbolComment, todo.Type)
	assert.Equal(t, "handle retries", todo.Documentation)
	assert.Equal(t, 3, todo.LineNumber)

	constant := symbols[1]
	assert.Equal(t, "MAX_RETRIES", constant.Name)
	assert.Equal(t, models.SymbolConstant, constant.Type)
	assert.Equal(t, 4, constant.LineNumber)
	assert.Empty(t, constant.Documentation)
}

func TestExtract_LanguageSpecificBeforeCommon(t *testing.T) {
	content := "# TODO fix me\ndef foo():\n    pass\n"

	symbols := NewSymbolExtractor().Extract("/src/a.py", content)

	assert.Equal(t, []symbolKey{
		{"foo", models.SymbolFunction},
		{"TODO", models.SymbolComment},
	}, keysOf(symbols))
}

func TestExtract_EmptyContent(t *testing.T) {
	assert.Empty(t, NewSymbolExtractor().Extract("/src/empty.py", ""))
}

func TestIndexedCode_AddSymbolsDedupsPaths(t *testing.T) {
	ic := models.NewIndexedCode("/src")
	extractor := NewSymbolExtractor()

	ic.AddSymbols(extractor.Extract("/src/a.py", "def foo():\n    pass\ndef foo():\n    pass\n"))
	ic.AddSymbols(extractor.Extract("/src/b.py", "def foo():\n    pass\n"))

	assert.Len(t, ic.SymbolDetails, 3)
	assert.Equal(t, []string{"/src/a.py", "/src/b.py"}, ic.Symbols["foo"])
	for name, paths := range ic.Symbols {
		assert.NotEmpty(t, paths, name)
	}
}

func TestSymbolType_String(t *testing.T) {
	assert.Equal(t, "include", models.SymbolInclude.String())
	assert.Equal(t, "import", models.SymbolImport.String())
	assert.Equal(t, "class", models.SymbolClass.String())
	assert.Equal(t, "function", models.SymbolFunction.String())
	assert.Equal(t, "constant", models.SymbolConstant.String())
	assert.Equal(t, "comment", models.SymbolComment.String())
	assert.Equal(t, "unknown", models.SymbolType(42).String())
}
