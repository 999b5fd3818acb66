package embed_data

import _ "embed"

//go:embed prompts/code_template.txt
var CodePromptTemplate []byte

//go:embed prompts/general_template.txt
var GeneralPromptTemplate []byte

//go:embed prompts/help.md
var HelpText []byte
