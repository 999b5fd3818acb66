package config

import "github.com/meysamhadeli/codelve/embed_data"

// Configuration keys. Nested keys use '.' so they map onto YAML/JSON sections.
const (
	KeyLogLevel      = "log_level"
	KeyAssistantName = "app.assistant_name"
	KeyTheme         = "ui.theme"

	KeyMaxFileSize         = "scanner.max_file_size_bytes"
	KeyMaxFileCount        = "scanner.max_file_count"
	KeyMaxLineCount        = "scanner.max_line_count"
	KeySupportedExtensions = "scanner.supported_extensions"
	KeyExcludeDirectories  = "scanner.exclude_directories"
	KeyIgnorePatterns      = "scanner.ignore_patterns"
	KeyEnableCache         = "scanner.enable_cache"
	KeyCacheDir            = "scanner.cache_dir"

	KeyMaxIndexBytes = "memory.max_index_bytes"

	KeyMaxContextSize    = "llm.max_context_size"
	KeyMaxHistory        = "context.max_history"
	KeyMaxRelevantFiles  = "context.max_relevant_files"
	KeyCodeTemplate      = "prompts.code_template"
	KeyGeneralTemplate   = "prompts.general_template"
	KeyProvider          = "llm.provider"
	KeyBaseURL           = "llm.base_url"
	KeyModel             = "llm.model"
	KeyTemperature       = "llm.temperature"
	KeyMaxTokens         = "llm.max_tokens"
	KeyTopP              = "llm.top_p"
	KeyPresencePenalty   = "llm.presence_penalty"
	KeyFrequencyPenalty  = "llm.frequency_penalty"
	KeyStopSequences     = "llm.stop_sequences"
	KeyStream            = "llm.stream"
	KeyPreloadModel      = "llm.preload_model"
)

const (
	DefaultSupportedExtensions = ".cpp,.h,.hpp,.c,.cs,.java,.py,.js,.ts,.go,.rs,.php,.rb,.swift,.kt,.scala"
	DefaultExcludeDirectories  = "node_modules,build,dist,target,bin,obj,.git,.svn,.hg,.vs,.idea,venv,__pycache__"
)

// Defaults holds the value used for every key when no other source sets it.
var Defaults = map[string]interface{}{
	KeyLogLevel:      "info",
	KeyAssistantName: "CodeLve",
	KeyTheme:         "dracula",

	KeyMaxFileSize:         int64(10 * 1024 * 1024),
	KeyMaxFileCount:        10000,
	KeyMaxLineCount:        10000,
	KeySupportedExtensions: DefaultSupportedExtensions,
	KeyExcludeDirectories:  DefaultExcludeDirectories,
	KeyIgnorePatterns:      "",
	KeyEnableCache:         false,
	KeyCacheDir:            "",

	KeyMaxIndexBytes: int64(0),

	KeyMaxContextSize:   8192,
	KeyMaxHistory:       10,
	KeyMaxRelevantFiles: 5,
	KeyCodeTemplate:     string(embed_data.CodePromptTemplate),
	KeyGeneralTemplate:  string(embed_data.GeneralPromptTemplate),
	KeyProvider:         "stub",
	KeyBaseURL:          "http://localhost:11434/api",
	KeyModel:            "codellama",
	KeyTemperature:      0.7,
	KeyMaxTokens:        1024,
	KeyTopP:             0.95,
	KeyPresencePenalty:  0.0,
	KeyFrequencyPenalty: 0.0,
	KeyStopSequences:    "",
	KeyStream:           false,
	KeyPreloadModel:     false,
}
