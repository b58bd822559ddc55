package tools

const (
	ToolNameWriteFullFile    = "write_full_file"
	ToolNameStrReplace       = "str_replace"
	ToolNameAskClarification = "ask_clarification"
	ToolNameWebSearch        = "web_search"
	ToolNameFinish           = "finish"
)
