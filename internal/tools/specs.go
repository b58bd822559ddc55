package tools

// WriteFullFileToolSpec is the static specification for the write_full_file tool.
// The Simple variant drops the page summary and component map fields.
type WriteFullFileToolSpec struct {
	Simple bool
}

func (s *WriteFullFileToolSpec) Name() string {
	return ToolNameWriteFullFile
}

func (s *WriteFullFileToolSpec) Description() string {
	if s.Simple {
		return "Write the complete HTML file from scratch. " +
			"Called once to produce the full page. " +
			"Must be a complete, valid, self-contained HTML document."
	}
	return "Write a complete HTML file from scratch. " +
		"Use this when building a new page, doing a full redesign, " +
		"or when changes affect more than 40 percent of the file. " +
		"Must produce a complete valid self-contained HTML document."
}

func (s *WriteFullFileToolSpec) Parameters() map[string]interface{} {
	if s.Simple {
		return map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"html": map[string]interface{}{
					"type":        "string",
					"description": "The complete HTML file content including doctype, head, and body.",
				},
				"summary": map[string]interface{}{
					"type":        "string",
					"description": "A short 1-2 sentence description of what was built, shown to the user.",
				},
			},
			"required": []string{"html", "summary"},
		}
	}

	props := map[string]interface{}{
		"html": map[string]interface{}{
			"type":        "string",
			"description": "The complete HTML file including doctype, head, and body.",
		},
		"summary": map[string]interface{}{
			"type":        "string",
			"description": "1-2 sentence description of what was built.",
		},
	}

	props["html_summary"] = map[string]interface{}{
		"type":        "string",
		"description": "A 300-500 word plain text description of what this page is, its sections, its state shape, and the key JS logic. Used as context for future edits.",
	}
	props["component_map"] = map[string]interface{}{
		"type":        "array",
		"description": "Array of key components/sections in the page.",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id":          map[string]interface{}{"type": "string"},
				"selector":    map[string]interface{}{"type": "string"},
				"type":        map[string]interface{}{"type": "string"},
				"description": map[string]interface{}{"type": "string"},
			},
		},
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"html", "summary", "html_summary", "component_map"},
	}
}

// StrReplaceToolSpec is the static specification for the str_replace tool
type StrReplaceToolSpec struct {
	Simple bool
}

func (s *StrReplaceToolSpec) Name() string {
	return ToolNameStrReplace
}

func (s *StrReplaceToolSpec) Description() string {
	if s.Simple {
		return "Replace an exact string in the current HTML with new content. " +
			"The old_str must match EXACTLY as it appears in the file: " +
			"same whitespace, same indentation. " +
			"Call this multiple times for multiple independent changes."
	}
	return "Replace an exact string in the current HTML with new content. " +
		"old_str must match EXACTLY as it appears in the file including whitespace and indentation. " +
		"Call multiple times for multiple independent changes. " +
		"Never use this to replace more than 60 percent of the file."
}

func (s *StrReplaceToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"old_str": map[string]interface{}{
				"type":        "string",
				"description": "The exact string to find and replace. Must be unique in the file.",
			},
			"new_str": map[string]interface{}{
				"type":        "string",
				"description": "The replacement string.",
			},
		},
		"required": []string{"old_str", "new_str"},
	}
}

// AskClarificationToolSpec is the static specification for the ask_clarification tool
type AskClarificationToolSpec struct{}

func (s *AskClarificationToolSpec) Name() string {
	return ToolNameAskClarification
}

func (s *AskClarificationToolSpec) Description() string {
	return "Ask the user one precise clarifying question before proceeding. " +
		"Only call this when the user intent is genuinely ambiguous and the answer would significantly change what you build. " +
		"Do not ask about cosmetic choices. Do not ask more than one question."
}

func (s *AskClarificationToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"question": map[string]interface{}{
				"type":        "string",
				"description": "The single clarifying question to ask the user.",
			},
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Why this information is necessary to proceed correctly.",
			},
		},
		"required": []string{"question", "reason"},
	}
}

// WebSearchToolSpec is the static specification for the web_search tool
type WebSearchToolSpec struct{}

func (s *WebSearchToolSpec) Name() string {
	return ToolNameWebSearch
}

func (s *WebSearchToolSpec) Description() string {
	return "Search the web for current information. " +
		"Use only when the task requires knowing a specific CDN URL, library API, real-time data, or something not in your training. " +
		"Do not use for general HTML/CSS/JS knowledge."
}

func (s *WebSearchToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query.",
			},
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Why this search is needed.",
			},
		},
		"required": []string{"query", "reason"},
	}
}

// FinishToolSpec is the static specification for the finish tool
type FinishToolSpec struct {
	Simple bool
}

func (s *FinishToolSpec) Name() string {
	return ToolNameFinish
}

func (s *FinishToolSpec) Description() string {
	if s.Simple {
		return "Signal that all edits are complete. Must be called once at the end."
	}
	return "Signal that all edits are complete. Must be called once at the end of every surgical edit session."
}

func (s *FinishToolSpec) Parameters() map[string]interface{} {
	summary := "1-2 sentence human readable summary of what was changed."
	if s.Simple {
		summary = "A short 1-2 sentence human-readable summary of what was changed."
	}
	props := map[string]interface{}{
		"summary": map[string]interface{}{
			"type":        "string",
			"description": summary,
		},
	}
	required := []string{"summary"}
	if !s.Simple {
		props["updated_component_ids"] = map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": "List of component ids from the component_map that were modified.",
		}
		required = append(required, "updated_component_ids")
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
