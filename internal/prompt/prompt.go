// Package prompt renders the system and planning prompts handed to the model.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/document"
)

//go:embed knowledge.md
var knowledge string

// Knowledge returns the embedded HTML/CSS/JS knowledge base.
func Knowledge() string {
	return strings.TrimSpace(knowledge)
}

// HistoryItem is one edit history row as shown to the model.
type HistoryItem struct {
	Complexity  string
	Decision    string
	Description string
	Success     bool
}

// ChatItem is one chat message as shown to the model.
type ChatItem struct {
	Role    string
	Content string
}

// Context is everything the system prompt describes about the page.
type Context struct {
	HTML        string
	Summary     string
	Components  []document.Component
	EditHistory []HistoryItem
	ChatHistory []ChatItem
}

const (
	noSummary    = "No summary yet. This appears to be a new page."
	noComponents = "None yet."
	noEdits      = "No previous edits."
	noMessages   = "No previous messages."
)

func renderComponents(components []document.Component) string {
	if len(components) == 0 {
		return noComponents
	}
	lines := make([]string, 0, len(components))
	for _, c := range components {
		lines = append(lines, fmt.Sprintf("  - [%s] %s - %s", c.ID, c.Selector, c.Description))
	}
	return strings.Join(lines, "\n")
}

func renderEditHistory(items []HistoryItem) string {
	if len(items) == 0 {
		return noEdits
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		desc := item.Description
		if desc == "" {
			desc = "edit"
		}
		complexity := item.Complexity
		if complexity == "" {
			complexity = "simple"
		}
		decision := item.Decision
		if decision == "" {
			decision = "surgical"
		}
		outcome := "succeeded"
		if !item.Success {
			outcome = "failed"
		}
		lines = append(lines, fmt.Sprintf("  - [%s/%s] %s (%s)", complexity, decision, desc, outcome))
	}
	return strings.Join(lines, "\n")
}

func renderChatHistory(items []ChatItem) string {
	if len(items) == 0 {
		return noMessages
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		content := item.Content
		if runes := []rune(content); len(runes) > consts.ChatPreviewChars {
			content = string(runes[:consts.ChatPreviewChars]) + "..."
		}
		lines = append(lines, fmt.Sprintf("  %s: %s", strings.ToUpper(item.Role), content))
	}
	return strings.Join(lines, "\n")
}

// BuildSystemPrompt renders the system prompt of the planned tool loop.
func BuildSystemPrompt(c Context) string {
	summary := c.Summary
	if summary == "" {
		summary = noSummary
	}

	var sb strings.Builder
	sb.WriteString("You are an elite HTML/CSS/JS developer. You build stunning, complete, production-quality single-file web pages.\n\n")

	section := func(title, body string) {
		sb.WriteString(title)
		sb.WriteString("\n")
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}
	section("HTML/CSS/JS KNOWLEDGE BASE", Knowledge())
	section("CURRENT PAGE SUMMARY", summary)
	section("COMPONENT MAP", renderComponents(c.Components))
	section("RECENT EDIT HISTORY", renderEditHistory(c.EditHistory))
	section("RECENT CHAT HISTORY", renderChatHistory(c.ChatHistory))
	section("CURRENT HTML FILE", c.HTML)

	sb.WriteString(rules)
	return sb.String()
}

const rules = `TOOLS AVAILABLE
- write_full_file: write the entire HTML from scratch
- str_replace: surgical replacement of an exact string in the file
- ask_clarification: ask the user one question before proceeding
- web_search: search the web for specific external info
- finish: signal completion after surgical edits

DECISION RULES

Use write_full_file when:
- The page is new or contains the boilerplate placeholder
- User asks to redesign, redo, rebuild, or start over
- Requested changes affect more than 40 percent of the file
- The current HTML is broken or structurally invalid
- A new major layout or architecture is requested

Use str_replace when:
- The page already exists and the change is localized
- User says just, only, slightly, fix, add, remove, update, change
- Change is isolated to one or a few components

Use ask_clarification when:
- The user intent is genuinely ambiguous and the answer would significantly change what you build
- Cosmetic ambiguity: never ask, decide yourself
- Ask at most one question, never multiple

Use web_search when:
- You need a specific CDN URL or version number you are unsure about
- The task references a specific external API or real-time data
- Do not search for general HTML/CSS/JS knowledge

PLANNING REQUIREMENT
Before calling any code tool, you must reason through:
1. What exactly is being asked
2. What the simplest complete solution is
3. Which components will change and in what order
4. Whether any change depends on another change happening first
5. Whether to write_full_file or str_replace

For surgical edits with dependencies, apply changes in order:
foundational changes first (CSS variables, base styles) then component changes then JS changes.

QUALITY RULES
- Always produce beautiful, polished, professional output
- Use Google Fonts, good typography, proper spacing
- All CSS in a style tag in head. All JS in a script tag before closing body.
- No placeholder lorem ipsum text. Write real contextual content.
- Every page must work completely standalone with no external server
- After write_full_file or after the last str_replace, always call finish
`

// BuildPlanningPrompt renders the user turn of the planning call.
func BuildPlanningPrompt(request string) string {
	return `Analyze this request and produce a structured plan before writing any code.

USER REQUEST: ` + request + `

Respond with a JSON object with these fields:
{
  "decision": "full_rewrite" or "surgical_edit",
  "complexity": "simple" or "moderate" or "complex",
  "confidence": 0.0 to 1.0,
  "needs_clarification": true or false,
  "clarification_question": "question if needed, else null",
  "description": "one sentence summary of what will be done",
  "changes": [
    {
      "order": 1,
      "target": "what element or section",
      "what": "what will change",
      "depends_on": []
    }
  ],
  "needs_web_search": true or false,
  "search_query": "query if needed, else null"
}

Only respond with the JSON object. No explanation. No markdown fences.
`
}

// ClarificationFollowUp folds the answer to an earlier question into the
// request that continues the original task.
func ClarificationFollowUp(question, answer string) string {
	return fmt.Sprintf("Earlier you asked: %s\nUser answered: %s\nNow proceed with the original task using this information.", question, answer)
}

// SearchContext renders pre-loop search results for the system prompt.
func SearchContext(query, formatted string) string {
	return fmt.Sprintf("\nWEB SEARCH RESULTS for '%s':\n%s\n", query, formatted)
}

// WithExtras appends non-empty context blocks to a system prompt, each
// separated by a blank line.
func WithExtras(system string, extras ...string) string {
	var sb strings.Builder
	sb.WriteString(system)
	for _, extra := range extras {
		if extra == "" {
			continue
		}
		sb.WriteString("\n\n")
		sb.WriteString(extra)
	}
	return sb.String()
}

// CreateSystemPrompt frames the forced write of a brand new page.
const CreateSystemPrompt = `You are an elite HTML/CSS/JS developer building single-page web experiences.

Your job: take the user's description and produce a stunning, complete, self-contained HTML page.

RULES:
- Call write_full_file ONCE with the complete HTML
- The HTML must be a full document: <!DOCTYPE html>, <head>, <body>
- Make it beautiful: use Google Fonts, good typography, proper spacing
- All CSS must be inline in a <style> tag in <head>
- All JS must be inline in a <script> tag before </body>
- No external dependencies except Google Fonts CDN
- Do NOT use placeholder lorem ipsum text, write real, contextual content
- After write_full_file, you are done. Do not call any other tools.`

// SimpleEditPrompt frames a patch-only session over html.
func SimpleEditPrompt(html string) string {
	return `You are an elite HTML/CSS/JS developer performing surgical edits to an existing page.

CURRENT HTML FILE:
` + html + `

RULES:
- Use str_replace for every change: find the exact string, replace it
- old_str must match EXACTLY (whitespace, indentation, everything)
- Make multiple str_replace calls for multiple independent changes
- Do NOT rewrite large blocks unnecessarily, only change what was asked
- After all edits are done, call finish with a summary
- Do NOT call write_full_file`
}
