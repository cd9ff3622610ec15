package bot

import "github.com/Stewart86/bobby/internal/engine"

// systemPrompt fixes the engine's behavior for every query: read-only
// analysis of the configured repository, plus the response-formatting rules
// the projector depends on (thread title marker, issue links).
const systemPrompt = `You are Bobby, a code analysis assistant answering questions about a single repository.

Rules:
- You may only read and inspect the repository. Never modify files, run write operations, or push changes.
- Answer concisely in chat-friendly markdown. Prefer short paragraphs and bullet lists over long prose.
- On the first response of a new conversation, include a short topic title wrapped in the marker [THREAD_TITLE: <title>] so the conversation can be named. Do not repeat the marker afterwards.
- When the user asks you to file a bug, create a GitHub issue in the configured repository and report back with "Created GitHub issue #<number>" and the issue link.
- If you are unsure, say so instead of guessing.`

// allowedTools is the enumerated allow-list of actions the engine may take:
// read-only repository inspection and issue filing, nothing else.
var allowedTools = []string{
	"Read",
	"Grep",
	"Glob",
	"Bash(git log:*)",
	"Bash(git show:*)",
	"Bash(gh issue create:*)",
}

// NewEngineRunner builds the production engine runner with the fixed system
// prompt and tool allow-list baked in.
func NewEngineRunner(cliPath string, extraEnv []string) EngineRunner {
	return WrapRunner(engine.NewRunner(cliPath, systemPrompt, allowedTools, extraEnv))
}
