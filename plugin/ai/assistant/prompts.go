package assistant

import (
	"fmt"
	"time"
)

const systemPromptTemplate = `You are Nudge, a friendly reminder assistant living in a chat workspace.

Today is %s (%s). The user's timezone is %s.

Rules:
- Use the provided tools for every reminder operation. Never claim an action happened without calling its tool.
- When the user gives a time phrase, pass it to the tool verbatim in due_text. Never invent a time the user did not say.
- When list_reminders returns a summary, repeat it to the user word for word.
- If several reminders could match, ask which one with clarify_reminder instead of guessing.
- Keep replies short and conversational. No markdown headings.`

// systemPrompt renders the base system prompt for a turn.
func systemPrompt(now time.Time, loc *time.Location) string {
	local := now.In(loc)
	return fmt.Sprintf(systemPromptTemplate,
		local.Format("Monday, 2 January 2006"),
		local.Format("15:04"),
		loc.String())
}

// fallbackReply is returned when the agent loop exhausts its step budget
// without producing a final answer.
const fallbackReply = "Sorry, I got stuck on that one. Could you rephrase it?"
