package assistant

import (
	"github.com/sashabaranov/go-openai"
)

// Tool names exposed to the model.
const (
	ToolCreateReminder   = "create_reminder"
	ToolUpdateReminder   = "update_reminder"
	ToolCompleteReminder = "complete_reminder"
	ToolSnoozeReminder   = "snooze_reminder"
	ToolListReminders    = "list_reminders"
	ToolSearchReminders  = "search_reminders"
	ToolDeleteReminder   = "delete_reminder"
	ToolSetPreference    = "set_preference"
	ToolGetPreferences   = "get_preferences"
	ToolListRescheduled  = "list_rescheduled"
	ToolClarifyReminder  = "clarify_reminder"
)

// Argument payloads for each tool, decoded from the model's JSON.

type createReminderArgs struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueText     string `json:"due_text,omitempty"`
}

type updateReminderArgs struct {
	ReminderID  int64  `json:"reminder_id,omitempty"`
	Title       string `json:"title,omitempty"`
	NewTitle    string `json:"new_title,omitempty"`
	Description string `json:"description,omitempty"`
	DueText     string `json:"due_text,omitempty"`
}

type reminderRefArgs struct {
	ReminderID int64  `json:"reminder_id,omitempty"`
	Title      string `json:"title,omitempty"`
}

type snoozeReminderArgs struct {
	ReminderID int64  `json:"reminder_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Minutes    int64  `json:"minutes,omitempty"`
	DueText    string `json:"due_text,omitempty"`
}

type listRemindersArgs struct {
	Filter string `json:"filter,omitempty"`
}

type searchRemindersArgs struct {
	Query string `json:"query"`
}

type setPreferenceArgs struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type clarifyReminderArgs struct {
	Question string  `json:"question"`
	Matches  []int64 `json:"matches"`
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func strProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func intProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func tool(name, description string, parameters map[string]any) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Tools returns the tool definitions handed to the model on every step.
func Tools() []openai.Tool {
	return []openai.Tool{
		tool(ToolCreateReminder,
			"Create a reminder. Pass the user's time phrase verbatim in due_text; never invent a time.",
			objectSchema(map[string]any{
				"title":       strProp("Short title of what to remind about"),
				"description": strProp("Optional extra detail"),
				"due_text":    strProp("The user's own words for when, e.g. 'tomorrow at 5pm'"),
			}, "title")),
		tool(ToolUpdateReminder,
			"Update an existing reminder's title, description, or due time.",
			objectSchema(map[string]any{
				"reminder_id": intProp("Id of the reminder to update, if known"),
				"title":       strProp("Title of the reminder to update, used when the id is unknown"),
				"new_title":   strProp("Replacement title"),
				"description": strProp("Replacement description"),
				"due_text":    strProp("New due time in the user's words"),
			})),
		tool(ToolCompleteReminder,
			"Mark a reminder as done.",
			objectSchema(map[string]any{
				"reminder_id": intProp("Id of the reminder, if known"),
				"title":       strProp("Title of the reminder, used when the id is unknown"),
			})),
		tool(ToolSnoozeReminder,
			"Push a reminder's due time later.",
			objectSchema(map[string]any{
				"reminder_id": intProp("Id of the reminder, if known"),
				"title":       strProp("Title of the reminder, used when the id is unknown"),
				"minutes":     intProp("How many minutes to push the reminder by"),
				"due_text":    strProp("A new due time in the user's words, instead of minutes"),
			})),
		tool(ToolListReminders,
			"List the user's reminders. Surface the returned summary to the user verbatim.",
			objectSchema(map[string]any{
				"filter": strProp("One of: active, completed, rescheduled, all. Defaults to active."),
			})),
		tool(ToolSearchReminders,
			"Search reminders by title or description substring.",
			objectSchema(map[string]any{
				"query": strProp("Case-insensitive substring to search for"),
			}, "query")),
		tool(ToolDeleteReminder,
			"Delete a reminder permanently.",
			objectSchema(map[string]any{
				"reminder_id": intProp("Id of the reminder, if known"),
				"title":       strProp("Title of the reminder, used when the id is unknown"),
			})),
		tool(ToolSetPreference,
			"Store a user preference, e.g. preferred_reminder_time=09:00.",
			objectSchema(map[string]any{
				"key":   strProp("Preference key in snake_case"),
				"value": strProp("Preference value"),
			}, "key", "value")),
		tool(ToolGetPreferences,
			"Fetch all stored preferences for the user.",
			objectSchema(map[string]any{})),
		tool(ToolListRescheduled,
			"List reminders the user keeps pushing back, most recently rescheduled first.",
			objectSchema(map[string]any{})),
		tool(ToolClarifyReminder,
			"Ask the user which of several matching reminders they mean. Pass the candidate reminder ids.",
			objectSchema(map[string]any{
				"question": strProp("The clarification question to ask"),
				"matches":  map[string]any{"type": "array", "items": map[string]any{"type": "integer"}, "description": "Candidate reminder ids in the order presented"},
			}, "question", "matches")),
	}
}
