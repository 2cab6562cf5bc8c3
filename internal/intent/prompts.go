package intent

import "strings"

// Prompt templates. Placeholders are {{name}} and filled by render.

const classificationPrompt = `You are an intent detection assistant.
Given the following user input, classify it into one of these intents: {{intents}}.
If none fit, return 'general'.
Respond with a single JSON object of the form:
{"intent": "<one of: {{intents}}>", "reasoning": "<one sentence explaining the choice>"}
User input: {{command}}
`

const formExtractionPrompt = `You are an expert assistant for extracting user-provided web form fields from commands. Use the following defaults if a field is not specified:
{{defaults}}

Extract the following from the command and return a JSON object with these keys:
- url (string or null): the URL of the form to fill (extract from the command, or null if not found)
- form_data (object): a dictionary of all fields the user explicitly provided (e.g., name, email, phone, etc.)
- needs_clarification (string, optional): if neither name nor email is present, add a message here describing what is missing

Rules:
- Always try to extract the URL from the command (look for https:// or www. or domain names)
- Extract all user-provided values (e.g., name, email, phone, address, etc.) from the command
- If neither name nor email is present, set needs_clarification
- Output only a single JSON object as described

Examples:

Command: "Sign me up for a tech newsletter on https://example.com/newsletter with my name John Doe and email john.doe@example.com"
Defaults: {"country": "Nigeria", "gender": "male"}
Output:
{"url": "https://example.com/newsletter", "form_data": {"name": "John Doe", "email": "john.doe@example.com"}}

Command: "Register for the event at https://event.com/register with email jane@sample.com"
Defaults: {"country": "Nigeria", "gender": "male"}
Output:
{"url": "https://event.com/register", "form_data": {"email": "jane@sample.com"}}

Command: "Fill the registration form on www.example.com with my details"
Defaults: {"country": "Nigeria", "gender": "male"}
Output:
{"url": "www.example.com", "form_data": {}, "needs_clarification": "Name and email are required but not provided. Please provide your name and email."}

Command: "{{command}}"
Defaults: {{defaults}}
Output:
`

const eventExtractionPrompt = `You are an expert assistant for extracting calendar event details from user commands. The current date is {{current_date}}. Use this to interpret relative dates like "this Saturday" or "tomorrow" accurately.

Extract the following fields from the command and return a JSON object with these keys:
- title (string)
- start_time (ISO 8601 string, e.g., "2025-05-31T10:00:00", or null if not specified)
- end_time (ISO 8601 string, or null if not specified)
- description (string or null)

Rules:
- If a relative date (e.g., "this Saturday") is mentioned, calculate it relative to {{current_date}}.
- If the user specifies a start time but no end time, set end_time to null.
- If any field is ambiguous or missing, set its value to null and add a "needs_clarification" field with a message describing what is unclear or missing.

Examples:

Command: "Schedule a meeting with John tomorrow at 3pm about the Q2 report"
Current Date: 2025-05-26
Output:
{"title": "Meeting with John about the Q2 report", "start_time": "2025-05-27T15:00:00", "end_time": null, "description": null}

Command: "Remind me to call Sarah"
Current Date: 2025-05-26
Output:
{"title": "Call Sarah", "start_time": null, "end_time": null, "description": null, "needs_clarification": "No time specified. Please provide a date and time for the reminder."}

Command: "{{command}}"
Current Date: {{current_date}}
Output:
`

const emailExtractionPrompt = `You are an expert assistant for extracting email details from user commands.

Extract the following fields from the command and return a JSON object with these keys:
- to (list of email addresses)
- cc (list of email addresses, empty if none)
- bcc (list of email addresses, empty if none)
- subject (string or null)
- body (string or null)

Rules:
- Only use addresses that appear in the command. Never invent recipients.
- If there is no recipient, add a "needs_clarification" field with a message asking for one.
- Output only a single JSON object as described

Example:

Command: "Send an email to alice@example.com with subject 'Hello' and body 'How are you?'"
Output:
{"to": ["alice@example.com"], "cc": [], "bcc": [], "subject": "Hello", "body": "How are you?"}

Command: "{{command}}"
Output:
`

// render fills {{key}} placeholders in template from pairs of key, value.
func render(template string, pairs ...string) string {
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{{"+pairs[i]+"}}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(template)
}
