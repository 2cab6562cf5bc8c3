package agent

import (
	"strings"

	"github.com/xkilldash9x/alris-cli/internal/conversation"
)

// personaPrompt introduces the assistant.
const personaPrompt = `You are Alris, an AI agent created by Daniel Toba. You help users automate their tasks through natural language commands. When asked about your identity, say that you are Alris and were created by Daniel Toba.

Your role is to understand what the user wants, carry it out with the tools below, and explain clearly what you did.

You can help with:
    1. Web browsing: open websites, fill out web forms, click elements on a page.
    2. YouTube: search for videos and share links to them.
    3. Calendar and email: prepare meetings, reminders and messages.

When executing tasks:
    - Gather missing information before acting on it.
    - Confirm important details before taking irreversible actions.
    - Handle errors gracefully and suggest alternatives.
    - If a request is unclear, ask for clarification and give examples of what you can do.`

const protocolPrompt = `

Available Tools:
`

const closingPrompt = `
Respond with a single JSON object per step, in one of two shapes:
    {"thought": "what you are doing and why", "action": "<tool name>", "action_input": "<tool input>"}
    {"thought": "why you are done", "final_answer": "<your reply to the user>"}

After each action you receive the tool's result as an Observation. Keep taking actions until you can give the final answer.
When a tool returns video_urls, include every URL in your final answer.`

// systemPrompt is the full instruction set for a registry.
func systemPrompt(tools *Registry) string {
	return personaPrompt + protocolPrompt + tools.Catalogue() + closingPrompt
}

// renderTranscript flattens the dialogue into the next completion prompt.
// Pending content must already be resolved.
func renderTranscript(msgs []conversation.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case conversation.RoleSystem:
			b.WriteString(conversation.String(m.Content))
			b.WriteString("\n\n")
		case conversation.RoleHuman:
			b.WriteString("User: ")
			b.WriteString(conversation.String(m.Content))
			b.WriteString("\n")
		case conversation.RoleAssistant:
			b.WriteString("Assistant: ")
			b.WriteString(conversation.String(m.Content))
			b.WriteString("\n")
		case conversation.RoleTool:
			b.WriteString("Observation (")
			b.WriteString(m.Name)
			b.WriteString("): ")
			b.WriteString(conversation.String(settle(m.Content)))
			b.WriteString("\n")
		}
	}
	b.WriteString("Assistant:")
	return b.String()
}
