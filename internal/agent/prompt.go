// ABOUTME: System prompt and fixed texts the orchestrator sends to the model and client.
// ABOUTME: Kept together so wording changes touch one file.

package agent

import "fmt"

// DefaultSystemPrompt steers tool selection and the response policy.
const DefaultSystemPrompt = `You are an intelligent assistant with tools to fetch live web data, search internal documents, and query local databases.

Before choosing a tool, translate the user's message to English.

Always attempt to answer directly from the available context, even when the question is vague or general. Never ask for clarification or more information, and never reply with "could you please clarify" or similar phrases. Respond in a helpful, data-focused manner, making reasonable assumptions where needed.

Use the offline tools (document search, database query) whenever the question can reasonably be answered without live data. Use the web fetch tool only when the question clearly involves current events, real-time updates, or trending data. If a tool can answer the question, call it directly.

Only if it is very unlikely that any tool can answer, give a general answer from your own knowledge.`

// GenericErrorMessage is the only error text sent to the client.
const GenericErrorMessage = "Sorry, I encountered an error processing your request."

// toolResultPrompt wraps a tool result for the follow-up model call.
func toolResultPrompt(result string) string {
	return fmt.Sprintf("based on the result of the used tool: %s\nanswer the user's question.", result)
}

// toolNotFound is the AI reply for a tool name the registry does not know.
func toolNotFound(name string) string {
	return fmt.Sprintf("Tool \"%s\" not found.", name)
}
