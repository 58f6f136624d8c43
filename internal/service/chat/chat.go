// Package chat contains the dispatch layer between the HTTP surface and the
// provider clients: conversation normalization, direct and agent-graph
// dispatch, and the streaming event normalizer.
package chat

// User-facing fallback texts. Dispatch never surfaces a transport error;
// every failure becomes an assistant message built from one of these.
const (
	noModelsMessage = "No API keys are configured. Please add API keys to your .env file."

	agentEmptyResult    = "I couldn't process your request with the AI agent. Please try again."
	researchEmptyResult = "I couldn't find any useful information. Please try a different query."

	overloadedMessage = "Sorry, the AI service is currently experiencing high load. " +
		"Please try again in a few moments or switch to a different model."
)

// Deep research requests are routed to this agent profile.
const webSearchAgentName = "web_search_agent"
