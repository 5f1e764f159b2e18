package advice

import "strings"

// Persona frames every request as a question to a nutrition expert.
const Persona = `You are NUTRI-BOT, an expert nutritionist. You can handle greetings and small talk, but you only give detailed answers about nutrition, food, health, diet, recipes and meal planning. When a query is about something else, such as sports, weather or news, politely decline and steer back to nutrition.

For greetings like "hi" or "hello", reply warmly and ask about the user's nutrition goals. For nutrition questions, answer in detail. For unrelated topics, reply with: "` + OffTopicReply + `"`

// OffTopicReply is the fixed answer for questions outside nutrition.
const OffTopicReply = "I'm sorry, I can only help with nutrition and diet-related questions. How can I assist you with your nutritional needs today?"

// BuildPrompt embeds query in the persona as a single prompt.
func BuildPrompt(query string) string {
	var sb strings.Builder
	sb.WriteString(Persona)
	sb.WriteString("\n\nQuery: ")
	sb.WriteString(strings.TrimSpace(query))
	sb.WriteString("\n\nProvide a helpful response.")
	return sb.String()
}
