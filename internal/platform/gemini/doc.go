// Package gemini implements generation.Generator against Google's Gemini
// generateContent API.
//
// Two adapters are provided:
//
//   - RESTGenerator posts the documented JSON body to a configured endpoint
//     and extracts candidates[0].content.parts[0].text from the reply.
//   - SDKGenerator goes through the google.golang.org/genai client.
//
// Both report failures with the sentinel errors of internal/generation and
// never log the API key.
package gemini
