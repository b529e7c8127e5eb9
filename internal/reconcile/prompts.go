package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roshantac/eva-memory/internal/category"
	"github.com/roshantac/eva-memory/internal/model"
)

const extractionSystemPrompt = "You manage long-term user memory for a personal assistant named EVA. " +
	"Your job is to read conversations and extract only durable, re-usable facts " +
	"about the user and their world. You must output a single JSON object."

const updateSystemPrompt = "You maintain a set of user memories for a personal assistant named EVA. " +
	"Each memory is a single fact about the user or their world. " +
	"Your job is to decide which memories to add, update, delete, or leave unchanged " +
	"when new facts arrive. You must output a single JSON object."

// buildExtractionMessages builds the prompt for pulling structured user facts
// out of a conversation transcript.
func buildExtractionMessages(transcript string) []model.Message {
	var cats strings.Builder
	for _, name := range category.All() {
		fmt.Fprintf(&cats, "- %s: %s\n", name, category.Descriptions[name])
	}

	user := "From the conversation below, extract enduring facts that will still matter " +
		"later (identity, preferences, habits, goals, relationships, constraints, and other stable details).\n\n" +
		"Ignore generic chit-chat or one-off ephemeral details that are not helpful later.\n\n" +
		"Use the following categories for each fact:\n" +
		cats.String() + "\n" +
		"Output format (JSON only):\n" +
		"{\n" +
		"  \"facts\": [\n" +
		"    {\n" +
		"      \"fact\": string,                      // concise natural-language fact\n" +
		"      \"category\": string,                  // one of the allowed categories\n" +
		"      \"subcategory\": string | null,        // optional short refinement like \"music\", \"sleep\", \"diet\"\n" +
		"      \"source_role\": string,               // \"user\", \"assistant\", or \"system\"\n" +
		"      \"time_scope\": string | null,         // e.g. \"current\", \"past\", \"future_plan\", \"habit\"\n" +
		"      \"importance\": string,                // \"low\", \"medium\", or \"high\"\n" +
		"      \"confidence\": number,                // 0.0 to 1.0\n" +
		"      \"tags\": array<string> | null         // optional keywords (e.g. [\"music\", \"jazz\"])\n" +
		"    }\n" +
		"  ]\n" +
		"}\n\n" +
		"Guidelines:\n" +
		"- Prefer one fact per entry and keep each fact self-contained.\n" +
		"- Mark health, safety, money, deadlines, and strong preferences as high importance when appropriate.\n" +
		"- Only include facts you infer with reasonable confidence.\n\n" +
		"Return JSON only, with no extra commentary.\n\n" +
		"Conversation:\n" + transcript

	return []model.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: user},
	}
}

// buildUpdateMessages builds the prompt for deciding how freshly extracted
// facts apply to the currently stored memories.
func buildUpdateMessages(existing, facts []map[string]any) []model.Message {
	existingJSON, _ := json.MarshalIndent(existing, "", "  ")
	factsJSON, _ := json.MarshalIndent(facts, "", "  ")

	user := "You are given the current stored memories and newly extracted facts.\n\n" +
		"Current memories (array of objects):\n" +
		string(existingJSON) + "\n\n" +
		"New facts (array of objects with the same shape as in extraction):\n" +
		string(factsJSON) + "\n\n" +
		"Decide which operations to perform. Use these rules:\n" +
		"- ADD when a new fact is not covered by any existing memory.\n" +
		"- UPDATE when a new fact refines or replaces an existing memory (for example, a new job title or a changed preference).\n" +
		"- DELETE when an existing memory is clearly no longer true and should be removed.\n" +
		"- NONE when no action is required for a memory.\n" +
		"- Keep the number of changes as small as possible while keeping memories accurate and up to date.\n\n" +
		"Output format (JSON only):\n" +
		"{\n" +
		"  \"operations\": [\n" +
		"    {\n" +
		"      \"event\": \"ADD\" | \"UPDATE\" | \"DELETE\" | \"NONE\",\n" +
		"      \"target_id\": string | null,         // memory_id to update/delete; null for new memories\n" +
		"      \"fact\": string | null,              // new fact text for ADD/UPDATE; null for DELETE/NONE\n" +
		"      \"category\": string | null,\n" +
		"      \"subcategory\": string | null,\n" +
		"      \"time_scope\": string | null,\n" +
		"      \"importance\": string | null,        // \"low\", \"medium\", \"high\"\n" +
		"      \"confidence\": number | null,        // 0.0 to 1.0\n" +
		"      \"tags\": array<string> | null\n" +
		"    }\n" +
		"  ]\n" +
		"}\n\n" +
		"Only return operations that actually do something (ADD, UPDATE, or DELETE). " +
		"You can omit explicit NONE entries.\n" +
		"Return JSON only, with no extra commentary."

	return []model.Message{
		{Role: "system", Content: updateSystemPrompt},
		{Role: "user", Content: user},
	}
}
