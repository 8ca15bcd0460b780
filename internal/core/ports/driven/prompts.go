package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptQA answers a question from one pack of retrieved context.
	// The template expects %s (context) then %s (question) placeholders.
	PromptQA = "qa"

	// PromptRefine improves an existing answer with another pack of context.
	// The template expects %s (question), %s (existing answer) and %s (context).
	PromptRefine = "refine"

	// PromptChatSystem is the system prompt for synthesis requests.
	// This prompt has no format placeholders.
	PromptChatSystem = "chat_system"
)
