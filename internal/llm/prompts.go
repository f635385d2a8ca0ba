package llm

import (
	_ "embed"
)

// System prompts for the two LLM passes ship with the binary.

//go:embed prompts/pass1_cleanup.txt
var CleanupPrompt string

//go:embed prompts/pass2_structure.txt
var StructurePrompt string
