// Package file provides file-based configuration adapters.
//
// Adapters:
//   - ConfigStore: YAML or TOML document flattened to dot-notation keys
//   - Load: builds the validated domain.Config from a document, .env files
//     and LOCALKNOWLEDGE_* environment overrides
//   - PromptStore: user-editable prompt templates
package file
