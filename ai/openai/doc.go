// Package openai implements the ai contracts against OpenAI-compatible
// APIs. It works with any server speaking the protocol: OpenAI itself,
// Ollama, LocalAI, vLLM.
package openai
