// Package rag answers chat questions by retrieving the most similar
// stored passages, assembling them with recent conversation history into
// one completion request, and recording both sides of the exchange.
package rag

import (
	"strings"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"github.com/CoachingAI/coaching-mvp/pkg/openai"
)

// DeclinePhrase is the exact decline-and-handoff reply. Consumers pattern
// match on it, so it must never be reworded.
const DeclinePhrase = "I don’t have an answer for that yet. Let me connect you with the coach."

const (
	personaInstruction = "You are a helpful assistant. You have to chat in spoken language. Please answer concisely."

	fallbackInstruction = "When asked a question that is not related to the content, " +
		"you have to answer based on your knowledge or say that \"" + DeclinePhrase + "\""

	noReferences = "No relevant information was found. If general knowledge does not " +
		"cover the question either, reply exactly with: \"" + DeclinePhrase + "\""
)

// BuildPrompt assembles a single completion request: persona, reference
// block in retrieval order, fallback instruction, then the conversation
// oldest-first with the new question as the final turn.
func BuildPrompt(question string, passages []domain.Passage, history []domain.ChatTurn) []openai.Message {
	messages := []openai.Message{
		{Role: openai.RoleSystem, Content: personaInstruction},
		{Role: openai.RoleSystem, Content: "References:\n" + referenceBlock(passages)},
		{Role: openai.RoleSystem, Content: fallbackInstruction},
	}
	for _, turn := range history {
		role := openai.RoleUser
		if turn.Role == domain.RoleBot {
			role = openai.RoleAssistant
		}
		messages = append(messages, openai.Message{Role: role, Content: turn.Text})
	}
	return append(messages, openai.Message{Role: openai.RoleUser, Content: question})
}

func referenceBlock(passages []domain.Passage) string {
	if len(passages) == 0 {
		return noReferences
	}
	blocks := make([]string, len(passages))
	for i, p := range passages {
		block := p.Text
		if p.Kind == domain.KindVideoLink && p.Location != "" {
			block += "\n   Watch here: " + p.Location
		}
		blocks[i] = block
	}
	return strings.Join(blocks, "\n\n")
}
