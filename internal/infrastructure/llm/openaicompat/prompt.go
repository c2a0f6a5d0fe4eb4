package openaicompat

import "fmt"

func buildAnswerPrompt(question, history, fragments string) string {
	return fmt.Sprintf(`You are a professional legal consultation assistant. Answer the question using the information below.

Conversation history:
%s

Relevant statutes:
%s

Question: %s

Give accurate, professional legal advice grounded in the statutes above, taking the conversation history into account. If the statutes are not sufficient to fully answer the question, say so explicitly.
Plain text output, no markdown.
Answer:`, history, fragments, question)
}

func buildSummaryPrompt(conversation, keyPoints string) string {
	return fmt.Sprintf(`Summarize the key points of the following legal consultation conversation.

Conversation:
%s

Key statutes:
%s

Provide a concise summary covering:
1. The main legal questions raised
2. The statutes involved
3. The advice given

Summary:`, conversation, keyPoints)
}
