package synth

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/deepseek"
)

// User-facing texts.
const (
	MsgFormattingTrouble = "I found relevant information in the documents, but had trouble formatting the answer. Please try rephrasing your question."
	MsgNoDetailedAnswer  = "I found relevant information in the documents, but cannot generate a detailed response at the moment. Please try rephrasing your question."

	prefixExtractive = "Based on the available documents: "
	prefixKeyword    = "Based on the uploaded documents: "
	prefixSummary    = "Here's what I found in the documents: "
)

const systemPrompt = `You are a helpful AI assistant that answers questions based on provided document context.

Instructions:
- Answer based ONLY on the provided context
- Be concise, accurate, and informative
- If the context doesn't contain relevant information, say "I cannot find information about this in the provided documents"
- Provide specific details when available
- Do not make up information not present in the context
- Keep responses clear and well-structured`

// BuildMessages returns the system and user messages for one question. The
// document context is cut to MaxContextChars characters plus "..." when longer.
func BuildMessages(question, docContext string) []deepseek.Message {
	if utf8.RuneCountInString(docContext) > MaxContextChars {
		docContext = string([]rune(docContext)[:MaxContextChars]) + "..."
	}
	user := "Context from documents:\n" + docContext +
		"\n\nQuestion: " + question +
		"\n\nPlease provide a helpful answer based on the context above."
	return []deepseek.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}
}

var boilerplate = []string{
	"Based on the provided context:",
	"According to the context:",
	"From the document context:",
	"The context shows that:",
}

// Clean strips boilerplate lead-ins from generated text and capitalises it.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	for _, p := range boilerplate {
		if strings.HasPrefix(text, p) {
			text = strings.TrimSpace(text[len(p):])
		}
	}
	r, size := utf8.DecodeRuneInString(text)
	if unicode.IsLower(r) {
		text = string(unicode.ToUpper(r)) + text[size:]
	}
	return text
}

// Extractive joins the first three non-empty sentences of docContext.
func Extractive(docContext string) string {
	var picked []string
	for _, s := range strings.Split(docContext, ".") {
		if s = strings.TrimSpace(s); s != "" {
			picked = append(picked, s)
			if len(picked) == 3 {
				break
			}
		}
	}
	if len(picked) == 0 {
		return MsgNoDetailedAnswer
	}
	return prefixExtractive + strings.Join(picked, ". ")
}

var stopWords = map[string]bool{
	"what": true, "how": true, "when": true, "where": true, "why": true,
	"is": true, "are": true, "the": true, "a": true, "an": true,
}

func words(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[w] = true
	}
	return set
}

// Keyword answers by sentence overlap: up to maxSentences context sentences
// sharing a non-stop word with the question, or else the first
// summaryWords words of the context.
func Keyword(question, docContext string, maxSentences, summaryWords int) string {
	q := words(question)
	for w := range stopWords {
		delete(q, w)
	}

	var hits []string
	if len(q) > 0 {
		for _, s := range strings.Split(docContext, ".") {
			for w := range words(s) {
				if q[w] {
					hits = append(hits, strings.TrimSpace(s))
					break
				}
			}
			if len(hits) == maxSentences {
				break
			}
		}
	}
	if answer := strings.Join(hits, ". "); answer != "" {
		return prefixKeyword + answer
	}

	fields := strings.Fields(docContext)
	if len(fields) > summaryWords {
		return prefixSummary + strings.Join(fields[:summaryWords], " ") + "..."
	}
	return prefixSummary + docContext
}
