package service

import (
	"fmt"
	"strings"

	"legaldoc-backend/models"
)

// DeclineMessage is the fixed reply to questions outside the legal domain
const DeclineMessage = "I'm a specialized legal document assistant and can only help with questions related to legal documents, contracts, and legal concepts. Please ask me about the legal document you've uploaded or other legal matters."

// NoDocumentContext stands in for retrieved passages when the session has
// no document or nothing was retrieved
const NoDocumentContext = "No document has been uploaded in this session, so there is no document context."

// DefaultRejectionReason is used when the validator rejects without saying why
const DefaultRejectionReason = "This document was rejected because it does not appear to be a legal document."

const tooShortReason = "The document is too short to be a legal document."

const validatorSystemPrompt = `You classify documents as legal or not legal.

Legal documents include contracts, agreements, terms of service, privacy policies, legal notices,
leases, employment agreements, NDAs, loan documents, insurance policies, court documents, legal forms,
wills, patents, licenses, legal briefs and motions.

Documents that are not legal include stories, novels, recipes, manuals, emails, reports, technical
documentation, news articles, blog posts, personal letters, fiction and academic papers.

Respond with a single JSON object: {"is_legal": true|false, "reason": "..."}.
When is_legal is false, reason is one or two sentences telling the user why the document cannot be
analyzed. When is_legal is true, reason is an empty string.`

const strictJSONInstruction = `Your previous answer could not be parsed. Respond with ONLY the JSON object described above.
No markdown, no code fences, no commentary before or after it.`

func validatorPrompt(sample string) string {
	return fmt.Sprintf("Document text to classify:\n\n%s", sample)
}

func analyzerSystemPrompt() string {
	types := make([]string, 0, len(models.KnownDocumentTypes))
	for _, t := range models.KnownDocumentTypes {
		types = append(types, string(t))
	}

	return fmt.Sprintf(`You analyze legal documents for people without legal training.

Respond with a single JSON object with these fields:
- "document_type": one of %s, or "Other".
- "summary": a detailed summary of the document, written in the language of the document.
- "clauses": 3 to 5 of the most important clauses, each an object with
  "title", "original_text" (a short verbatim excerpt), "plain_explanation" (simple terms),
  "risk_level" ("Low", "Medium" or "High" for the reader), "key_points" (a list of short strings)
  and "concerns" (what the reader should watch out for, or an empty string).`,
		quoteJoin(types))
}

func analyzerPrompt(text string) string {
	return fmt.Sprintf("Document text:\n\n%s", text)
}

const chatSystemPrompt = `You are a specialized legal document assistant. You help users understand the
legal document they uploaded and answer legal questions.

Only answer questions about:
- the content, clauses and terms of the document
- legal concepts, definitions and explanations
- rights, obligations and responsibilities in the document
- the meaning of contractual or legal language

For anything else (small talk, technical support, personal advice unrelated to legal matters,
other subjects, non-legal tasks) reply with exactly this text and nothing else:
"` + DeclineMessage + `"

Ground your answers in the document context when it is relevant and quote figures exactly as they
appear there. Explain legal terms simply, and suggest consulting a qualified lawyer for advice on a
specific situation.`

// chatPrompt renders the retrieved passages and the question. An empty hits
// slice renders NoDocumentContext.
func chatPrompt(hits []models.SearchResult, question string) string {
	var b strings.Builder

	b.WriteString("Document context:\n")
	if len(hits) == 0 {
		b.WriteString(NoDocumentContext)
		b.WriteString("\n\n")
	}
	for i, h := range hits {
		fmt.Fprintf(&b, "[Passage %d]\n%s\n\n", i+1, strings.TrimSpace(h.Chunk.Text))
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = `"` + s + `"`
	}
	return strings.Join(quoted, ", ")
}
