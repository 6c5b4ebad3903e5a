package services

import (
	"fmt"
	"strings"

	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

// PromptType selects one of the grounding-enforcing prompt templates.
type PromptType string

const (
	// PromptStrict forbids invented information and demands an explicit
	// "don't know" when the context is insufficient.
	PromptStrict PromptType = "strict"
	// PromptCitation requires an inline [Source N] marker after every
	// asserted fact, numbered by source list order.
	PromptCitation PromptType = "citation"
	// PromptConfidence requires the answer to open with a HIGH/MEDIUM/LOW
	// confidence level and a short justification.
	PromptConfidence PromptType = "confidence"
	// PromptContradiction instructs the model to surface disagreement
	// between sources instead of picking a side silently.
	PromptContradiction PromptType = "contradiction"
	// PromptStructured requires a fixed multi-part answer shape.
	PromptStructured PromptType = "structured"
)

const strictTemplate = `You are a helpful assistant that answers questions based ONLY on the provided context.

STRICT RULES - YOU MUST FOLLOW THESE:
1. NEVER invent, assume, or add information not present in the context
2. ALWAYS cite your sources using [Source 1], [Source 2], etc.
3. If information is NOT in the context, say "I don't have enough information to answer this"
4. If sources contradict each other, explicitly mention: "The sources provide conflicting information..."
5. Be precise and factual - use exact quotes when possible
6. If you are uncertain about something, express that uncertainty clearly

CONTEXT (Retrieved Documents):
%s

QUESTION: %s

ANSWER (following all rules above):`

const citationTemplate = `You are a precise assistant that provides well-cited answers.

YOUR TASK:
Answer the question using ONLY the information in the provided sources.
CITE every factual statement with [Source N] immediately after it.

CITATION FORMAT EXAMPLE:
"Artificial Intelligence is the simulation of human intelligence [Source 1].
It has applications in healthcare, finance, and transportation [Source 2, Source 3]."

IMPORTANT RULES:
- Every claim must have a citation
- If no source supports a claim, DON'T make that claim
- Use exact wording from sources when possible
- If sources are insufficient, say: "The provided sources do not contain enough information to answer this question."

SOURCES:
%s

QUESTION: %s

YOUR CITED ANSWER:`

const confidenceTemplate = `You are an honest assistant that expresses uncertainty when appropriate.

YOUR TASK:
Answer the question based on the provided context, and indicate your confidence level.

CONFIDENCE LEVELS:
- HIGH: Information is clearly stated in multiple sources
- MEDIUM: Information is present but limited or from a single source
- LOW: Information requires inference or is partially covered
- NONE: Information is not available in the sources

FORMAT:
**Confidence: [HIGH/MEDIUM/LOW/NONE]**

**Answer:**
[Your answer here, citing sources with [Source N]]

**Reasoning:**
[One line explaining why you chose this confidence level]

CONTEXT:
%s

QUESTION: %s

YOUR RESPONSE:`

const contradictionTemplate = `You are a critical-thinking assistant that analyzes information carefully.

YOUR TASK:
Answer the question using the provided context. Pay special attention to:
1. Consistency across sources
2. Contradictions or disagreements
3. Strength of evidence

IF SOURCES AGREE:
Provide a clear answer citing all supporting sources.

IF SOURCES CONTRADICT:
1. Acknowledge the contradiction explicitly
2. Present both viewpoints fairly, attributing each side to its source
3. Note if one source seems more authoritative or recent
4. DO NOT pick a side unless evidence strongly supports it

FORMAT YOUR ANSWER:
- Start with a direct answer (if sources agree) OR "The sources provide conflicting information" (if they don't)
- Explain the evidence
- Cite sources: [Source 1], [Source 2], etc.

CONTEXT:
%s

QUESTION: %s

ANALYSIS AND ANSWER:`

const structuredTemplate = `You are an assistant that provides structured, well-formatted answers.

YOUR TASK:
Answer the question using the provided context and structure your response as follows:

STRUCTURE:
1. **Direct Answer:** [One sentence summary]
2. **Detailed Explanation:** [2-3 paragraphs with full details]
3. **Sources Used:** [List of source citations: Source 1, Source 2, etc.]
4. **Confidence:** [HIGH/MEDIUM/LOW]
5. **Limitations:** [Any gaps in the information or caveats]

RULES:
- Base the answer ONLY on the provided context
- If information is missing, state it clearly in "Limitations"
- Cite sources inline using [Source N]

CONTEXT:
%s

QUESTION: %s

STRUCTURED ANSWER:`

// BuildPrompt renders a prompt of the given type from the query and retrieved
// chunks. Deterministic and side-effect free: identical inputs produce
// identical prompts.
func BuildPrompt(promptType PromptType, query string, contextChunks []models.Chunk) (string, error) {
	context := formatContext(contextChunks)

	switch promptType {
	case PromptStrict, "":
		return fmt.Sprintf(strictTemplate, context, query), nil
	case PromptCitation:
		return fmt.Sprintf(citationTemplate, context, query), nil
	case PromptConfidence:
		return fmt.Sprintf(confidenceTemplate, context, query), nil
	case PromptContradiction:
		return fmt.Sprintf(contradictionTemplate, context, query), nil
	case PromptStructured:
		return fmt.Sprintf(structuredTemplate, context, query), nil
	default:
		return "", utils.NewAppError(utils.KindUnknownPromptType, "unknown prompt type: %q", promptType)
	}
}

// formatContext numbers chunks so inline [Source N] citations match source
// list order.
func formatContext(chunks []models.Chunk) string {
	if len(chunks) == 0 {
		return "(no relevant documents were found)"
	}

	var b strings.Builder
	for i, c := range chunks {
		name := "unknown"
		if s, ok := c.Metadata["source"].(string); ok && s != "" {
			name = s
		} else if c.DocumentID != "" {
			name = c.DocumentID
		}
		fmt.Fprintf(&b, "[Source %d] (%s):\n%s\n\n", i+1, name, strings.TrimSpace(c.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}
