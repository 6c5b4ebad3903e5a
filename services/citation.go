package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"rag-knowledge-platform/internal/ai"
	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/models"
)

// CitationService checks that a generated answer is grounded in the source
// chunks it was conditioned on. Matching is layered: exact substring first,
// then fuzzy text similarity, then embedding similarity. The first layer that
// succeeds sets the claim's confidence. The service never returns an error;
// malformed input yields is_grounded=false with an explanatory warning.
type CitationService struct {
	fuzzyThreshold    float64
	semanticThreshold float64
	confidenceFloor   float64

	// embeddings powers the semantic layer; nil disables it.
	embeddings *ai.EmbeddingService
}

func NewCitationService(cfg *config.Config, embeddings *ai.EmbeddingService) *CitationService {
	return &CitationService{
		fuzzyThreshold:    cfg.FuzzyMatchThreshold,
		semanticThreshold: cfg.SemanticMatchThreshold,
		confidenceFloor:   cfg.ConfidenceFloor,
		embeddings:        embeddings,
	}
}

var (
	sentenceSplitRe  = regexp.MustCompile(`[.!?]+`)
	sentenceRe       = regexp.MustCompile(`[^.!?]+[.!?]*`)
	citationMarkerRe = regexp.MustCompile(`\[\s*source\s+\d+(?:\s*,\s*source\s+\d+)*\s*\]`)
)

// fillerPhrases add no verifiable content and are stripped before matching.
var fillerPhrases = []string{
	"according to the document",
	"based on the information",
	"the source states",
	"it is mentioned that",
	"the text says",
}

// Verify decomposes the answer into sentence-level claims and checks each
// against the union of source texts. In strict mode every claim must be
// grounded; otherwise low-information claims (very short sentences,
// questions, meta-statements) are excluded from the verdict but still
// reported.
func (s *CitationService) Verify(ctx context.Context, answer string, sources []models.Chunk, strict bool) models.CitationCheck {
	if strings.TrimSpace(answer) == "" {
		return models.CitationCheck{
			IsGrounded: false,
			Warnings:   []string{"empty answer, nothing to verify"},
		}
	}
	if len(sources) == 0 {
		unverified := models.Claim{Text: answer, IsGrounded: false}
		return models.CitationCheck{
			IsGrounded:       false,
			Warnings:         []string{"no sources available for verification"},
			UngroundedClaims: []models.Claim{unverified},
			Claims:           []models.Claim{unverified},
		}
	}

	sourceTexts := make([]string, len(sources))
	for i, src := range sources {
		sourceTexts[i] = strings.ToLower(src.Text)
	}

	claims := extractClaims(answer)
	if len(claims) == 0 {
		return models.CitationCheck{
			IsGrounded: false,
			Warnings:   []string{"no verifiable claims found in answer"},
		}
	}

	check := models.CitationCheck{IsGrounded: true}
	var confidenceSum float64

	for i := range claims {
		claim := &claims[i]
		s.groundClaim(ctx, claim, sources, sourceTexts)
		confidenceSum += claim.MatchConfidence

		if !claim.IsGrounded {
			check.UngroundedClaims = append(check.UngroundedClaims, *claim)
			// Low-information claims only count against the verdict in
			// strict mode.
			if strict || !claim.LowInformation {
				check.IsGrounded = false
			}
		}
	}

	check.Claims = claims
	check.Confidence = confidenceSum / float64(len(claims))

	if check.Confidence < s.confidenceFloor {
		check.Warnings = append(check.Warnings, fmt.Sprintf("low grounding confidence: %.2f", check.Confidence))
	}
	if n := len(check.UngroundedClaims); n > 0 {
		check.Warnings = append(check.Warnings, fmt.Sprintf("%d ungrounded claims detected", n))
	}
	check.Warnings = append(check.Warnings, s.detectContradictions(sources)...)

	logger.Debug("Citation check complete",
		"grounded", check.IsGrounded,
		"confidence", check.Confidence,
		"claims", len(claims),
		"ungrounded", len(check.UngroundedClaims))

	return check
}

// groundClaim applies the layered matching strategy and fills in the claim's
// grounding fields in place.
func (s *CitationService) groundClaim(ctx context.Context, claim *models.Claim, sources []models.Chunk, sourceTexts []string) {
	cleaned := cleanClaim(claim.Text)
	if cleaned == "" {
		claim.IsGrounded = false
		return
	}

	// Layer 1: exact substring.
	for i, text := range sourceTexts {
		if strings.Contains(text, cleaned) {
			claim.IsGrounded = true
			claim.MatchConfidence = 1.0
			claim.SupportingSourceIDs = append(claim.SupportingSourceIDs, sources[i].ID)
		}
	}
	if claim.IsGrounded {
		return
	}

	// Layer 2: fuzzy similarity against a sliding window of each source.
	bestSim := 0.0
	bestSource := -1
	for i, text := range sourceTexts {
		if sim := windowedSimilarity(cleaned, text); sim > bestSim {
			bestSim = sim
			bestSource = i
		}
	}
	if bestSim >= s.fuzzyThreshold {
		claim.IsGrounded = true
		claim.MatchConfidence = bestSim
		claim.SupportingSourceIDs = []string{sources[bestSource].ID}
		return
	}

	// Layer 3: embedding similarity. Best effort: a provider failure
	// degrades to ungrounded rather than failing the verification.
	if s.embeddings != nil {
		sim, idx, err := s.semanticMatch(ctx, cleaned, sources)
		if err != nil {
			logger.Warn("Semantic citation check unavailable", "error", err)
		} else if sim >= s.semanticThreshold {
			claim.IsGrounded = true
			claim.MatchConfidence = sim
			claim.SupportingSourceIDs = []string{sources[idx].ID}
			return
		}
	}

	claim.IsGrounded = false
	claim.MatchConfidence = 0
}

func (s *CitationService) semanticMatch(ctx context.Context, claim string, sources []models.Chunk) (float64, int, error) {
	texts := make([]string, 0, len(sources)+1)
	texts = append(texts, claim)
	for _, src := range sources {
		texts = append(texts, src.Text)
	}

	vectors, err := s.embeddings.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, -1, err
	}

	best := 0.0
	bestIdx := -1
	for i := 1; i < len(vectors); i++ {
		if sim := ai.CosineSimilarity(vectors[0], vectors[i]); sim > best {
			best = sim
			bestIdx = i - 1
		}
	}
	return best, bestIdx, nil
}

// detectContradictions flags pairs of sources containing near-identical
// sentences that differ in negation. Best effort; it reports likely
// conflicts, not all of them.
func (s *CitationService) detectContradictions(sources []models.Chunk) []string {
	type sentence struct {
		source int
		text   string
		neg    bool
	}

	var sentences []sentence
	for i, src := range sources {
		for _, raw := range sentenceSplitRe.Split(strings.ToLower(src.Text), -1) {
			t := strings.TrimSpace(raw)
			if len(t) < 15 {
				continue
			}
			sentences = append(sentences, sentence{source: i, text: t, neg: hasNegation(t)})
		}
	}

	var warnings []string
	seen := make(map[string]bool)
	for i := 0; i < len(sentences); i++ {
		for j := i + 1; j < len(sentences); j++ {
			a, b := sentences[i], sentences[j]
			if a.source == b.source || a.neg == b.neg {
				continue
			}
			if wordSimilarity(a.text, b.text) >= 0.6 {
				key := fmt.Sprintf("%d-%d", a.source, b.source)
				if !seen[key] {
					seen[key] = true
					warnings = append(warnings, fmt.Sprintf("sources %d and %d may contradict each other on the same subject", a.source+1, b.source+1))
				}
			}
		}
	}
	return warnings
}

func hasNegation(text string) bool {
	for _, tok := range []string{" not ", " never ", " no ", "n't "} {
		if strings.Contains(" "+text+" ", tok) {
			return true
		}
	}
	return false
}

// extractClaims splits the answer into sentence-level claims. Low-information
// sentences are kept but flagged, so non-strict aggregation can skip them
// while the report still lists every sentence checked.
func extractClaims(answer string) []models.Claim {
	var claims []models.Claim
	for _, raw := range sentenceRe.FindAllString(answer, -1) {
		text := strings.TrimSpace(raw)
		if strings.Trim(text, ".!?") == "" {
			continue
		}
		claims = append(claims, models.Claim{
			Text:           text,
			LowInformation: isLowInformation(text),
		})
	}
	return claims
}

// isLowInformation marks sentences that carry no checkable factual content:
// fragments under 15 characters, questions, and meta-statements about the
// answer itself.
func isLowInformation(text string) bool {
	if len(text) < 15 {
		return true
	}
	if strings.Contains(text, "?") {
		return true
	}
	for _, prefix := range []string{"I ", "However", "Note that", "Please"} {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

func cleanClaim(claim string) string {
	cleaned := strings.ToLower(claim)
	cleaned = citationMarkerRe.ReplaceAllString(cleaned, "")
	for _, filler := range fillerPhrases {
		cleaned = strings.ReplaceAll(cleaned, filler, "")
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return strings.Trim(cleaned, " .!?")
}

// windowedSimilarity slides a claim-sized word window over the source and
// returns the best similarity, so a paraphrased claim matches the relevant
// passage instead of being diluted by the rest of the source.
func windowedSimilarity(claim, source string) float64 {
	claimWords := strings.Fields(claim)
	sourceWords := strings.Fields(source)
	if len(claimWords) == 0 || len(sourceWords) == 0 {
		return 0
	}

	if len(claimWords) <= 3 || len(claimWords) >= len(sourceWords) {
		return wordSimilarity(claim, source)
	}

	windowSize := len(claimWords)
	if windowSize > 20 {
		windowSize = 20
	}

	best := 0.0
	for i := 0; i+windowSize <= len(sourceWords); i++ {
		window := strings.Join(sourceWords[i:i+windowSize], " ")
		if sim := wordSimilarity(claim, window); sim > best {
			best = sim
		}
	}
	return best
}

// wordSimilarity is a SequenceMatcher-style ratio over word sequences:
// twice the longest common subsequence length divided by the total length.
func wordSimilarity(a, b string) float64 {
	wa := strings.Fields(a)
	wb := strings.Fields(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	prev := make([]int, len(wb)+1)
	curr := make([]int, len(wb)+1)
	for i := 1; i <= len(wa); i++ {
		for j := 1; j <= len(wb); j++ {
			if wa[i-1] == wb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(wb)]
	return 2 * float64(lcs) / float64(len(wa)+len(wb))
}
