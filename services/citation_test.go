package services

import (
	"context"
	"strings"
	"testing"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/models"
)

func testCitationConfig() *config.Config {
	return &config.Config{
		FuzzyMatchThreshold:    0.75,
		SemanticMatchThreshold: 0.80,
		ConfidenceFloor:        0.70,
	}
}

func sourceChunks(texts ...string) []models.Chunk {
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{ID: "src-" + string(rune('a'+i)), Text: text}
	}
	return chunks
}

func TestVerifyExactMatch(t *testing.T) {
	svc := NewCitationService(testCitationConfig(), nil)

	sources := sourceChunks("AI simulates human intelligence in machines built for reasoning.")
	check := svc.Verify(context.Background(), "AI simulates human intelligence [Source 1].", sources, false)

	if !check.IsGrounded {
		t.Fatalf("expected grounded answer, got warnings %v", check.Warnings)
	}
	if len(check.Claims) != 1 {
		t.Fatalf("expected one claim, got %d", len(check.Claims))
	}
	claim := check.Claims[0]
	if claim.MatchConfidence != 1.0 {
		t.Errorf("exact match confidence = %v, want 1.0", claim.MatchConfidence)
	}
	if len(claim.SupportingSourceIDs) == 0 {
		t.Error("exact match has no supporting sources")
	}
}

func TestVerifyUngroundedClaim(t *testing.T) {
	svc := NewCitationService(testCitationConfig(), nil)

	sources := sourceChunks("The report covers quarterly revenue figures for the retail division.")
	check := svc.Verify(context.Background(), "The moon is made of green cheese according to recent studies.", sources, false)

	if check.IsGrounded {
		t.Error("fabricated claim reported as grounded")
	}
	if len(check.UngroundedClaims) != 1 {
		t.Fatalf("expected one ungrounded claim, got %d", len(check.UngroundedClaims))
	}
	if check.UngroundedClaims[0].MatchConfidence != 0 {
		t.Errorf("ungrounded claim confidence = %v, want 0", check.UngroundedClaims[0].MatchConfidence)
	}
	found := false
	for _, w := range check.Warnings {
		if strings.Contains(w, "ungrounded") {
			found = true
		}
	}
	if !found {
		t.Errorf("no ungrounded warning in %v", check.Warnings)
	}
}

func TestVerifyFuzzyMatch(t *testing.T) {
	svc := NewCitationService(testCitationConfig(), nil)

	sources := sourceChunks("The caching layer stores query responses in Redis with a five minute expiry window.")
	// One word swapped: too different for a substring hit, close enough
	// for the fuzzy layer.
	check := svc.Verify(context.Background(), "The caching layer keeps query responses in Redis with a five minute expiry.", sources, false)

	if !check.IsGrounded {
		t.Fatalf("paraphrased claim not grounded, warnings %v", check.Warnings)
	}
	claim := check.Claims[0]
	if claim.MatchConfidence < 0.75 || claim.MatchConfidence >= 1.0 {
		t.Errorf("fuzzy confidence = %v, want [0.75, 1.0)", claim.MatchConfidence)
	}
}

func TestVerifyStrictModeCountsLowInformationClaims(t *testing.T) {
	svc := NewCitationService(testCitationConfig(), nil)

	sources := sourceChunks("Queries run against the vector index and return scored chunks to the caller.")
	answer := "Queries run against the vector index and return scored chunks to the caller. However, more detail would require additional documents."

	relaxed := svc.Verify(context.Background(), answer, sources, false)
	if !relaxed.IsGrounded {
		t.Errorf("non-strict mode should skip the meta-statement, warnings %v", relaxed.Warnings)
	}

	strict := svc.Verify(context.Background(), answer, sources, true)
	if strict.IsGrounded {
		t.Error("strict mode should count the ungrounded meta-statement")
	}
}

func TestVerifyNoSources(t *testing.T) {
	svc := NewCitationService(testCitationConfig(), nil)

	check := svc.Verify(context.Background(), "Anything at all.", nil, false)
	if check.IsGrounded {
		t.Error("answer with no sources reported as grounded")
	}
	if len(check.Warnings) == 0 {
		t.Error("expected an explanatory warning")
	}
}

func TestVerifyEmptyAnswer(t *testing.T) {
	svc := NewCitationService(testCitationConfig(), nil)

	check := svc.Verify(context.Background(), "   ", sourceChunks("some text"), false)
	if check.IsGrounded {
		t.Error("empty answer reported as grounded")
	}
}

func TestVerifyContradictionWarning(t *testing.T) {
	svc := NewCitationService(testCitationConfig(), nil)

	sources := sourceChunks(
		"The migration to the new cluster was completed in March this year.",
		"The migration to the new cluster was not completed in March this year.",
	)
	check := svc.Verify(context.Background(), "The migration to the new cluster was completed in March this year.", sources, false)

	found := false
	for _, w := range check.Warnings {
		if strings.Contains(w, "contradict") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a contradiction warning, got %v", check.Warnings)
	}
}

func TestExtractClaimsFiltersLowInformation(t *testing.T) {
	claims := extractClaims("Go compiles to native machine code for many platforms. I hope that helps. Short. What else would you like to know?")

	var real, lowInfo int
	for _, c := range claims {
		if c.LowInformation {
			lowInfo++
		} else {
			real++
		}
	}
	if real != 1 {
		t.Errorf("expected exactly one substantive claim, got %d", real)
	}
	if lowInfo != 3 {
		t.Errorf("expected three low-information claims, got %d", lowInfo)
	}
}

func TestWordSimilarity(t *testing.T) {
	if sim := wordSimilarity("the cat sat on the mat", "the cat sat on the mat"); sim != 1.0 {
		t.Errorf("identical texts similarity = %v, want 1.0", sim)
	}
	if sim := wordSimilarity("alpha beta gamma", "delta epsilon zeta"); sim != 0 {
		t.Errorf("disjoint texts similarity = %v, want 0", sim)
	}
	sim := wordSimilarity("the quick brown fox", "the quick red fox")
	if sim <= 0.5 || sim >= 1.0 {
		t.Errorf("partial overlap similarity = %v, want (0.5, 1.0)", sim)
	}
}
