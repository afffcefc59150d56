package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/chittyos/evidence-core/internal/models"
)

// gapFingerprint collapses a knowledge gap's type and surrounding context
// into a stable key so repeated sightings of the "same" unknown dedupe
// into one KnowledgeGap row (§4.2 step 3).
func gapFingerprint(gapType models.GapType, partialValue, contextClues string) string {
	normalized := strings.ToLower(strings.TrimSpace(partialValue + "|" + contextClues))
	sum := sha256.Sum256([]byte(string(gapType) + "|" + normalized))
	return hex.EncodeToString(sum[:])
}
