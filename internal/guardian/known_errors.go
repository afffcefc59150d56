package guardian

import (
	"context"
	"regexp"
	"strings"

	"github.com/chittyos/evidence-core/internal/models"
)

// usDateSlash matches the MM/DD/YYYY format scanForKnownErrors flags as
// invalid: every date column in this system is ISO 8601, so a slash-form
// date in metadata means extraction copied the source text verbatim.
var usDateSlash = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)

var knownGrantTypes = map[string]bool{
	string(models.DocTypePOAGeneral):    true,
	string(models.DocTypePOAHealthcare): true,
	string(models.DocTypePOAFinancial):  true,
}

var effectiveDateRequired = map[models.DocumentType]bool{
	models.DocTypePOAGeneral:    true,
	models.DocTypePOAHealthcare: true,
	models.DocTypePOAFinancial:  true,
	models.DocTypeTrust:         true,
	models.DocTypeDeed:          true,
}

// ScanForKnownErrors runs a built-in library of error patterns over the
// corpus (§4.6): invalid date formats, LLC entities missing their suffix,
// authority-grant type mismatches, and documents missing an effective
// date where their type requires one. Read-only; findings suggest rules
// rather than applying anything.
func (g *Guardian) ScanForKnownErrors(ctx context.Context) ([]*models.KnownErrorFinding, error) {
	docs, err := g.store.ListDocuments(ctx, 0, findAffectedCap)
	if err != nil {
		return nil, err
	}

	var badDateDocs, missingEffectiveDateDocs int
	for _, doc := range docs {
		if raw, err := getPath(doc.Metadata, "effective_date"); err == nil && usDateSlash.MatchString(raw) {
			badDateDocs++
		}
		if effectiveDateRequired[doc.DocType] && doc.EffectiveDate == nil {
			missingEffectiveDateDocs++
		}
	}

	entities, err := g.store.FindEntitiesLike(ctx, "")
	if err != nil {
		return nil, err
	}
	llcMissingSuffix := 0
	for _, e := range entities {
		if e.Kind == models.EntityKindLLC && !strings.Contains(strings.ToUpper(e.Name), "LLC") {
			llcMissingSuffix++
		}
	}

	authorityMismatch := 0
	seenGrants := map[string]bool{}
	for _, e := range entities {
		grants, err := g.store.GrantsForEntity(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		for _, gr := range grants {
			if seenGrants[gr.ID] {
				continue
			}
			seenGrants[gr.ID] = true
			if !knownGrantTypes[gr.Type] {
				authorityMismatch++
			}
		}
	}

	var findings []*models.KnownErrorFinding
	if badDateDocs > 0 {
		findings = append(findings, &models.KnownErrorFinding{
			Pattern:       `^\d{1,2}/\d{1,2}/\d{4}$`,
			Description:   "effective_date stored in MM/DD/YYYY instead of ISO 8601",
			AffectedCount: badDateDocs,
			SuggestedRule: models.CorrectionRule{
				Name:           "normalize slash dates",
				RuleType:       "date_extraction",
				MatchCriteria:  models.MatchCriteria{FieldPath: "effective_date", RequireFieldPathExists: true},
				CorrectionType: models.CorrectionTypeRegex,
				CorrectionValue: `{"pattern":"^(\\d{1,2})/(\\d{1,2})/(\\d{4})$","replacement":"$3-$1-$2"}`,
				Status:         models.RuleStatusDraft,
			},
		})
	}
	if llcMissingSuffix > 0 {
		findings = append(findings, &models.KnownErrorFinding{
			Pattern:       "entity.kind=llc, name missing \"LLC\"",
			Description:   "entity resolved as an LLC but its name carries no LLC suffix",
			AffectedCount: llcMissingSuffix,
			SuggestedRule: models.CorrectionRule{
				Name:           "flag LLC entities without suffix for manual review",
				RuleType:       "entity_name",
				MatchCriteria:  models.MatchCriteria{},
				CorrectionType: models.CorrectionTypeManualReview,
				Status:         models.RuleStatusDraft,
			},
		})
	}
	if authorityMismatch > 0 {
		findings = append(findings, &models.KnownErrorFinding{
			Pattern:       "authority_grants.type not in known grant types",
			Description:   "grant type does not match any recognized authority type",
			AffectedCount: authorityMismatch,
			SuggestedRule: models.CorrectionRule{
				Name:           "flag mismatched authority types for manual review",
				RuleType:       "authority_type",
				MatchCriteria:  models.MatchCriteria{FieldPath: "authority.type", RequireFieldPathExists: true},
				CorrectionType: models.CorrectionTypeManualReview,
				Status:         models.RuleStatusDraft,
			},
		})
	}
	if missingEffectiveDateDocs > 0 {
		findings = append(findings, &models.KnownErrorFinding{
			Pattern:       "document_type requires effective_date, none recorded",
			Description:   "document type normally carries an effective date but extraction found none",
			AffectedCount: missingEffectiveDateDocs,
			SuggestedRule: models.CorrectionRule{
				Name:           "re-extract documents missing effective date",
				RuleType:       "date_extraction",
				MatchCriteria:  models.MatchCriteria{FieldPath: "effective_date"},
				CorrectionType: models.CorrectionTypeAIReextract,
				Status:         models.RuleStatusDraft,
			},
		})
	}
	return findings, nil
}
