package pipeline

import "strings"

// Criterion is one independently scored hiring dimension.
type Criterion struct {
	Name string
	Key  string
}

// Criteria are the hiring dimensions evaluated by the multi-call strategies,
// in the order they appear in aggregation output.
var Criteria = []Criterion{
	{Name: "Zero-to-One Operator", Key: "zero_to_one"},
	{Name: "Technical T-Shape", Key: "technical_t_shape"},
	{Name: "Recruitment Mastery", Key: "recruitment_mastery"},
}

// ExtractCriterionSection slices the guidance for one criterion out of the
// full criteria document: from the heading line containing the criterion
// name up to the next heading that does not mention it. When no matching
// heading exists the whole document is returned.
func ExtractCriterionSection(criteriaDoc, criterionName string) string {
	lines := strings.Split(criteriaDoc, "\n")
	lowerName := strings.ToLower(criterionName)

	start := -1
	end := len(lines)

	for i, line := range lines {
		lowerLine := strings.ToLower(line)
		if start == -1 {
			if strings.Contains(lowerLine, lowerName) && strings.Contains(line, "#") {
				start = i
			}
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") && !strings.Contains(lowerLine, lowerName) {
			end = i
			break
		}
	}

	if start == -1 {
		return criteriaDoc
	}
	return strings.Join(lines[start:end], "\n")
}
