package pipeline

import (
	_ "embed"
	"strings"
)

//go:embed prompts/one_shot.md
var oneShotTemplate string

//go:embed prompts/chain_of_thought.md
var chainOfThoughtTemplate string

//go:embed prompts/criterion.md
var criterionTemplate string

//go:embed prompts/synthesis.md
var synthesisTemplate string

func renderSingleCall(template, jobAd, criteria, cvContent string) string {
	prompt := strings.ReplaceAll(template, "{{JOB_AD}}", jobAd)
	prompt = strings.ReplaceAll(prompt, "{{CRITERIA}}", criteria)
	return strings.ReplaceAll(prompt, "{{CV_CONTENT}}", cvContent)
}

func renderCriterion(jobAd, criterionName, criterionSection, cvID, cvContent string) string {
	prompt := strings.ReplaceAll(criterionTemplate, "{{CRITERION_NAME}}", criterionName)
	prompt = strings.ReplaceAll(prompt, "{{JOB_AD}}", jobAd)
	prompt = strings.ReplaceAll(prompt, "{{CRITERION_SECTION}}", criterionSection)
	prompt = strings.ReplaceAll(prompt, "{{CV_ID}}", cvID)
	return strings.ReplaceAll(prompt, "{{CV_CONTENT}}", cvContent)
}

func renderSynthesis(jobAd, evaluationsJSON string) string {
	prompt := strings.ReplaceAll(synthesisTemplate, "{{JOB_AD}}", jobAd)
	return strings.ReplaceAll(prompt, "{{EVALUATIONS_JSON}}", evaluationsJSON)
}
