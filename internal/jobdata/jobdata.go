// Package jobdata loads the job description and hiring criteria documents
// supplied whole to every pipeline.
package jobdata

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Documents holds the two free-text inputs shared by all pipelines.
type Documents struct {
	JobAd            string `yaml:"job_ad"`
	DetailedCriteria string `yaml:"detailed_criteria"`
}

// Load reads the job documents from a YAML file. Both documents are
// required: a pipeline run without them would rank against nothing.
func Load(path string) (*Documents, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job data from %q: %w", path, err)
	}

	var docs Documents
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing job data from %q: %w", path, err)
	}

	docs.JobAd = strings.TrimSpace(docs.JobAd)
	docs.DetailedCriteria = strings.TrimSpace(docs.DetailedCriteria)

	if docs.JobAd == "" {
		return nil, fmt.Errorf("job data %q: job_ad is empty", path)
	}
	if docs.DetailedCriteria == "" {
		return nil, fmt.Errorf("job data %q: detailed_criteria is empty", path)
	}

	return &docs, nil
}
