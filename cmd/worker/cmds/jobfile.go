package cmds

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/inacomp/submission-judge/internal/jobschema"
	"github.com/inacomp/submission-judge/internal/types"
)

// readJobFile loads a job from a .yaml, .yml or .json file. YAML jobs are converted to JSON so
// both formats go through the same validation as queue payloads.
func readJobFile(name string) (*types.SubmissionJob, []byte, error) {
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, nil, err
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var job types.SubmissionJob
		if err := yaml.UnmarshalStrict(raw, &job); err != nil {
			return nil, nil, fmt.Errorf("failed to parse job yaml: %w", err)
		}
		if raw, err = json.Marshal(job); err != nil {
			return nil, nil, err
		}
	}

	job, err := jobschema.Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	return job, raw, nil
}
