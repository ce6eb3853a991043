package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// workflowFile is the on-disk workflow definition, YAML or JSON:
//
//	name: morning digest
//	steps:
//	  - id: now
//	    module: utilities.datetime.now
//	    outputAs: ts
type workflowFile struct {
	ID             string         `json:"id,omitempty"`
	Name           string         `json:"name,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Trigger        map[string]any `json:"trigger,omitempty"`
	Steps          []schema.Step  `json:"steps"`
}

func (f *workflowFile) Config() schema.WorkflowConfig {
	return schema.WorkflowConfig{Steps: f.Steps}
}

func loadWorkflowFile(path string) (*workflowFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	wf, err := parseWorkflowFile(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}

// parseWorkflowFile decodes YAML (anything not ending in .json) into
// generic values first, so steps go through the same JSON decoding as
// every other entry point.
func parseWorkflowFile(data []byte, ext string) (*workflowFile, error) {
	if !strings.EqualFold(ext, ".json") {
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		var err error
		data, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
	}

	var wf workflowFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if len(wf.Steps) == 0 {
		return nil, fmt.Errorf("workflow has no steps")
	}
	return &wf, nil
}

// parseTriggerData decodes a --trigger-data JSON object; empty means none.
func parseTriggerData(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, fmt.Errorf("--trigger-data must be a JSON object: %w", err)
	}
	return data, nil
}
