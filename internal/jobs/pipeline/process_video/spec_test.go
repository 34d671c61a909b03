package process_video

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func parseSpec(t *testing.T, doc string) *pipelineSpec {
	t.Helper()
	var spec pipelineSpec
	if err := yaml.Unmarshal([]byte(doc), &spec); err != nil {
		t.Fatalf("unmarshal spec: %v", err)
	}
	return &spec
}

func TestEmbeddedSpecIsValid(t *testing.T) {
	data, err := specFS.ReadFile("process_video.yaml")
	if err != nil {
		t.Fatalf("read embedded spec: %v", err)
	}
	spec := parseSpec(t, string(data))
	if err := validateSpec(spec); err != nil {
		t.Fatalf("embedded spec invalid: %v", err)
	}
	if len(spec.Stages) != len(fallbackStageOrder) {
		t.Fatalf("embedded spec has %d stages, fallback has %d", len(spec.Stages), len(fallbackStageOrder))
	}
	for i, stage := range spec.Stages {
		if stage.Name != fallbackStageOrder[i] {
			t.Fatalf("stage[%d] = %s, fallback order says %s", i, stage.Name, fallbackStageOrder[i])
		}
	}
}

func TestValidateSpecRejectsUnknownStage(t *testing.T) {
	spec := parseSpec(t, `
pipeline: process_video
stages:
  - name: probe
  - name: upscale_4k
`)
	if err := validateSpec(spec); err == nil {
		t.Fatal("unknown stage accepted")
	}
}

func TestValidateSpecRejectsDuplicateStage(t *testing.T) {
	spec := parseSpec(t, `
pipeline: process_video
stages:
  - name: probe
  - name: probe
`)
	if err := validateSpec(spec); err == nil {
		t.Fatal("duplicate stage accepted")
	}
}

func TestValidateSpecRejectsDepOnDisabledStage(t *testing.T) {
	spec := parseSpec(t, `
pipeline: process_video
stages:
  - name: probe
  - name: captions
    enabled: false
  - name: enrich
    depends_on: [captions]
`)
	if err := validateSpec(spec); err == nil {
		t.Fatal("dependency on disabled stage accepted")
	}
}

func TestValidateSpecRejectsForwardDep(t *testing.T) {
	spec := parseSpec(t, `
pipeline: process_video
stages:
  - name: finalize
    depends_on: [probe]
  - name: probe
`)
	if err := validateSpec(spec); err == nil {
		t.Fatal("forward dependency accepted")
	}
}

func TestValidateSpecRejectsWrongPipeline(t *testing.T) {
	spec := parseSpec(t, `
pipeline: other
stages:
  - name: probe
`)
	if err := validateSpec(spec); err == nil {
		t.Fatal("wrong pipeline name accepted")
	}
}

func TestLoadSpecSkipsDisabledStages(t *testing.T) {
	spec := parseSpec(t, `
pipeline: process_video
stages:
  - name: probe
  - name: captions
    enabled: false
  - name: finalize
`)
	if err := validateSpec(spec); err != nil {
		t.Fatalf("spec invalid: %v", err)
	}
	order := make([]string, 0, len(spec.Stages))
	for _, stage := range spec.Stages {
		if stage.Enabled != nil && !*stage.Enabled {
			continue
		}
		order = append(order, stage.Name)
	}
	want := []string{"probe", "finalize"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
