package process_video

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/streem-backend/internal/logger"
)

const specPathEnv = "PROCESS_VIDEO_SPEC_PATH"

//go:embed process_video.yaml
var specFS embed.FS

// fallback stage graph used when the YAML is missing or invalid
var fallbackStageOrder = []string{
	"probe",
	"transcode_720p",
	"transcode_480p",
	"poster",
	"captions",
	"enrich",
	"finalize",
}

var fallbackStageDeps = map[string][]string{
	"transcode_720p": {"probe"},
	"transcode_480p": {"probe"},
	"poster":         {"probe"},
	"captions":       {"probe"},
	"enrich":         {"captions"},
	"finalize":       {"poster", "transcode_480p", "transcode_720p"},
}

type pipelineSpec struct {
	Pipeline string      `yaml:"pipeline"`
	Version  int         `yaml:"version"`
	Stages   []stageSpec `yaml:"stages"`
}

type stageSpec struct {
	Name      string         `yaml:"name"`
	DependsOn []string       `yaml:"depends_on"`
	Enabled   *bool          `yaml:"enabled"`
	Config    map[string]any `yaml:"config"`
}

type specRuntime struct {
	StageOrder []string
	Stages     map[string]stageSpec
}

var specOnce sync.Once
var specCache *specRuntime
var specErr error

func currentSpec(log *logger.Logger) *specRuntime {
	specOnce.Do(func() {
		specCache, specErr = loadSpec()
	})
	if specErr != nil {
		if log != nil {
			log.Warn("process_video: pipeline spec load failed; using fallback", "error", specErr)
		}
		return nil
	}
	return specCache
}

// StageOrder is the run order of enabled stages.
func StageOrder(log *logger.Logger) []string {
	if rt := currentSpec(log); rt != nil && len(rt.StageOrder) > 0 {
		return rt.StageOrder
	}
	return fallbackStageOrder
}

// StageEnabled reports whether the spec carries the stage at all.
func StageEnabled(log *logger.Logger, name string) bool {
	if rt := currentSpec(log); rt != nil {
		_, ok := rt.Stages[name]
		return ok
	}
	for _, s := range fallbackStageOrder {
		if s == name {
			return true
		}
	}
	return false
}

// StageDeps lists the stages that must have run before the named one.
func StageDeps(log *logger.Logger, name string) []string {
	if rt := currentSpec(log); rt != nil {
		if spec, ok := rt.Stages[name]; ok {
			return spec.DependsOn
		}
		return nil
	}
	return fallbackStageDeps[name]
}

func loadSpec() (*specRuntime, error) {
	data, err := readSpec()
	if err != nil {
		return nil, err
	}

	var spec pipelineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if err := validateSpec(&spec); err != nil {
		return nil, err
	}

	order := make([]string, 0, len(spec.Stages))
	stages := make(map[string]stageSpec, len(spec.Stages))
	for _, stage := range spec.Stages {
		if stage.Name == "" {
			continue
		}
		if stage.Enabled != nil && !*stage.Enabled {
			continue
		}
		order = append(order, stage.Name)
		stages[stage.Name] = stage
	}

	return &specRuntime{StageOrder: order, Stages: stages}, nil
}

func readSpec() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(specPathEnv)); path != "" {
		return os.ReadFile(path)
	}
	return specFS.ReadFile("process_video.yaml")
}

var knownStages = map[string]bool{
	"probe":          true,
	"transcode_720p": true,
	"transcode_480p": true,
	"poster":         true,
	"captions":       true,
	"enrich":         true,
	"finalize":       true,
}

func validateSpec(spec *pipelineSpec) error {
	if spec == nil {
		return errors.New("missing spec")
	}
	if strings.TrimSpace(spec.Pipeline) != "process_video" {
		return fmt.Errorf("unexpected pipeline: %s", spec.Pipeline)
	}
	if len(spec.Stages) == 0 {
		return errors.New("no stages defined")
	}

	enabled := map[string]bool{}
	order := make([]string, 0, len(spec.Stages))
	for _, stage := range spec.Stages {
		name := strings.TrimSpace(stage.Name)
		if name == "" {
			return errors.New("stage name is required")
		}
		if !knownStages[name] {
			return fmt.Errorf("unknown stage: %s", name)
		}
		if _, exists := enabled[name]; exists {
			return fmt.Errorf("duplicate stage name: %s", name)
		}
		if stage.Enabled != nil && !*stage.Enabled {
			enabled[name] = false
			continue
		}
		enabled[name] = true
		order = append(order, name)
	}

	orderIndex := map[string]int{}
	for i, name := range order {
		orderIndex[name] = i
	}

	for _, stage := range spec.Stages {
		name := strings.TrimSpace(stage.Name)
		if !enabled[name] {
			continue
		}
		for _, dep := range stage.DependsOn {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				continue
			}
			if !enabled[dep] {
				return fmt.Errorf("stage %s: unknown or disabled dependency %s", name, dep)
			}
			if orderIndex[dep] > orderIndex[name] {
				return fmt.Errorf("stage %s: dependency %s appears after stage in order", name, dep)
			}
		}
	}

	return nil
}
