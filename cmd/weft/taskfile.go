package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"weft/internal/task"
)

// TaskFile is the YAML schema accepted by plan and run.
type TaskFile struct {
	Thread         string     `yaml:"thread"`
	MaxTurns       int        `yaml:"max_turns"`
	RaiseOnFailure bool       `yaml:"raise_on_failure"`
	Actor          ActorSpec  `yaml:"actor"`
	Tasks          []TaskSpec `yaml:"tasks"`
}

// ActorSpec describes the actor taking the turns.
type ActorSpec struct {
	Name         string       `yaml:"name"`
	Instructions string       `yaml:"instructions"`
	MCPServers   []ServerSpec `yaml:"mcp_servers"`
}

// ServerSpec declares one external tool server.
type ServerSpec struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// TaskSpec describes one task.
type TaskSpec struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Instructions string   `yaml:"instructions"`
	Labels       []string `yaml:"labels"`
	Multi        bool     `yaml:"multi"`
	DependsOn    []string `yaml:"depends_on"`
	Parent       string   `yaml:"parent"`
	Verbose      bool     `yaml:"verbose"`
}

// LoadTaskFile parses and validates a task file.
func LoadTaskFile(path string) (*TaskFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	var file TaskFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("task file declares no tasks")
	}
	seen := map[string]bool{}
	for i, spec := range file.Tasks {
		if spec.ID == "" {
			return nil, fmt.Errorf("task %d has no id", i)
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("duplicate task id %q", spec.ID)
		}
		seen[spec.ID] = true
		if spec.Instructions == "" {
			return nil, fmt.Errorf("task %q has no instructions", spec.ID)
		}
		if spec.Multi && len(spec.Labels) == 0 {
			return nil, fmt.Errorf("task %q sets multi without labels", spec.ID)
		}
	}
	return &file, nil
}

// BuildTasks materializes the task graph. Dependencies and parents must
// reference ids declared in the same file.
func (f *TaskFile) BuildTasks(ctx context.Context, assignee task.Assignee) ([]*task.Task, error) {
	byID := make(map[string]*task.Task, len(f.Tasks))
	for _, spec := range f.Tasks {
		var resultType task.ResultType
		if len(spec.Labels) > 0 {
			classifier := task.NewLabelStrings(spec.Labels...)
			classifier.Multi = spec.Multi
			resultType = classifier
		}
		byID[spec.ID] = task.New(ctx, task.Config{
			ID:           spec.ID,
			Name:         spec.Name,
			Instructions: spec.Instructions,
			ResultType:   resultType,
			Assignee:     assignee,
			Verbose:      spec.Verbose,
		})
	}

	tasks := make([]*task.Task, 0, len(f.Tasks))
	for _, spec := range f.Tasks {
		t := byID[spec.ID]
		for _, depID := range spec.DependsOn {
			dep, ok := byID[depID]
			if !ok {
				return nil, fmt.Errorf("task %q depends on unknown task %q", spec.ID, depID)
			}
			t.AddDependency(dep)
		}
		if spec.Parent != "" {
			parent, ok := byID[spec.Parent]
			if !ok {
				return nil, fmt.Errorf("task %q names unknown parent %q", spec.ID, spec.Parent)
			}
			t.SetParent(parent)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
