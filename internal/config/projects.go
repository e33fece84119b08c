package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectsFileName is the registry file under <data-home>/gpal.
const ProjectsFileName = "projects.yaml"

// ProjectEntry records one project known to the index store.
type ProjectEntry struct {
	Root        string    `yaml:"root"`
	LastIndexed time.Time `yaml:"last_indexed,omitempty"`
}

// ProjectsFile maps project identities to their canonical roots.
type ProjectsFile struct {
	Projects map[string]ProjectEntry `yaml:"projects"`
}

func projectsPath(dataHome string) string {
	if dataHome == "" {
		dataHome = DataHome()
	}
	return filepath.Join(dataHome, "gpal", ProjectsFileName)
}

// LoadProjects reads the project registry. A missing file yields an empty
// registry, not an error.
func LoadProjects(dataHome string) (*ProjectsFile, error) {
	pf := &ProjectsFile{Projects: make(map[string]ProjectEntry)}

	data, err := os.ReadFile(projectsPath(dataHome))
	if err != nil {
		if os.IsNotExist(err) {
			return pf, nil
		}
		return nil, fmt.Errorf("read projects registry: %w", err)
	}

	if err := yaml.Unmarshal(data, pf); err != nil {
		return nil, fmt.Errorf("parse projects registry: %w", err)
	}
	if pf.Projects == nil {
		pf.Projects = make(map[string]ProjectEntry)
	}
	return pf, nil
}

// SaveProjects writes the project registry.
func SaveProjects(dataHome string, pf *ProjectsFile) error {
	path := projectsPath(dataHome)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	data, err := yaml.Marshal(pf)
	if err != nil {
		return fmt.Errorf("marshal projects registry: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write projects registry: %w", err)
	}
	return nil
}

// RegisterProject records a project root under its identity, updating the
// last-indexed timestamp.
func RegisterProject(dataHome, identity, root string) error {
	pf, err := LoadProjects(dataHome)
	if err != nil {
		return err
	}
	pf.Projects[identity] = ProjectEntry{
		Root:        root,
		LastIndexed: time.Now().UTC(),
	}
	return SaveProjects(dataHome, pf)
}

// ListProjects returns registered identities in stable order.
func ListProjects(dataHome string) ([]string, map[string]ProjectEntry, error) {
	pf, err := LoadProjects(dataHome)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, 0, len(pf.Projects))
	for id := range pf.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, pf.Projects, nil
}
