package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/suteetoe/thing-service/internal/model"
	"github.com/suteetoe/thing-service/internal/repository"
	"gopkg.in/yaml.v3"
)

// Seeds is the content of db/seeds.yml
type Seeds struct {
	Things []SeedThing `yaml:"things"`
}

// SeedThing is one thing to make sure exists
type SeedThing struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// LoadSeeds reads a seed file. A missing file wraps fs.ErrNotExist.
func LoadSeeds(path string) (*Seeds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seeds Seeds
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &seeds, nil
}

// Apply creates the things that do not exist yet, matched by name
func (s *Seeds) Apply(ctx context.Context, things repository.ThingRepository) (created, existing int, err error) {
	for _, seed := range s.Things {
		name := strings.TrimSpace(seed.Name)

		_, err := things.FindByName(ctx, name)
		if err == nil {
			existing++
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return created, existing, err
		}

		description := seed.Description
		thing := model.NewThing(model.ThingAttributes{Name: &name, Description: &description})
		if err := things.Create(ctx, thing); err != nil {
			return created, existing, fmt.Errorf("failed to seed thing %q: %w", name, err)
		}
		created++
	}
	return created, existing, nil
}
