// Package config loads the declarative VirtualHost/Domain/Origin tree an
// Orchestrator reconciles against, plus the .env bootstrap shared with the
// ingest package's scalar environment settings.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v2"

	"originmesh/internal/orchestrator"
)

// LoadDotEnv reads the .env file from the current working directory and
// sets environment variables, the same bootstrap order as the teacher's
// ingest env loading. Missing a .env file is not an error; callers should
// fall back to whatever is already in the environment.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	err := godotenv.Load(paths...)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// hostDocument is the YAML shape of a single virtual host entry.
type hostDocument struct {
	Name    string          `yaml:"name"`
	Domains []string        `yaml:"domains"`
	Origins []originDocument `yaml:"origins"`
}

type originDocument struct {
	Location string   `yaml:"location"`
	Scheme   string   `yaml:"scheme"`
	URLs     []string `yaml:"urls"`
}

type document struct {
	VirtualHosts []hostDocument `yaml:"virtualHosts"`
}

// LoadHostConfigs parses a VirtualHost/Domain/Origin declarative tree from
// YAML and returns it as the []orchestrator.HostConfig shape
// Orchestrator.ApplyOriginMap diffs against.
func LoadHostConfigs(data []byte) ([]orchestrator.HostConfig, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse virtual host config: %w", err)
	}

	configs := make([]orchestrator.HostConfig, 0, len(doc.VirtualHosts))
	for _, host := range doc.VirtualHosts {
		if host.Name == "" {
			return nil, fmt.Errorf("virtual host entry missing name")
		}
		origins := make([]orchestrator.OriginConfig, 0, len(host.Origins))
		for _, origin := range host.Origins {
			if origin.Location == "" {
				return nil, fmt.Errorf("virtual host %q: origin missing location", host.Name)
			}
			if origin.Scheme == "" {
				return nil, fmt.Errorf("virtual host %q: origin %q missing scheme", host.Name, origin.Location)
			}
			if len(origin.URLs) == 0 {
				return nil, fmt.Errorf("virtual host %q: origin %q has no upstream urls", host.Name, origin.Location)
			}
			origins = append(origins, orchestrator.OriginConfig{
				Location: origin.Location,
				Scheme:   origin.Scheme,
				URLs:     origin.URLs,
			})
		}
		configs = append(configs, orchestrator.HostConfig{
			Name:    host.Name,
			Domains: host.Domains,
			Origins: origins,
		})
	}
	return configs, nil
}

// LoadHostConfigsFile reads and parses a VirtualHost/Domain/Origin tree from
// the YAML file at path.
func LoadHostConfigsFile(path string) ([]orchestrator.HostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read virtual host config %s: %w", path, err)
	}
	return LoadHostConfigs(data)
}
