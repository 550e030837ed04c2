// Package provision renders Grafana provisioning files for the tracing
// backend, so the datasource registration that normally lives in a deploy
// repo can be generated from the same configuration the exporter uses.
package provision

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// Datasource is one entry of a Grafana datasource provisioning file.
type Datasource struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Access    string   `yaml:"access"`
	URL       string   `yaml:"url"`
	UID       string   `yaml:"uid,omitempty"`
	IsDefault bool     `yaml:"isDefault"`
	JSONData  JSONData `yaml:"jsonData,omitempty"`
}

// JSONData holds the Tempo-specific datasource settings.
type JSONData struct {
	HTTPMethod  string `yaml:"httpMethod,omitempty"`
	ServiceMap  *Link  `yaml:"serviceMap,omitempty"`
	TracesToLog *Link  `yaml:"tracesToLogs,omitempty"`
}

// Link points a datasource feature at another datasource by uid.
type Link struct {
	DatasourceUID string `yaml:"datasourceUid"`
}

type provisioningFile struct {
	APIVersion  int          `yaml:"apiVersion"`
	Datasources []Datasource `yaml:"datasources"`
}

// Tempo builds a datasource entry pointing Grafana at the backend's query
// port (usually :3200).
func Tempo(name, queryURL string) Datasource {
	return Datasource{
		Name:   name,
		Type:   "tempo",
		Access: "proxy",
		URL:    queryURL,
		UID:    "tempo",
		JSONData: JSONData{
			HTTPMethod: "GET",
		},
	}
}

// Render serializes datasources as a Grafana provisioning YAML document.
func Render(datasources ...Datasource) ([]byte, error) {
	if len(datasources) == 0 {
		return nil, fmt.Errorf("no datasources to render")
	}
	for _, ds := range datasources {
		if ds.URL == "" {
			return nil, fmt.Errorf("datasource %q has no url", ds.Name)
		}
	}

	out, err := yaml.Marshal(provisioningFile{
		APIVersion:  1,
		Datasources: datasources,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render provisioning file: %w", err)
	}
	return out, nil
}
