package domain

// ServiceType tags the rough shape of a service so prompts and test stages can
// be tuned per type.
type ServiceType string

const (
	ServiceTypeBackend  ServiceType = "backend"
	ServiceTypeFrontend ServiceType = "frontend"
	ServiceTypeML       ServiceType = "ml"
	ServiceTypeAudio    ServiceType = "audio"
	ServiceTypeOther    ServiceType = "other"
)

// QualityMetric is a declared threshold a service must meet in domain QA.
// Operator is one of >, <, >=, <=.
type QualityMetric struct {
	Name      string  `yaml:"name"      json:"name"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Operator  string  `yaml:"operator"  json:"operator"`
}

// ServiceSpec is one service in the declarative project document. Immutable
// after parsing.
type ServiceSpec struct {
	Name           string          `yaml:"name"            json:"name"`
	Type           ServiceType     `yaml:"type"            json:"type"`
	Description    string          `yaml:"description"     json:"description"`
	Dependencies   []string        `yaml:"dependencies"    json:"dependencies"`
	QualityMetrics []QualityMetric `yaml:"quality_metrics" json:"quality_metrics"`
}

// ProjectSpec is the declarative input resolved once at run start.
type ProjectSpec struct {
	Name          string        `yaml:"name"           json:"name"`
	Version       string        `yaml:"version"        json:"version"`
	RepositoryURL string        `yaml:"repository_url" json:"repository_url"`
	Branch        string        `yaml:"branch"         json:"branch"`
	Services      []ServiceSpec `yaml:"services"       json:"services"`
}

// Service returns the spec for the named service, or nil.
func (p *ProjectSpec) Service(name string) *ServiceSpec {
	for i := range p.Services {
		if p.Services[i].Name == name {
			return &p.Services[i]
		}
	}
	return nil
}
