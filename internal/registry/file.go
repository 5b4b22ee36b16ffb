package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/quizlens/internal/model"
)

type modelFile struct {
	Models []model.ModelDescriptor `yaml:"models"`
}

// LoadFile reads a YAML model table from path. Every entry needs an id and
// a supported provider; a missing upstream id defaults to the id.
func LoadFile(path string) ([]model.ModelDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read model file")
	}

	var f modelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal model file")
	}
	if len(f.Models) == 0 {
		return nil, eris.Errorf("registry: model file %s has no models", path)
	}

	for i := range f.Models {
		m := &f.Models[i]
		if m.ID == "" {
			return nil, eris.Errorf("registry: model %d has no id", i)
		}
		if !m.Provider.Valid() {
			return nil, eris.Errorf("registry: model %s has unsupported provider %q", m.ID, m.Provider)
		}
		if m.UpstreamModelID == "" {
			m.UpstreamModelID = m.ID
		}
		if m.DisplayName == "" {
			m.DisplayName = m.ID
		}
	}
	return f.Models, nil
}
