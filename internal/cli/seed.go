package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/signspeak/internal/sign"
	"github.com/ayusman/signspeak/internal/store"
)

const importBatchSize = 100

type seedSample struct {
	Label  string    `yaml:"label" json:"label"`
	Vector []float64 `yaml:"vector" json:"vector"`
}

type seedFile struct {
	Samples []seedSample `yaml:"samples" json:"samples"`
}

// readSeedFile reads labeled vectors from a YAML or JSON file. The file holds
// either a list of samples or an object with a "samples" list.
func readSeedFile(path string) ([]*store.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read samples file: %w", err)
	}

	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(path), ".json") {
		unmarshal = json.Unmarshal
	}

	var doc seedFile
	var list []seedSample
	docErr := unmarshal(data, &doc)
	if docErr == nil && len(doc.Samples) > 0 {
		list = doc.Samples
	} else if err := unmarshal(data, &list); err != nil {
		if docErr != nil {
			return nil, fmt.Errorf("parse samples file %s: %w", path, docErr)
		}
		list = nil
	}

	samples := make([]*store.Sample, 0, len(list))
	for i, s := range list {
		label := strings.TrimSpace(s.Label)
		if label == "" {
			return nil, fmt.Errorf("sample %d: label is required", i+1)
		}
		if len(s.Vector) == 0 {
			return nil, fmt.Errorf("sample %d (%s): vector is empty", i+1, label)
		}
		samples = append(samples, &store.Sample{Label: label, Vector: s.Vector})
	}
	return samples, nil
}

// importSamples checks that the new samples agree in dimension with the
// stored ones and writes them in batches, reporting progress to out.
func importSamples(st *store.Store, samples []*store.Sample, out io.Writer) error {
	existing, err := st.Samples().Vectors()
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}
	all := existing
	for _, s := range samples {
		all = append(all, sign.Sample{Label: s.Label, Vector: s.Vector})
	}
	if _, err := sign.NewClassifier(all); err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(samples),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("Importing samples"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("samples"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	for start := 0; start < len(samples); start += importBatchSize {
		end := min(start+importBatchSize, len(samples))
		if err := st.Samples().CreateBatch(samples[start:end]); err != nil {
			return fmt.Errorf("save samples %d-%d: %w", start+1, end, err)
		}
		bar.Add(end - start)
	}
	bar.Finish()
	fmt.Fprintln(out)
	return nil
}

// seedSamples imports path into an empty sample table. It does nothing when
// path is empty or samples already exist.
func seedSamples(st *store.Store, path string, out io.Writer) (int, error) {
	if path == "" {
		return 0, nil
	}
	existing, err := st.Samples().Vectors()
	if err != nil {
		return 0, fmt.Errorf("load samples: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	samples, err := readSeedFile(path)
	if err != nil {
		return 0, err
	}
	if err := importSamples(st, samples, out); err != nil {
		return 0, err
	}
	return len(samples), nil
}
