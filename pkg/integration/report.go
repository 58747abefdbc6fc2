package integration

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type Result string

const (
	Passed  Result = "passed"
	Failed  Result = "failed"
	Skipped Result = "skipped"
)

type ScenarioReport struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Result   Result `yaml:"result"`
	Duration string `yaml:"duration,omitempty"`
	Error    string `yaml:"error,omitempty"`
}

type Report struct {
	Root      string           `yaml:"root"`
	Loadgen   string           `yaml:"loadgen"`
	Started   string           `yaml:"started"`
	Passed    int              `yaml:"passed"`
	Failed    int              `yaml:"failed"`
	Scenarios []ScenarioReport `yaml:"scenarios"`
}

func (r *Report) add(s ScenarioReport) {
	switch s.Result {
	case Passed:
		r.Passed++
	case Failed:
		r.Failed++
	}
	r.Scenarios = append(r.Scenarios, s)
}

func (r Report) Write(path string) error {
	bytes, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}
	return errors.Wrap(ioutil.WriteFile(path, bytes, 0644), "writing report")
}
