package output

import (
	"encoding/json"

	"github.com/greenstreak/greenstreak/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatStats(report *StatsReport) (string, error) {
	return f.marshal(report)
}

func (f *JSONFormatter) FormatLimiters(rows []LimiterRow) (string, error) {
	if rows == nil {
		rows = []LimiterRow{}
	}
	return f.marshal(rows)
}

func (f *JSONFormatter) FormatActivity(report *ActivityReport) (string, error) {
	return f.marshal(report)
}

func (f *JSONFormatter) FormatEvents(events []core.Event) (string, error) {
	if events == nil {
		events = []core.Event{}
	}
	return f.marshal(events)
}

func (f *JSONFormatter) FormatCommits(records []core.CommitRecord) (string, error) {
	if records == nil {
		records = []core.CommitRecord{}
	}
	return f.marshal(records)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
