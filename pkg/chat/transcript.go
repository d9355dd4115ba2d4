package chat

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SaveTranscript writes an ordered message snapshot to a JSON or YAML file,
// picked by extension. This is an export of the view, not engine state;
// optimistic entries are skipped because they were never confirmed.
func SaveTranscript(filename string, messages []Message) error {
	confirmed := make([]Message, 0, len(messages))
	for _, m := range messages {
		if !m.Optimistic() {
			confirmed = append(confirmed, m)
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "create transcript file")
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	if isYAML(filename) {
		return errors.Wrap(yaml.NewEncoder(f).Encode(confirmed), "encode transcript")
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(confirmed), "encode transcript")
}

// LoadTranscript reads messages back from a JSON or YAML transcript file.
func LoadTranscript(filename string) ([]Message, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "open transcript file")
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var messages []Message
	if isYAML(filename) {
		err = yaml.NewDecoder(f).Decode(&messages)
	} else {
		err = json.NewDecoder(f).Decode(&messages)
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode transcript")
	}

	return messages, nil
}

func isYAML(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}
