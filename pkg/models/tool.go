package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Tool is one entry of the catalog document. It is read-only: the catalog
// file is the only source and nothing in the service writes it back.
type Tool struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	WhenWhy     string    `json:"when_why" yaml:"when_why"`
	Notes       string    `json:"notes" yaml:"notes"`
	How         string    `json:"how" yaml:"how"`
	Flags       []Flag    `json:"flags" yaml:"flags"`
	Examples    []Example `json:"examples" yaml:"examples"`
	Tips        Tips      `json:"tips" yaml:"tips"`
	Advanced    Advanced  `json:"advanced" yaml:"advanced"`
}

type Flag struct {
	Flag        string `json:"flag" yaml:"flag"`
	Explanation string `json:"explanation" yaml:"explanation"`
}

type Example struct {
	Command     string `json:"command" yaml:"command"`
	Explanation string `json:"explanation" yaml:"explanation"`
}

type Advanced struct {
	AdvancedTips []string `json:"advanced_tips" yaml:"advanced_tips"`
	Tips         []string `json:"tips" yaml:"tips"`
}

type Tip struct {
	Name string
	Text string
}

// Tips is the tip-name -> tip-text mapping of a tool. It is kept as a slice
// so the order of the source document survives decoding and re-encoding.
type Tips []Tip

func (t Tips) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, tip := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(tip.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(tip.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Tips) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*t = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("tips: expected object, got %v", tok)
	}

	out := Tips{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("tips[%s]: %w", key, err)
		}
		out = append(out, Tip{Name: key, Text: rawText(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*t = out
	return nil
}

func (t *Tips) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*t = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("tips: expected mapping at line %d", node.Line)
	}

	out := make(Tips, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, Tip{
			Name: node.Content[i].Value,
			Text: node.Content[i+1].Value,
		})
	}
	*t = out
	return nil
}

// rawText returns the string value of a JSON string, or the compact JSON
// text of anything else.
func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
