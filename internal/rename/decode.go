package rename

import (
	"encoding/json"
	"fmt"
)

// DecodeStrategy reads a strategy from its tagged JSON form:
//
//	{"type":"numbering","start":1,"step":1,"padding":3,"position":"suffix","separator":"_"}
//	{"type":"chain","steps":[{"type":"case","mode":"lower"},{"type":"affix","prefix":"x_"}]}
//
// Types are find-replace, numbering, case, affix, remove, template and chain.
func DecodeStrategy(data []byte) (Strategy, error) {
	var head struct {
		Type  string            `json:"type"`
		Steps []json.RawMessage `json:"steps"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("rename strategy: %w", err)
	}

	var s Strategy
	switch head.Type {
	case "find-replace":
		s = &FindReplace{}
	case "numbering":
		s = &Numbering{}
	case "case":
		s = &CaseTransform{}
	case "affix":
		s = &Affix{}
	case "remove":
		s = &Remove{}
	case "template":
		s = &Template{}
	case "chain":
		chain := make(Chain, 0, len(head.Steps))
		for i, raw := range head.Steps {
			step, err := DecodeStrategy(raw)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			chain = append(chain, step)
		}
		return chain, nil
	default:
		return nil, fmt.Errorf("unknown rename strategy %q", head.Type)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("rename strategy %s: %w", head.Type, err)
	}
	// Value strategies are returned by value so they compare like hand-built ones
	switch v := s.(type) {
	case *Numbering:
		return *v, nil
	case *CaseTransform:
		return *v, nil
	case *Affix:
		return *v, nil
	case *Template:
		return *v, nil
	}
	return s, nil
}
