package tools

import (
	"context"

	"github.com/talklens/talklens/retrieval"
)

// UniqueValuesTool enumerates the distinct values of the filterable talk
// fields, for building exact-match filters.
type UniqueValuesTool struct {
	rt *Runtime
}

func NewUniqueValuesTool(rt *Runtime) *UniqueValuesTool {
	return &UniqueValuesTool{rt: rt}
}

func (t *UniqueValuesTool) Name() string { return "get_unique_values" }

func (t *UniqueValuesTool) Description() string {
	return "List the distinct values of the filterable talk fields (event name, category, track, company, tech level, industries). Use it to discover valid exact-match filter values."
}

type uniqueValuesInput struct {
	EventName       bool `json:"event_name,omitempty"`
	CategoryPrimary bool `json:"category_primary,omitempty"`
	Track           bool `json:"track,omitempty"`
	CompanyName     bool `json:"company_name,omitempty"`
	TechLevel       bool `json:"tech_level,omitempty"`
	Industries      bool `json:"industries,omitempty"`
}

func (t *UniqueValuesTool) Parameters() map[string]interface{} {
	fields := map[string]interface{}{}
	for _, f := range retrieval.UniqueValueFields {
		fields[f] = map[string]interface{}{"type": "boolean", "default": false, "description": "Include the distinct values of " + f}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": fields,
	}
}

func (in *uniqueValuesInput) requested() []string {
	var fields []string
	if in.EventName {
		fields = append(fields, "event_name")
	}
	if in.CategoryPrimary {
		fields = append(fields, "category_primary")
	}
	if in.Track {
		fields = append(fields, "track")
	}
	if in.CompanyName {
		fields = append(fields, "company_name")
	}
	if in.TechLevel {
		fields = append(fields, "tech_level")
	}
	if in.Industries {
		fields = append(fields, "industries")
	}
	return fields
}

func (t *UniqueValuesTool) Run(ctx context.Context, inputJSON string) (string, error) {
	return t.rt.run(ctx, t.Name(), func(ctx context.Context, eng *retrieval.Engine) (any, error) {
		var in uniqueValuesInput
		if err := decode(inputJSON, &in); err != nil {
			return nil, err
		}
		fields := in.requested()
		if len(fields) == 0 {
			// Nothing selected reads as "show me everything".
			fields = retrieval.UniqueValueFields
		}

		out := map[string]interface{}{}
		for _, field := range fields {
			values, err := retrieval.UniqueValues(ctx, eng.Store(), field)
			if err != nil {
				return nil, err
			}
			out[field] = map[string]interface{}{
				"values": values,
				"count":  len(values),
			}
		}
		return out, nil
	})
}
