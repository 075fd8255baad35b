package governance

// GovernanceSchema returns the fixed JSON Schema that validates a
// governance subject's own state: the set of members, the per-schema-id
// JSON Schemas the governance subject authorizes, and the policies
// (quorums, approvers, validators, invokers) attached to each schema.
// This shape is unchanged across implementations; it is reproduced here
// as data, not re-derived.
func GovernanceSchema() map[string]interface{} {
	return map[string]interface{}{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"required": []interface{}{"members", "schemas", "policies"},
		"properties": map[string]interface{}{
			"members": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"id", "name", "description", "key"},
					"properties": map[string]interface{}{
						"id":          map[string]interface{}{"type": "string"},
						"name":        map[string]interface{}{"type": "string"},
						"description": map[string]interface{}{"type": "string"},
						"key":         map[string]interface{}{"type": "string"},
					},
				},
			},
			"schemas": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"id", "content"},
					"properties": map[string]interface{}{
						"id": map[string]interface{}{"type": "string"},
						"content": map[string]interface{}{
							"$schema": "https://json-schema.org/draft/2020-12/schema",
							"type":    "object",
						},
					},
				},
			},
			"policies": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"id", "validation", "approval", "invokation"},
					"properties": map[string]interface{}{
						"id": map[string]interface{}{"type": "string"},
						"validation": map[string]interface{}{
							"type":     "object",
							"required": []interface{}{"quorum"},
							"properties": map[string]interface{}{
								"quorum": quorumSchema(),
							},
						},
						"approval": map[string]interface{}{
							"type":     "object",
							"required": []interface{}{"quorum"},
							"properties": map[string]interface{}{
								"quorum": quorumSchema(),
							},
						},
						"invokation": map[string]interface{}{
							"type":     "object",
							"required": []interface{}{"owner", "set"},
							"properties": map[string]interface{}{
								"owner": invokerRuleSchema(),
								"set":   invokerRuleSchema(),
								"all":   invokerRuleSchema(),
								"external": map[string]interface{}{
									"type": "array",
									"items": map[string]interface{}{
										"type":     "object",
										"required": []interface{}{"id"},
										"properties": map[string]interface{}{
											"id":  map[string]interface{}{"type": "string"},
											"rule": invokerRuleSchema(),
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

func quorumSchema() map[string]interface{} {
	return map[string]interface{}{
		"oneOf": []interface{}{
			map[string]interface{}{"const": "MAJORITY"},
			map[string]interface{}{
				"type":       "object",
				"required":   []interface{}{"FIXED"},
				"properties": map[string]interface{}{"FIXED": map[string]interface{}{"type": "integer", "minimum": 1}},
			},
			map[string]interface{}{
				"type":       "object",
				"required":   []interface{}{"PERCENTAGE"},
				"properties": map[string]interface{}{"PERCENTAGE": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1}},
			},
		},
	}
}

func invokerRuleSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"allowance"},
		"properties": map[string]interface{}{
			"allowance": map[string]interface{}{"type": "boolean"},
			"approvalRequired": map[string]interface{}{"type": "boolean"},
		},
	}
}
