package agents

// MaxActions bounds every specialist response.
const MaxActions = 15

const semSchema = `{
  "type": "object",
  "required": ["actions"],
  "properties": {
    "summary": {"type": "string"},
    "actions": {
      "type": "array",
      "minItems": 1,
      "maxItems": 15,
      "items": {
        "type": "object",
        "required": ["type", "level", "action", "impact", "rationale"],
        "properties": {
          "type": {"type": "string", "minLength": 1},
          "level": {"enum": ["account", "campaign", "ad_group", "keyword"]},
          "keyword": {"type": "string"},
          "campaign": {"type": "string"},
          "action": {"type": "string", "minLength": 1},
          "impact": {"enum": ["high", "medium", "low"]},
          "effort": {"enum": ["high", "medium", "low"]},
          "rationale": {"type": "string", "minLength": 1},
          "expected_outcome": {"type": "string"}
        }
      }
    }
  }
}`

const seoSchema = `{
  "type": "object",
  "required": ["actions"],
  "properties": {
    "summary": {"type": "string"},
    "actions": {
      "type": "array",
      "minItems": 1,
      "maxItems": 15,
      "items": {
        "type": "object",
        "required": ["type", "condition", "recommendation", "impact", "rationale"],
        "properties": {
          "type": {"type": "string", "minLength": 1},
          "url": {"type": "string"},
          "keyword": {"type": "string"},
          "condition": {"type": "string", "minLength": 1},
          "recommendation": {"type": "string", "minLength": 1},
          "specific_actions": {"type": "array", "maxItems": 5, "items": {"type": "string"}},
          "impact": {"enum": ["high", "medium", "low"]},
          "effort": {"enum": ["high", "medium", "low"]},
          "rationale": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

const semContract = `Respond with a single JSON object and nothing else:
{"summary": "<one sentence>", "actions": [{"type": "<bid_change|negative_keyword|pause|budget_shift|ad_copy|landing_page|other>", "level": "account|campaign|ad_group|keyword", "keyword": "<query, when keyword-level>", "campaign": "<optional>", "action": "<what to do>", "impact": "high|medium|low", "effort": "high|medium|low", "rationale": "<data that supports it>", "expected_outcome": "<optional>"}]}
Return at most 15 actions, most important first. If nothing is worth changing return {"actions": []}.`

const seoContract = `Respond with a single JSON object and nothing else:
{"summary": "<one sentence>", "actions": [{"type": "<content|technical|structured_data|internal_linking|ranking|other>", "url": "<page, when page-level>", "keyword": "<query, when query-level>", "condition": "<what is wrong or possible>", "recommendation": "<what to do>", "specific_actions": ["<step>", "..."], "impact": "high|medium|low", "effort": "high|medium|low", "rationale": "<data that supports it>"}]}
Return at most 15 actions, most important first, at most 5 specific_actions each. If nothing is worth changing return {"actions": []}.`
