package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `{"actions":[{"type":"pause","impact":"high","keyword":"trail shoes"}],"note":"a } in a string"}`

func decode(t *testing.T, raw json.RawMessage) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestExtractJSONShapesAgree(t *testing.T) {
	shapes := map[string]string{
		"bare":   doc,
		"fenced": "Here is my analysis:\n```json\n" + doc + "\n```\nThanks.",
		"prose":  "Sure! Based on the data, " + doc + " Let me know if you need more.",
	}
	want := decode(t, json.RawMessage(doc))
	for name, text := range shapes {
		t.Run(name, func(t *testing.T) {
			raw, err := ExtractJSON(text)
			require.NoError(t, err)
			if diff := cmp.Diff(want, decode(t, raw)); diff != "" {
				t.Errorf("extracted JSON mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractJSONArrayAndUnlabeledFence(t *testing.T) {
	raw, err := ExtractJSON("```\n[1, 2, 3]\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3]`, string(raw))

	raw, err = ExtractJSON("result: [ \"a\", 1 ] done")
	require.NoError(t, err)
	assert.JSONEq(t, `["a",1]`, string(raw))
}

func TestExtractJSONPrefersObjectOverEarlierArray(t *testing.T) {
	raw, err := ExtractJSON(`I reviewed the top [3, 5, 8] queries. Result: {"actions": [{"type":"pause"}]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"actions":[{"type":"pause"}]}`, string(raw))
}

func TestExtractJSONMalformed(t *testing.T) {
	_, err := ExtractJSON("I could not find anything to recommend {not json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResponseMalformed))
	assert.Contains(t, err.Error(), "I could not find anything")

	long := strings.Repeat("x", 1000)
	_, err = ExtractJSON(long)
	require.Error(t, err)
	assert.Less(t, len(err.Error()), 300)
}

const schema = `{
  "type": "object",
  "required": ["actions"],
  "properties": {
    "actions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["type", "impact"],
        "properties": {
          "type": {"type": "string"},
          "impact": {"enum": ["high", "medium", "low"]}
        }
      }
    }
  }
}`

func TestValidate(t *testing.T) {
	var out struct {
		Actions []struct {
			Type   string `json:"type"`
			Impact string `json:"impact"`
		} `json:"actions"`
	}
	require.NoError(t, Validate("sem", schema, json.RawMessage(`{"actions":[{"type":"pause","impact":"high"}]}`), &out))
	require.Len(t, out.Actions, 1)
	assert.Equal(t, "pause", out.Actions[0].Type)

	err := Validate("sem", schema, json.RawMessage(`{"actions":[{"type":"pause","impact":"huge"}]}`), nil)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.NotEmpty(t, ve.Issues)
	assert.Equal(t, "actions.0.impact", ve.Issues[0].Field)
	assert.False(t, ve.OnlyEmpty("actions"))

	err = Validate("seo", schema, json.RawMessage(`{"actions":[]}`), nil)
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.OnlyEmpty("actions"))
	assert.Contains(t, ve.Error(), "seo response failed validation")
}

func TestHTTPGenerator(t *testing.T) {
	var got agentQueryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agent/query", r.URL.Path)
		assert.Equal(t, "sem", r.Header.Get("X-Agent-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(agentQueryResponse{Success: true, Response: "ok", TokensUsed: 42, ModelUsed: "m1"})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL+"/", 5*time.Second, nil)
	resp, err := g.Generate(context.Background(), Request{AgentID: "sem", System: "sys", Prompt: "p", MaxTokens: 100, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Equal(t, "p", got.Query)
	assert.Equal(t, "sys", got.SessionContext["system_prompt"])
	assert.Equal(t, "json", got.Context["response_format"])
}

func TestHTTPGeneratorFailures(t *testing.T) {
	status := http.StatusBadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("bad prompt"))
			return
		}
		_ = json.NewEncoder(w).Encode(agentQueryResponse{Success: false, Error: "quota"})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, 5*time.Second, nil)
	_, err := g.Generate(context.Background(), Request{AgentID: "seo", Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelCall))
	assert.Contains(t, err.Error(), "HTTP 400")

	status = http.StatusOK
	_, err = g.Generate(context.Background(), Request{AgentID: "seo", Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelCall))
	assert.Contains(t, err.Error(), "quota")
}

func TestScripted(t *testing.T) {
	s := NewScripted(map[string]string{"sem": `{"actions":[]}`})
	resp, err := s.Generate(context.Background(), Request{AgentID: "sem", Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"actions":[]}`, resp.Text)

	_, err = s.Generate(context.Background(), Request{AgentID: "director"})
	assert.True(t, errors.Is(err, ErrModelCall))

	s.Fail("sem", errors.New("boom"))
	_, err = s.Generate(context.Background(), Request{AgentID: "sem"})
	assert.True(t, errors.Is(err, ErrModelCall))
	assert.Len(t, s.Requests(), 3)
}
