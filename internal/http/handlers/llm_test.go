package handlers

import "testing"

func tempPtr(v float64) *float64 { return &v }

func TestRagQueryRequestValidateBounds(t *testing.T) {
	cases := []struct {
		name string
		req  ragQueryRequest
		ok   bool
	}{
		{"defaults pass", ragQueryRequest{Query: "q"}, true},
		{"in range", ragQueryRequest{Query: "q", NContextChunks: 5, Temperature: tempPtr(0.7), MaxTokens: 1000}, true},
		{"chunks at bounds", ragQueryRequest{Query: "q", NContextChunks: 20}, true},
		{"chunks too many", ragQueryRequest{Query: "q", NContextChunks: 21}, false},
		{"chunks negative", ragQueryRequest{Query: "q", NContextChunks: -1}, false},
		{"temperature zero", ragQueryRequest{Query: "q", Temperature: tempPtr(0)}, true},
		{"temperature max", ragQueryRequest{Query: "q", Temperature: tempPtr(1)}, true},
		{"temperature too hot", ragQueryRequest{Query: "q", Temperature: tempPtr(1.1)}, false},
		{"temperature negative", ragQueryRequest{Query: "q", Temperature: tempPtr(-0.1)}, false},
		{"tokens at min", ragQueryRequest{Query: "q", MaxTokens: 100}, true},
		{"tokens too few", ragQueryRequest{Query: "q", MaxTokens: 99}, false},
		{"tokens too many", ragQueryRequest{Query: "q", MaxTokens: 4001}, false},
	}
	for _, c := range cases {
		err := c.req.validate()
		if c.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", c.name, err)
		}
		if !c.ok && err == nil {
			t.Fatalf("%s: bounds violation accepted", c.name)
		}
	}
}

func TestRagQueryRequestOptionsKeepsExplicitZeroTemperature(t *testing.T) {
	req := ragQueryRequest{Query: "q", Temperature: tempPtr(0)}
	opts := req.options()
	if opts.Temperature == nil || *opts.Temperature != 0 {
		t.Fatalf("explicit zero temperature: got=%v", opts.Temperature)
	}
}
