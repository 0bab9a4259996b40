package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"results":`), genai.Text(`{"issues":[]}}`)}}},
			{Content: nil},
		},
	}
	assert.Equal(t, `{"results":{"issues":[]}}`, responseText(resp))
	assert.Equal(t, "", responseText(nil))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
}

func TestIsQuotaError(t *testing.T) {
	assert.True(t, isQuotaError(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 429})))
	assert.False(t, isQuotaError(&googleapi.Error{Code: 500}))
	assert.True(t, isQuotaError(errors.New("rpc error: code = RESOURCE_EXHAUSTED desc = quota")))
	assert.False(t, isQuotaError(errors.New("connection refused")))
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "", 0, 0)
	assert.Error(t, err)
}
