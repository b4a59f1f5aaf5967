package adjudicate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheRequest(email string) Request {
	return Request{
		Profile: model.NormalizedRecord{FullName: model.NewField("ann lee"), Email: model.NewField(email)},
		Contact: model.NormalizedRecord{FullName: model.NewField("ann lee")},
	}
}

func TestCachedService_HitsSkipTheModel(t *testing.T) {
	mockLLM := &MockLLMClient{Response: `{"confidence": "HIGH", "reasoning": "same"}`}
	svc := NewCachedService(NewLLMJudge(mockLLM, ""), time.Minute)

	first, err := svc.Judge(context.Background(), cacheRequest("ann@lee.io"))
	require.NoError(t, err)
	second, err := svc.Judge(context.Background(), cacheRequest("ann@lee.io"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, model.AILabelHigh, second.Label)
	assert.Equal(t, 1, mockLLM.Calls())
	assert.Equal(t, 1, svc.Len())

	_, err = svc.Judge(context.Background(), cacheRequest("ann@other.io"))
	require.NoError(t, err)
	assert.Equal(t, 2, mockLLM.Calls())
}

func TestCachedService_ErrorsAreNotCached(t *testing.T) {
	mockLLM := &MockLLMClient{
		Errs:     []error{errors.New("boom")},
		Response: `{"confidence": "LOW", "reasoning": "maybe"}`,
	}
	svc := NewCachedService(NewLLMJudge(mockLLM, ""), time.Minute)

	_, err := svc.Judge(context.Background(), cacheRequest("ann@lee.io"))
	assert.Error(t, err)
	assert.Equal(t, 0, svc.Len())

	j, err := svc.Judge(context.Background(), cacheRequest("ann@lee.io"))
	require.NoError(t, err)
	assert.Equal(t, model.AILabelLow, j.Label)
}

func TestCachedService_Expiry(t *testing.T) {
	mockLLM := &MockLLMClient{Response: `{"confidence": "HIGH", "reasoning": "same"}`}
	svc := NewCachedService(NewLLMJudge(mockLLM, ""), 10*time.Millisecond)

	_, err := svc.Judge(context.Background(), cacheRequest("ann@lee.io"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = svc.Judge(context.Background(), cacheRequest("ann@lee.io"))
	require.NoError(t, err)

	assert.Equal(t, 2, mockLLM.Calls())
}
