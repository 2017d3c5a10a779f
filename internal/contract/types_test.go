package contract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePolicy_Accepts(t *testing.T) {
	p, err := ValidatePolicy(DecisionRequest{Key: "u:1", Limit: 10, Window: 60, Cost: 1})
	require.Nil(t, err)
	assert.Equal(t, "u:1", p.Fingerprint)
	assert.Equal(t, int64(10), p.Limit)
}

func TestValidatePolicy_RejectsCostGreaterThanLimit(t *testing.T) {
	_, err := ValidatePolicy(DecisionRequest{Key: "u:1", Limit: 10, Window: 60, Cost: 11})
	require.NotNil(t, err)
	assert.Equal(t, InvalidRequest, err.Kind)
}

func TestValidatePolicy_RejectsZeroLimit(t *testing.T) {
	_, err := ValidatePolicy(DecisionRequest{Key: "u:1", Limit: 0, Window: 60, Cost: 1})
	require.NotNil(t, err)
	assert.Equal(t, InvalidRequest, err.Kind)
}

func TestValidatePolicy_RejectsZeroWindow(t *testing.T) {
	_, err := ValidatePolicy(DecisionRequest{Key: "u:1", Limit: 10, Window: 0, Cost: 1})
	require.NotNil(t, err)
}

func TestValidatePolicy_RejectsZeroCost(t *testing.T) {
	_, err := ValidatePolicy(DecisionRequest{Key: "u:1", Limit: 10, Window: 60, Cost: 0})
	require.NotNil(t, err)
}

func TestValidatePolicy_RejectsEmptyKey(t *testing.T) {
	_, err := ValidatePolicy(DecisionRequest{Key: "", Limit: 10, Window: 60, Cost: 1})
	require.NotNil(t, err)
}

func TestValidatePolicy_RejectsOversizeKey(t *testing.T) {
	_, err := ValidatePolicy(DecisionRequest{Key: strings.Repeat("a", 257), Limit: 10, Window: 60, Cost: 1})
	require.NotNil(t, err)
}

func TestValidatePolicy_AcceptsCostEqualsLimit(t *testing.T) {
	_, err := ValidatePolicy(DecisionRequest{Key: "u:1", Limit: 5, Window: 60, Cost: 5})
	require.Nil(t, err)
}

func TestValidateSubjectID_RejectsEmpty(t *testing.T) {
	err := ValidateSubjectID("")
	require.NotNil(t, err)
	assert.Equal(t, InvalidRequest, err.Kind)
}

func TestValidateSubjectID_Accepts(t *testing.T) {
	err := ValidateSubjectID("u:3")
	assert.Nil(t, err)
}

func TestKind_StatusCode(t *testing.T) {
	assert.Equal(t, 400, InvalidRequest.StatusCode())
	assert.Equal(t, 401, Unauthorized.StatusCode())
	assert.Equal(t, 503, KvUnavailable.StatusCode())
	assert.Equal(t, 503, KvTimeout.StatusCode())
	assert.Equal(t, 500, EngineInternal.StatusCode())
}
