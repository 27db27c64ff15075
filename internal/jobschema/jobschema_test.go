package jobschema_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inacomp/submission-judge/internal/jobschema"
	"github.com/inacomp/submission-judge/internal/types"
)

const validJob = `{
	"userId": "u1",
	"teamId": "t1",
	"contestId": "c1",
	"problemId": "p1",
	"functionName": "add",
	"languageId": "15",
	"code": "function add(a, b) { return a + b }",
	"testCases": [
		{"input": "1, 2", "output": "3"},
		{"input": "2, 2", "output": "4"}
	]
}`

func TestDecode(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		job, err := jobschema.Decode([]byte(validJob))
		require.NoError(t, err, "failed to decode valid job")

		assert.Equal(t, "u1", job.UserID)
		assert.Equal(t, types.LanguageID("15"), job.LanguageID)
		assert.Equal(t, "u1:p1", job.RoomID())
		assert.Equal(t, []types.TestCase{
			{Input: "1, 2", Output: "3"},
			{Input: "2, 2", Output: "4"},
		}, job.TestCases)
	})

	t.Run("NumericLanguageID", func(t *testing.T) {
		job, err := jobschema.Decode([]byte(`{
			"userId": "u1", "teamId": "t1", "contestId": "c1", "problemId": "p1",
			"functionName": "f", "languageId": 19, "code": "def f(): pass",
			"testCases": [{"input": "", "output": "None"}]
		}`))
		require.NoError(t, err, "failed to decode job with numeric language id")

		id, err := job.LanguageID.Int()
		require.NoError(t, err)
		assert.Equal(t, 19, id)
	})

	tests := []struct {
		name string
		data string
	}{
		{name: "NotJSON", data: `{"userId": `},
		{name: "NotObject", data: `[]`},
		{name: "MissingField", data: `{
			"userId": "u1", "teamId": "t1", "contestId": "c1", "problemId": "p1",
			"languageId": "15", "code": "x",
			"testCases": [{"input": "", "output": ""}]
		}`},
		{name: "NoTestCases", data: `{
			"userId": "u1", "teamId": "t1", "contestId": "c1", "problemId": "p1",
			"functionName": "f", "languageId": "15", "code": "x", "testCases": []
		}`},
		{name: "LanguageIDNotNumeric", data: `{
			"userId": "u1", "teamId": "t1", "contestId": "c1", "problemId": "p1",
			"functionName": "f", "languageId": "js", "code": "x",
			"testCases": [{"input": "", "output": ""}]
		}`},
		{name: "EmptyUserID", data: `{
			"userId": "", "teamId": "t1", "contestId": "c1", "problemId": "p1",
			"functionName": "f", "languageId": "15", "code": "x",
			"testCases": [{"input": "", "output": ""}]
		}`},
		{name: "FunctionNameNotIdentifier", data: `{
			"userId": "u1", "teamId": "t1", "contestId": "c1", "problemId": "p1",
			"functionName": "f(); process.exit", "languageId": "15", "code": "x",
			"testCases": [{"input": "", "output": ""}]
		}`},
		{name: "TestCaseWithoutOutput", data: `{
			"userId": "u1", "teamId": "t1", "contestId": "c1", "problemId": "p1",
			"functionName": "f", "languageId": "15", "code": "x",
			"testCases": [{"input": "1"}]
		}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := jobschema.Decode([]byte(tt.data))
			require.Error(t, err, "expected decode to fail")
			assert.Nil(t, job)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		require.NoError(t, jobschema.Validate([]byte(validJob)))
	})

	t.Run("NumericLanguageID", func(t *testing.T) {
		data := strings.Replace(validJob, `"languageId": "15"`, `"languageId": 15`, 1)
		require.NoError(t, jobschema.Validate([]byte(data)), "integer language ids should pass the schema")
	})

	t.Run("SchemaViolation", func(t *testing.T) {
		err := jobschema.Validate([]byte(`{"userId": 1}`))

		var validationErr *jobschema.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.NotEmpty(t, validationErr.Fields, "expected field errors")
		assert.Contains(t, validationErr.Error(), "job failed schema validation")
	})

	t.Run("TrailingData", func(t *testing.T) {
		err := jobschema.Validate([]byte(validJob + ` {}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job is not valid json")
	})
}

func TestValidateJob(t *testing.T) {
	job := &types.SubmissionJob{
		UserID:       "u1",
		TeamID:       "t1",
		ContestID:    "c1",
		ProblemID:    "p1",
		FunctionName: "f",
		LanguageID:   "15",
		Code:         "x",
	}
	require.Error(t, jobschema.ValidateJob(job), "job without test cases should fail")

	job.TestCases = []types.TestCase{{Input: "1", Output: "1"}}
	require.NoError(t, jobschema.ValidateJob(job))
}
