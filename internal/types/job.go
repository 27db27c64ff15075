package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// LanguageID is the judge's numeric language identifier. Job producers send it either as a
// JSON string ("19") or as a JSON number (19).
type LanguageID string

func (l *LanguageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = LanguageID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("languageId must be a string or a number: %w", err)
	}
	*l = LanguageID(n.String())
	return nil
}

// Int returns the numeric form stored with accepted submissions.
func (l LanguageID) Int() (int, error) {
	return strconv.Atoi(string(l))
}

func (l LanguageID) String() string {
	return string(l)
}

type (
	TestCase struct {
		// Argument list as source text, e.g. `[1, 2, 3], "abc"`
		Input string `json:"input"  yaml:"input"`
		// Expected result in canonical form
		Output string `json:"output" yaml:"output"`
	}

	SubmissionJob struct {
		UserID       string     `json:"userId"       yaml:"userId"       validate:"required"`
		TeamID       string     `json:"teamId"       yaml:"teamId"       validate:"required"`
		ContestID    string     `json:"contestId"    yaml:"contestId"    validate:"required"`
		ProblemID    string     `json:"problemId"    yaml:"problemId"    validate:"required"`
		FunctionName string     `json:"functionName" yaml:"functionName" validate:"required,identifier"`
		LanguageID   LanguageID `json:"languageId"   yaml:"languageId"   validate:"required,numeric"`
		Code         string     `json:"code"         yaml:"code"         validate:"required"`
		TestCases    []TestCase `json:"testCases"    yaml:"testCases"    validate:"required,min=1,dive"`
	}
)

// RoomID is the pub/sub room that carries progress for one user working on one problem.
func RoomID(userID, problemID string) string {
	return userID + ":" + problemID
}

func (j *SubmissionJob) RoomID() string {
	return RoomID(j.UserID, j.ProblemID)
}
