package types

// JudgeStatus is the judge's verdict collapsed into the states the evaluator branches on.
type JudgeStatus string

const (
	JudgeStatusQueued       JudgeStatus = "queued"
	JudgeStatusProcessing   JudgeStatus = "processing"
	JudgeStatusAccepted     JudgeStatus = "accepted"
	JudgeStatusWrongAnswer  JudgeStatus = "wrong_answer"
	JudgeStatusRuntimeError JudgeStatus = "runtime_error"
	JudgeStatusCompileError JudgeStatus = "compile_error"
	// Time limit, internal judge errors and anything unknown
	JudgeStatusOther JudgeStatus = "other"
)

// Queued and processing keep the poll loop going; everything else is terminal.
func (s JudgeStatus) Terminal() bool {
	return s != JudgeStatusQueued && s != JudgeStatusProcessing
}

type ExecutionOutcome struct {
	Status        JudgeStatus `json:"status"`
	StatusID      int         `json:"status_id"`
	Description   string      `json:"description"`
	Stdout        string      `json:"stdout"`
	Stderr        string      `json:"stderr"`
	CompileOutput string      `json:"compile_output"`
	// Seconds
	Time float64 `json:"time"`
	// Kilobytes
	Memory int `json:"memory"`
}

// FirstOutput returns the first non-empty of stdout, stderr and compile output.
func (o *ExecutionOutcome) FirstOutput() string {
	switch {
	case o.Stdout != "":
		return o.Stdout
	case o.Stderr != "":
		return o.Stderr
	default:
		return o.CompileOutput
	}
}

type ResultStatus string

const (
	ResultStatusSuccess ResultStatus = "success"
	ResultStatusFailed  ResultStatus = "failed"
)

type AggregateOutcome struct {
	Status           ResultStatus `json:"status"`
	AvgExecutionTime float64      `json:"avg_execution_time"`
	AvgMemory        int          `json:"avg_memory"`
	TestsPassed      int          `json:"tests_passed"`
	TestsTotal       int          `json:"tests_total"`
}
