package debugger

type TaskStatus int

const (
	TaskStatus_Suspended TaskStatus = iota
	TaskStatus_Running
	TaskStatus_Exited
)

type ResumeMode int

const (
	ResumeMode_Continue ResumeMode = iota
	ResumeMode_Step
)

func (s TaskStatus) Error() string {
	switch s {
	case TaskStatus_Suspended:
		return "suspended"
	case TaskStatus_Running:
		return "running"
	case TaskStatus_Exited:
		return "exited"
	}
	return "unknown"
}

func (m ResumeMode) String() string {
	switch m {
	case ResumeMode_Continue:
		return "continue"
	case ResumeMode_Step:
		return "step"
	}
	return "unknown"
}
