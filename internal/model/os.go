package model

// OSOperationRequest is the body of a POST /operation call
type OSOperationRequest struct {
	Operation string         `json:"operation"`
	Params    map[string]any `json:"params"`
}

// OSOperationResponse is the operation response envelope
type OSOperationResponse struct {
	Status       string `json:"status"` // "success" or "error"
	Result       any    `json:"result,omitempty"`
	StateChanged bool   `json:"state_changed,omitempty"`
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMsg     string `json:"error_msg,omitempty"`
}

// OK reports whether the kernel accepted the operation
func (r *OSOperationResponse) OK() bool {
	return r.Status == "success"
}

// LLMRequest is the body of a POST /llm call
type LLMRequest struct {
	LLM   string `json:"llm"`
	Input string `json:"input"`
	Mode  string `json:"mode"`
}

// SyscallRequest is the body of a POST /syscall call
type SyscallRequest struct {
	Syscall string         `json:"syscall"`
	PID     int            `json:"pid"`
	Args    map[string]any `json:"args"`
	Context map[string]any `json:"context"`
}

// KernelStatus is the kernel section of a status response
type KernelStatus struct {
	Kernel          string `json:"kernel"`
	Syscalls        int    `json:"syscalls"`
	MamaInvocations int    `json:"mama_invocations"`
	MamaState       string `json:"mama_state"`
	Processes       int    `json:"processes"`
	Modules         int    `json:"modules"`
	MemoryKeys      int    `json:"memory_keys"`
}

// SystemStatusResponse is returned by GET /status
type SystemStatusResponse struct {
	OS           string       `json:"os"`
	KernelStatus KernelStatus `json:"kernel_status"`
	BabyPID      int          `json:"baby_pid"`
	Note         string       `json:"note"`
}

// OSInfo is returned by GET /
type OSInfo struct {
	System       string            `json:"system"`
	Type         string            `json:"type"`
	Kernel       string            `json:"kernel"`
	Version      string            `json:"version"`
	Architecture map[string]string `json:"architecture"`
	API          map[string]string `json:"api"`
}
