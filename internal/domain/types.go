package domain

// InvocationStatus tracks each pipeline stage for a single extraction run.
type InvocationStatus string

const (
	InvocationStatusIdle      InvocationStatus = "idle"
	InvocationStatusChecking  InvocationStatus = "checking"
	InvocationStatusReading   InvocationStatus = "reading"
	InvocationStatusWriting   InvocationStatus = "writing"
	InvocationStatusRecognize InvocationStatus = "recognizing"
	InvocationStatusCopying   InvocationStatus = "copying"
	InvocationStatusSucceeded InvocationStatus = "succeeded"
	InvocationStatusFailed    InvocationStatus = "failed"
	InvocationStatusCancelled InvocationStatus = "cancelled"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	OCRCommand          string   `json:"ocrCommand"`
	Languages           []string `json:"languages"`
	OCRTimeoutSeconds   int      `json:"ocrTimeoutSeconds"`
	NotificationDelayMS int      `json:"notificationDelayMs"`
	TempDir             string   `json:"tempDir,omitempty"`
	LogLevel            string   `json:"logLevel"`
}

// Invocation stores the identity and lifecycle status of one click-triggered run.
type Invocation struct {
	ID     string           `json:"id"`
	Status InvocationStatus `json:"status"`
}
