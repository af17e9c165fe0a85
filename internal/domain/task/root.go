package task

const TypeRoot = "RootTask"

// RootTask fetches the API root listing the main categories.
type RootTask struct{}

func (t *RootTask) TaskType() string {
	return TypeRoot
}

func (t *RootTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}

func (t *RootTask) Path() string {
	return "/"
}
