package task

import (
	"encoding/json"
	"fmt"
)

// Task is a pending request in the crawl. Its type selects the step that
// handles the response, its fields carry everything that step needs.
type Task interface {
	TaskType() string
	TaskValue() ([]byte, error)
	// Path is the API resource path relative to the base URL.
	Path() string
}

// DefaultTaskValue provides a common implementation for TaskValue
func DefaultTaskValue(task interface{}) ([]byte, error) {
	return json.Marshal(task)
}

func UnmarshalTask[T Task](task []byte) (T, error) {
	var t T
	err := json.Unmarshal(task, &t)
	return t, err
}

// Decode rebuilds a task from its type name and serialized value.
func Decode(taskType string, data []byte) (Task, error) {
	var (
		t   Task
		err error
	)

	switch taskType {
	case TypeRoot:
		t, err = UnmarshalTask[*RootTask](data)
	case TypeCategory:
		t, err = UnmarshalTask[*CategoryTask](data)
	case TypeCategoryPage:
		t, err = UnmarshalTask[*CategoryPageTask](data)
	case TypeBrand:
		t, err = UnmarshalTask[*BrandTask](data)
	case TypeProduct:
		t, err = UnmarshalTask[*ProductTask](data)
	case TypeComments:
		t, err = UnmarshalTask[*CommentsTask](data)
	default:
		return nil, fmt.Errorf("unknown task type: %s", taskType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", taskType, err)
	}
	return t, nil
}
