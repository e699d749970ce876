package workpool

// Task is a named unit of work dispatched through the Mux to the handler
// registered under its type.
type Task struct {
	taskid   string
	typeName string
	payload  []byte
}

func (t *Task) Id() string      { return t.taskid }
func (t *Task) Type() string    { return t.typeName }
func (t *Task) Payload() []byte { return t.payload }

func NewTask(typeName string, payload []byte) *Task {
	return &Task{
		typeName: typeName,
		payload:  payload,
	}
}

func (t *Task) WithTaskId(id string) *Task {
	t.taskid = id
	return t
}
