package actor

// testMsg is a minimal Message implementation shared across this package's
// test files.
type testMsg struct {
	BaseMessage
	data string
}

// MessageType implements Message.
func (m *testMsg) MessageType() string { return "testMsg" }

// newTestMsg constructs a testMsg carrying the given payload string.
func newTestMsg(data string) *testMsg {
	return &testMsg{data: data}
}
