package transfer

import "time"

// mockHandle scripts transfer behavior through function fields so each test
// wires only what it uses.
type mockHandle struct {
	bulkRead   func(endpoint uint8, buf []byte, timeout time.Duration) (int, error)
	bulkWrite  func(endpoint uint8, buf []byte, timeout time.Duration) (int, error)
	ctrlRead   func(requestType, request uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error)
	ctrlWrite  func(requestType, request uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error)
	intrRead   func(endpoint uint8, buf []byte, timeout time.Duration) (int, error)
	intrWrite  func(endpoint uint8, buf []byte, timeout time.Duration) (int, error)
}

func (m *mockHandle) BulkRead(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	return m.bulkRead(endpoint, buf, timeout)
}

func (m *mockHandle) BulkWrite(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	return m.bulkWrite(endpoint, buf, timeout)
}

func (m *mockHandle) ControlRead(requestType, request uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error) {
	return m.ctrlRead(requestType, request, value, index, buf, timeout)
}

func (m *mockHandle) ControlWrite(requestType, request uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error) {
	return m.ctrlWrite(requestType, request, value, index, buf, timeout)
}

func (m *mockHandle) InterruptRead(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	return m.intrRead(endpoint, buf, timeout)
}

func (m *mockHandle) InterruptWrite(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	return m.intrWrite(endpoint, buf, timeout)
}
