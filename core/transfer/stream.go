package transfer

import (
	"time"

	"github.com/pixfid/bootforge/usb"
)

// Reader is a buffered stream over a bulk IN endpoint. Reads drain the
// internal buffer before touching the device.
type Reader struct {
	handle   usb.DeviceHandle
	endpoint uint8
	timeout  time.Duration
	buf      []byte
	pos      int
	n        int
}

func NewReader(handle usb.DeviceHandle, endpoint uint8, bufferSize int) *Reader {
	return &Reader{
		handle:   handle,
		endpoint: usb.EndpointIn(endpoint),
		timeout:  DefaultTimeout,
		buf:      make([]byte, bufferSize),
	}
}

func (r *Reader) WithTimeout(timeout time.Duration) *Reader {
	r.timeout = timeout
	return r
}

// Read fills p from the buffer, issuing device reads as needed. A zero-byte
// device read ends the fill early.
func (r *Reader) Read(p []byte) (int, error) {
	written := 0

	for written < len(p) && r.pos < r.n {
		p[written] = r.buf[r.pos]
		written++
		r.pos++
	}

	for written < len(p) {
		n, err := r.handle.BulkRead(r.endpoint, r.buf, r.timeout)
		if err != nil {
			return written, err
		}
		r.n = n
		r.pos = 0
		if n == 0 {
			break
		}
		for written < len(p) && r.pos < r.n {
			p[written] = r.buf[r.pos]
			written++
			r.pos++
		}
	}
	return written, nil
}

// ReadLine consumes bytes up to a newline, stripping a trailing \r.
func (r *Reader) ReadLine() (string, error) {
	var line []byte
	b := make([]byte, 1)

	for {
		n, err := r.Read(b)
		if err != nil {
			return "", err
		}
		if n == 0 {
			break
		}
		if b[0] == '\n' {
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			break
		}
		line = append(line, b[0])
	}
	return string(line), nil
}

// Writer is a buffered stream over a bulk OUT endpoint. Writes accumulate
// until the buffer reaches capacity, then flush to the device. Close
// flushes, so no buffered bytes are lost on normal scope exit.
type Writer struct {
	handle   usb.DeviceHandle
	endpoint uint8
	timeout  time.Duration
	buf      []byte
	capacity int
}

func NewWriter(handle usb.DeviceHandle, endpoint uint8, bufferSize int) *Writer {
	return &Writer{
		handle:   handle,
		endpoint: usb.EndpointOut(endpoint),
		timeout:  DefaultTimeout,
		buf:      make([]byte, 0, bufferSize),
		capacity: bufferSize,
	}
}

func (w *Writer) WithTimeout(timeout time.Duration) *Writer {
	w.timeout = timeout
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	for i, b := range p {
		w.buf = append(w.buf, b)
		if len(w.buf) >= w.capacity {
			if err := w.Flush(); err != nil {
				return i + 1, err
			}
		}
	}
	return len(p), nil
}

func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	if _, err := w.handle.BulkWrite(w.endpoint, w.buf, w.timeout); err != nil {
		return err
	}
	w.buf = w.buf[:0]
	return nil
}

// WriteLine writes s followed by a newline and flushes.
func (w *Writer) WriteLine(s string) error {
	if _, err := w.Write([]byte(s)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{'\n'}); err != nil {
		return err
	}
	return w.Flush()
}

func (w *Writer) Close() error {
	return w.Flush()
}
