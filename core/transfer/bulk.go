// Package transfer wraps the raw transfer capabilities of a device handle
// with timeouts, retry, chunking, and short-transfer handling. Every higher
// protocol in this repository is built on these primitives.
package transfer

import (
	"time"

	"github.com/pixfid/bootforge/usb"
)

const (
	DefaultTimeout = 1 * time.Second
	DefaultRetries = 3

	retryBackoff = 10 * time.Millisecond
)

// Bulk performs bulk transfers with retry and optional chunking. Retries
// apply only to transient transport failures; a linear backoff of
// 10ms × attempt precedes each retry.
type Bulk struct {
	handle    usb.DeviceHandle
	timeout   time.Duration
	retries   int
	chunkSize int
}

func NewBulk(handle usb.DeviceHandle) *Bulk {
	return &Bulk{
		handle:  handle,
		timeout: DefaultTimeout,
		retries: DefaultRetries,
	}
}

func (b *Bulk) WithTimeout(timeout time.Duration) *Bulk {
	b.timeout = timeout
	return b
}

func (b *Bulk) WithRetries(retries int) *Bulk {
	b.retries = retries
	return b
}

// WithChunkSize splits writes into fixed-size chunks and bounds the reads
// issued by ReadExact.
func (b *Bulk) WithChunkSize(size int) *Bulk {
	b.chunkSize = size
	return b
}

// Read reads from a bulk IN endpoint. The endpoint address is normalized to
// the IN direction before the call.
func (b *Bulk) Read(endpoint uint8, buf []byte) (int, error) {
	for attempt := 0; ; attempt++ {
		n, err := b.handle.BulkRead(usb.EndpointIn(endpoint), buf, b.timeout)
		if err == nil {
			return n, nil
		}
		if attempt >= b.retries || !usb.IsRetryable(err) {
			return 0, err
		}
		time.Sleep(retryBackoff * time.Duration(attempt+1))
	}
}

// Write writes to a bulk OUT endpoint. With a chunk size configured the
// buffer is written in sequential chunks; a short chunk write stops the
// sequence and the total written so far is returned, since it signals the
// device cannot currently accept more.
func (b *Bulk) Write(endpoint uint8, buf []byte) (int, error) {
	if b.chunkSize <= 0 {
		return b.writeSingle(endpoint, buf)
	}

	total := 0
	for off := 0; off < len(buf); off += b.chunkSize {
		end := off + b.chunkSize
		if end > len(buf) {
			end = len(buf)
		}
		chunk := buf[off:end]

		n, err := b.writeSingle(endpoint, chunk)
		if err != nil {
			return total, err
		}
		total += n
		if n < len(chunk) {
			break
		}
	}
	return total, nil
}

func (b *Bulk) writeSingle(endpoint uint8, buf []byte) (int, error) {
	for attempt := 0; ; attempt++ {
		n, err := b.handle.BulkWrite(usb.EndpointOut(endpoint), buf, b.timeout)
		if err == nil {
			return n, nil
		}
		if attempt >= b.retries || !usb.IsRetryable(err) {
			return 0, err
		}
		time.Sleep(retryBackoff * time.Duration(attempt+1))
	}
}

// ReadExact reads until buf is completely filled. A zero-byte read before
// the buffer is full is an unexpected end of stream.
func (b *Bulk) ReadExact(endpoint uint8, buf []byte) error {
	chunk := b.chunkSize
	if chunk <= 0 {
		chunk = len(buf)
	}

	total := 0
	for total < len(buf) {
		toRead := len(buf) - total
		if toRead > chunk {
			toRead = chunk
		}

		n, err := b.Read(endpoint, buf[total:total+toRead])
		if err != nil {
			return err
		}
		if n == 0 {
			return usb.New(usb.KindIO, "unexpected end of stream")
		}
		total += n
	}
	return nil
}
