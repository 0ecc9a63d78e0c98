package arrow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ErrNoRecords is returned when an IPC stream holds a schema but no record batch.
var ErrNoRecords = errors.New("no records in IPC data")

// IPCWriter writes survey tables to and from the Arrow IPC stream format.
type IPCWriter struct {
	allocator memory.Allocator
}

// NewIPCWriter creates a new IPCWriter with the default memory allocator.
func NewIPCWriter() *IPCWriter {
	return NewIPCWriterWithAllocator(memory.DefaultAllocator)
}

// NewIPCWriterWithAllocator creates an IPCWriter that decodes into mem.
func NewIPCWriterWithAllocator(mem memory.Allocator) *IPCWriter {
	return &IPCWriter{allocator: mem}
}

// Write streams record to w as a single-batch IPC stream.
func (w *IPCWriter) Write(dst io.Writer, record arrow.Record) error {
	writer := ipc.NewWriter(dst, ipc.WithSchema(record.Schema()), ipc.WithAllocator(w.allocator))
	defer writer.Close()

	if err := writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	return nil
}

// SerializeToIPC serializes an Arrow Record to IPC bytes.
func (w *IPCWriter) SerializeToIPC(record arrow.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf, record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Read reads the single record batch of an IPC stream. The caller must
// Release the returned record.
func (w *IPCWriter) Read(src io.Reader) (arrow.Record, error) {
	reader, err := ipc.NewReader(src, ipc.WithAllocator(w.allocator))
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()

	if !reader.Next() {
		if reader.Err() != nil {
			return nil, reader.Err()
		}
		return nil, ErrNoRecords
	}

	record := reader.Record()
	record.Retain() // the reader releases its reference on the next call

	if reader.Next() {
		record.Release()
		return nil, errors.New("expected a single record batch, found more")
	}
	if reader.Err() != nil {
		record.Release()
		return nil, reader.Err()
	}

	return record, nil
}

// DeserializeFromIPC deserializes IPC bytes to an Arrow Record.
func (w *IPCWriter) DeserializeFromIPC(data []byte) (arrow.Record, error) {
	return w.Read(bytes.NewReader(data))
}

// WriteToFile writes record to path, replacing any existing file.
func (w *IPCWriter) WriteToFile(path string, record arrow.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := w.Write(f, record); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFromFile reads a record written by WriteToFile.
func (w *IPCWriter) ReadFromFile(path string) (arrow.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return w.Read(f)
}
