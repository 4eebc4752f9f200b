package flight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/23skdu/longbow-corpus/internal/dataset"
	"github.com/23skdu/longbow-corpus/internal/logger"
	"github.com/23skdu/longbow-corpus/internal/metrics"
)

// DefaultAddr is the Flight data port used when none is configured.
const DefaultAddr = "localhost:3000"

// batchRows bounds each record batch sent over the stream.
const batchRows = 32 * 1024

var ErrNotConnected = errors.New("client not connected, call Connect() first")

// Publisher sends a formatted split to a remote consumer.
type Publisher interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, path, outField string, records []dataset.FormattedRecord) (int64, error)
	Close() error
}

// Client publishes record batches to an Arrow Flight server with DoPut.
type Client struct {
	addr    string
	client  flight.Client
	timeout time.Duration
}

func NewClient(addr string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Client{addr: addr, timeout: 5 * time.Minute}
}

// Connect establishes connection to the Flight server.
func (c *Client) Connect(ctx context.Context) error {
	client, err := flight.NewClientWithMiddleware(c.addr, nil, nil, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create Flight client: %w", err)
	}
	c.client = client
	return nil
}

func (c *Client) Close() error {
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// Descriptor builds a path descriptor from a slash-separated path.
func Descriptor(path string) *flight.FlightDescriptor {
	return &flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: strings.Split(strings.Trim(path, "/"), "/"),
	}
}

// Publish streams records under path and returns the number of rows sent.
func (c *Client) Publish(ctx context.Context, path, outField string, records []dataset.FormattedRecord) (int64, error) {
	if c.client == nil {
		return 0, ErrNotConnected
	}
	if err := dataset.CheckOutputField(outField); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream, err := c.client.DoPut(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to open DoPut stream: %w", err)
	}

	mem := memory.DefaultAllocator
	w := flight.NewRecordWriter(stream, ipc.WithSchema(dataset.FormattedSchema(outField)), ipc.WithAllocator(mem))
	w.SetFlightDescriptor(Descriptor(path))

	var sent int64
	for start := 0; start < len(records); start += batchRows {
		end := min(start+batchRows, len(records))
		rec := dataset.ToArrow(mem, records[start:end], outField)
		err := w.Write(rec)
		rec.Release()
		if err != nil {
			w.Close()
			return sent, fmt.Errorf("failed to write record batch: %w", err)
		}
		sent += int64(end - start)
	}
	if err := w.Close(); err != nil {
		return sent, fmt.Errorf("failed to close writer: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return sent, fmt.Errorf("failed to close stream: %w", err)
	}
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return sent, fmt.Errorf("DoPut failed: %w", err)
		}
	}

	metrics.RecordFlightRows(sent)
	logger.Log.Info("Published split", "addr", c.addr, "path", path, "rows", sent)
	return sent, nil
}
