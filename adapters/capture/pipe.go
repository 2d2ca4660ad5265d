package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/relaypoint/console/domain/repositories"
)

const defaultChunkSize = 4096

// ErrBusy is returned when a second capture is attempted while one holds
// the device.
var ErrBusy = errors.New("audio device busy")

// PipeCapture reads raw audio from a named pipe or file fed by the system's
// capture tool. The pipe path stands in for the microphone device; the port
// keeps the rest of the client independent of how audio enters the process.
type PipeCapture struct {
	path      string
	chunkSize int
	logger    *zap.Logger

	mu     sync.Mutex
	file   *os.File
	active bool
}

// NewPipeCapture creates a capture source reading from path.
func NewPipeCapture(path string, logger *zap.Logger) *PipeCapture {
	return &PipeCapture{
		path:      path,
		chunkSize: defaultChunkSize,
		logger:    logger,
	}
}

// Acquire opens the device exclusively and begins delivering chunks. The
// returned channel closes when Release is called or the source drains.
func (p *PipeCapture) Acquire(ctx context.Context, config repositories.AudioConfig) (<-chan []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return nil, ErrBusy
	}

	file, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio source: %w", err)
	}

	p.file = file
	p.active = true

	chunks := make(chan []byte, 32)
	go p.readLoop(file, chunks)

	p.logger.Info("Audio capture acquired",
		zap.String("path", p.path),
		zap.Int("sampleRate", config.SampleRate))

	return chunks, nil
}

// Release closes the device. The read loop observes the closed file and
// closes the chunk channel, ending any downstream recognizer.
func (p *PipeCapture) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return nil
	}
	p.active = false

	err := p.file.Close()
	p.file = nil
	return err
}

func (p *PipeCapture) readLoop(file *os.File, chunks chan<- []byte) {
	defer close(chunks)

	buf := make([]byte, p.chunkSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			chunks <- chunk
		}
		if err != nil {
			return
		}
	}
}
