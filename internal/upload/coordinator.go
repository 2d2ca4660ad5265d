package upload

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relaypoint/console/domain/entities"
	"github.com/relaypoint/console/domain/repositories"
)

const subscriberBuffer = 64

// File is a locally selected file pending upload.
type File struct {
	Name     string
	MimeType string
	Content  []byte
}

// Coordinator turns a batch of locally selected files into independently
// tracked remote attachments. Failure of one file never affects its siblings.
type Coordinator struct {
	uploader repositories.Uploader
	previews repositories.PreviewDeriver
	logger   *zap.Logger
	timeout  time.Duration

	mu      sync.Mutex
	batch   map[string]*entities.Attachment
	order   []string
	subs    map[int]chan entities.Attachment
	nextSub int
}

// NewCoordinator creates an upload coordinator. previews may be nil when no
// local preview derivation is available.
func NewCoordinator(uploader repositories.Uploader, previews repositories.PreviewDeriver, timeout time.Duration, logger *zap.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Coordinator{
		uploader: uploader,
		previews: previews,
		logger:   logger,
		timeout:  timeout,
		batch:    make(map[string]*entities.Attachment),
		subs:     make(map[int]chan entities.Attachment),
	}
}

// Submit registers every file with uploading status immediately, so
// placeholders can render before any network activity, then uploads the
// batch in parallel. Returns the registered attachment ids in file order.
func (c *Coordinator) Submit(ctx context.Context, files []File) []string {
	ids := make([]string, 0, len(files))

	c.mu.Lock()
	registered := make([]*entities.Attachment, 0, len(files))
	for _, f := range files {
		att := entities.NewAttachment(f.Name, f.MimeType, int64(len(f.Content)))
		c.batch[att.ID] = att
		c.order = append(c.order, att.ID)
		registered = append(registered, att)
		ids = append(ids, att.ID)
	}
	for _, att := range registered {
		c.publishLocked(*att)
	}
	c.mu.Unlock()

	for i, f := range files {
		go c.uploadOne(ctx, ids[i], f)

		if f.MimeType != "" && entities.CategoryForMime(f.MimeType) == entities.AttachmentCategoryImage {
			// Preview derivation is deliberately decoupled from the upload
			// round trip so rendering never waits on the network.
			go c.derivePreview(ctx, ids[i], f)
		}
	}

	return ids
}

// Remove drops a file from the pending batch. An in-flight upload is not
// cancelled, but its eventual result is discarded.
func (c *Coordinator) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.batch[id]; !ok {
		return
	}
	delete(c.batch, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Snapshot returns all attachments in the batch, in selection order.
func (c *Coordinator) Snapshot() []entities.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]entities.Attachment, 0, len(c.order))
	for _, id := range c.order {
		if att, ok := c.batch[id]; ok {
			out = append(out, *att)
		}
	}
	return out
}

// Uploaded returns only the attachments safe to reference in an outgoing
// message. Files still uploading or failed are excluded, never blocking the
// text portion of a message.
func (c *Coordinator) Uploaded() []entities.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]entities.Attachment, 0, len(c.order))
	for _, id := range c.order {
		if att, ok := c.batch[id]; ok && att.Status == entities.UploadStatusUploaded {
			out = append(out, *att)
		}
	}
	return out
}

// ClearBatch empties the pending batch, called by the composer once a
// payload has been constructed.
func (c *Coordinator) ClearBatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batch = make(map[string]*entities.Attachment)
	c.order = nil
}

// Subscribe registers a consumer of per-attachment status changes.
func (c *Coordinator) Subscribe() (<-chan entities.Attachment, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan entities.Attachment, subscriberBuffer)
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Coordinator) uploadOne(ctx context.Context, id string, f File) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.uploader.Upload(ctx, f.Name, f.MimeType, bytes.NewReader(f.Content))

	c.mu.Lock()
	defer c.mu.Unlock()

	att, ok := c.batch[id]
	if !ok {
		// Removed while in flight; discard the outcome.
		return
	}

	if err != nil {
		c.logger.Warn("Upload failed",
			zap.String("name", f.Name),
			zap.Error(err))
		att.MarkFailed(err.Error())
		c.publishLocked(*att)
		return
	}

	category := result.Category
	if category == "" {
		category = entities.CategoryForMime(f.MimeType)
	}
	att.MarkUploaded(result.URL, category, result.SizeBytes)
	c.publishLocked(*att)

	c.logger.Info("Upload completed",
		zap.String("name", f.Name),
		zap.String("url", result.URL),
		zap.String("category", string(category)))
}

func (c *Coordinator) derivePreview(ctx context.Context, id string, f File) {
	if c.previews == nil {
		return
	}

	handle, err := c.previews.Derive(ctx, f.Name, f.MimeType, f.Content)
	if err != nil {
		c.logger.Warn("Preview derivation failed", zap.String("name", f.Name), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if att, ok := c.batch[id]; ok {
		att.LocalPreview = handle
		c.publishLocked(*att)
	}
}

func (c *Coordinator) publishLocked(att entities.Attachment) {
	for _, sub := range c.subs {
		select {
		case sub <- att:
		default:
		}
	}
}
