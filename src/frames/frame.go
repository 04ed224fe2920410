package frames

import (
	"fmt"
	"sync/atomic"
	"time"
)

var frameCounter uint64

// Frame is the base interface for everything that moves through the
// transceiver's sink and source ports.
type Frame interface {
	ID() uint64
	Name() string
	CreatedAt() time.Time
	Metadata() map[string]interface{}
	SetMetadata(key string, value interface{})
	String() string
}

// BaseFrame provides the bookkeeping shared by every frame type: a
// monotonically increasing id (useful for correlating log lines across
// the websocket worker and the pacer) and a small metadata bag.
type BaseFrame struct {
	id        uint64
	name      string
	createdAt time.Time
	metadata  map[string]interface{}
}

func NewBaseFrame(name string) *BaseFrame {
	return &BaseFrame{
		id:        atomic.AddUint64(&frameCounter, 1),
		name:      name,
		createdAt: time.Now(),
		metadata:  make(map[string]interface{}),
	}
}

func (f *BaseFrame) ID() uint64 {
	return f.id
}

func (f *BaseFrame) Name() string {
	return f.name
}

func (f *BaseFrame) CreatedAt() time.Time {
	return f.createdAt
}

func (f *BaseFrame) Metadata() map[string]interface{} {
	return f.metadata
}

func (f *BaseFrame) SetMetadata(key string, value interface{}) {
	f.metadata[key] = value
}

func (f *BaseFrame) String() string {
	return fmt.Sprintf("%s[id=%d]", f.name, f.id)
}
