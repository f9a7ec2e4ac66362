package worker

import (
	"time"

	"segment_server/core/port/out"
)

// Message is a batch segmentation job travelling through the pool.
type Message struct {
	Job        *out.SegmentationJob
	Stream     string
	Retries    int
	ReceivedAt time.Time
}

func (m *Message) JobID() string {
	if m == nil || m.Job == nil {
		return ""
	}
	return m.Job.JobID
}
