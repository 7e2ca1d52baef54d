package documents

import "context"

// UploadEventKind labels a progress event from UploadBatch.
type UploadEventKind string

const (
	UploadStarted   UploadEventKind = "started"
	UploadCompleted UploadEventKind = "completed"
	UploadFailed    UploadEventKind = "failed"
)

// UploadEvent reports progress for the file at Index.
type UploadEvent struct {
	Index    int
	FileName string
	Kind     UploadEventKind
	Document *Document
	Err      error
}

// UploadBatch uploads inputs one after another. For every input the channel
// carries a started event followed by completed or failed; one failure does
// not stop the rest. The channel is closed after the last input.
func (s *Service) UploadBatch(ctx context.Context, ownerID string, inputs []UploadInput) <-chan UploadEvent {
	events := make(chan UploadEvent, 2*len(inputs))
	go func() {
		defer close(events)
		for i, in := range inputs {
			events <- UploadEvent{Index: i, FileName: in.FileName, Kind: UploadStarted}

			if err := ctx.Err(); err != nil {
				events <- UploadEvent{Index: i, FileName: in.FileName, Kind: UploadFailed, Err: err}
				continue
			}
			doc, err := s.Upload(ctx, ownerID, in)
			if err != nil {
				events <- UploadEvent{Index: i, FileName: in.FileName, Kind: UploadFailed, Err: err}
				continue
			}
			events <- UploadEvent{Index: i, FileName: in.FileName, Kind: UploadCompleted, Document: &doc}
		}
	}()
	return events
}
