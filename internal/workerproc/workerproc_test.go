package workerproc

import (
	"context"
	"errors"
	"testing"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/queue"
)

type stubProcessor struct {
	jobIDs []string
	err    error
}

func (s *stubProcessor) Claim(ctx context.Context, jobID, requestID string) error {
	s.jobIDs = append(s.jobIDs, jobID)
	return s.err
}

func TestParseMessage(t *testing.T) {
	body := `{"jobId":"job-1","projectId":"proj-1","requestId":"req-1","version":1}`
	msg, meta, err := ParseMessage(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.JobID != "job-1" || msg.ProjectID != "proj-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if meta.BodyLen != len(body) || meta.BodySHA == "" {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestParseMessageEmptyBody(t *testing.T) {
	_, _, err := ParseMessage("   ")
	var emptyErr ErrEmptyBody
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
}

func TestParseMessageDecodeFailure(t *testing.T) {
	_, meta, err := ParseMessage("{broken")
	var decodeErr ErrDecode
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if meta.BodyLen == 0 {
		t.Fatalf("meta must still describe the body")
	}
}

func TestParseMessageMissingJobID(t *testing.T) {
	_, _, err := ParseMessage(`{"projectId":"proj-1","requestId":"req-9"}`)
	var missingErr ErrMissingJobID
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected ErrMissingJobID, got %v", err)
	}
	if missingErr.RequestID != "req-9" {
		t.Fatalf("expected request id carried, got %q", missingErr.RequestID)
	}
}

func TestHandleMessageClaimsJob(t *testing.T) {
	processor := &stubProcessor{}
	body := `{"jobId":"job-1","requestId":"req-1"}`

	if err := HandleMessage(context.Background(), processor, body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(processor.jobIDs) != 1 || processor.jobIDs[0] != "job-1" {
		t.Fatalf("unexpected claims %v", processor.jobIDs)
	}
}

func TestHandleMessageReusesParsedMessage(t *testing.T) {
	processor := &stubProcessor{}
	ctx := WithParsedMessage(context.Background(), queue.Message{JobID: "job-2", RequestID: "req-2"})

	if err := HandleMessage(ctx, processor, ""); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(processor.jobIDs) != 1 || processor.jobIDs[0] != "job-2" {
		t.Fatalf("unexpected claims %v", processor.jobIDs)
	}
}

func TestHandleMessageWrapsClaimFailure(t *testing.T) {
	processor := &stubProcessor{err: errors.New("db gone")}
	body := `{"jobId":"job-3","requestId":"req-3"}`

	err := HandleMessage(context.Background(), processor, body)
	var claimErr ErrClaim
	if !errors.As(err, &claimErr) {
		t.Fatalf("expected ErrClaim, got %v", err)
	}
	if claimErr.JobID != "job-3" {
		t.Fatalf("expected job id carried, got %q", claimErr.JobID)
	}
}
