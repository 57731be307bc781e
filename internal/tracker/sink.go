package tracker

import (
	"context"
	"fmt"
	"log"

	"github.com/logfold/logfold/internal/pipeline"
)

// IssueSink forwards deduplicated records to the issue tracker. For each
// emission it looks for an open issue carrying the signature marker: found
// means the problem resurfaced after its window expired, so a comment is
// added; otherwise a fresh issue is opened.
//
// Delivery is at-least-once. A crash between store bookkeeping and the API
// call, or two processes racing the same signature, can produce an extra
// issue or comment; the tracker search keeps the damage to one.
type IssueSink struct {
	client *Client
	labels []string
}

// NewIssueSink builds a sink filing issues through client, applying labels to
// every issue it opens.
func NewIssueSink(client *Client, labels []string) *IssueSink {
	return &IssueSink{client: client, labels: labels}
}

// Emit files one record.
func (s *IssueSink) Emit(ctx context.Context, em pipeline.Emission) error {
	number, found, err := s.client.FindIssue(ctx, Marker(em.Signature))
	if err != nil {
		// Search is an optimization; failing it should not drop the alert.
		log.Printf("[WARN] tracker: issue search failed, filing new issue: %v", err)
		found = false
	}

	if found {
		if err := s.client.CreateComment(ctx, number, CommentBody(em.Record, em.Signature)); err != nil {
			return fmt.Errorf("failed to record occurrence on issue #%d: %w", number, err)
		}
		return nil
	}

	number, err = s.client.CreateIssue(ctx, IssueTitle(em.Record), IssueBody(em.Record, em.Signature), s.labels)
	if err != nil {
		return fmt.Errorf("failed to file issue: %w", err)
	}
	log.Printf("[INFO] tracker: filed issue #%d (signature %.12s…)", number, em.Signature)
	return nil
}

// EmitBatch files each emission in order. The tracker API has no bulk
// endpoint, so a batch is just a sequence of single filings.
func (s *IssueSink) EmitBatch(ctx context.Context, batch []pipeline.Emission) error {
	for _, em := range batch {
		if err := s.Emit(ctx, em); err != nil {
			return err
		}
	}
	return nil
}
