package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"google.golang.org/genai"

	"github.com/quillab/quill"
)

// stream implements [quill.Stream] by wrapping the genai SDK's streaming
// iterator. A chunk can carry both text and grounding metadata, so decoded
// events are queued and handed out one at a time.
type stream struct {
	pull          func() (*genai.GenerateContentResponse, error, bool)
	stop          func()
	queue         []quill.StreamEvent
	groundingSent bool
	done          bool
	closed        bool
	err           error
}

// Interface compliance check.
var _ quill.Stream = (*stream)(nil)

// NewStreamFromIter wraps a genai streaming iterator into a [quill.Stream].
// Exported for testing against synthetic iterators.
func NewStreamFromIter(_ context.Context, iterFn iter.Seq2[*genai.GenerateContentResponse, error]) quill.Stream {
	next, stop := iter.Pull2(iterFn)
	return &stream{
		pull: next,
		stop: stop,
	}
}

// Next returns the next semantic event, io.EOF on normal completion, or a
// transport error.
func (s *stream) Next() (quill.StreamEvent, error) {
	for {
		if len(s.queue) > 0 {
			evt := s.queue[0]
			s.queue = s.queue[1:]
			return evt, nil
		}
		if s.err != nil {
			return nil, s.err
		}
		if s.done {
			return nil, io.EOF
		}
		if s.closed {
			return nil, fmt.Errorf("gemini: stream closed")
		}

		resp, err, ok := s.pull()
		if !ok {
			s.done = true
			continue
		}
		if err != nil {
			s.err = translateErr(err)
			continue
		}
		s.decode(resp)
	}
}

// Close releases the iterator. Safe to call at any point.
func (s *stream) Close() error {
	s.closed = true
	s.stop()
	return nil
}

// decode appends the chunk's token and grounding events to the queue.
func (s *stream) decode(resp *genai.GenerateContentResponse) {
	if resp == nil || len(resp.Candidates) == 0 {
		return
	}
	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p == nil || p.Thought || p.Text == "" {
				continue
			}
			s.queue = append(s.queue, quill.TokenEvent{Text: p.Text})
		}
	}
	if cand.GroundingMetadata != nil && !s.groundingSent {
		md := convertGrounding(cand.GroundingMetadata)
		if len(md.Sources) > 0 || len(md.SearchQueries) > 0 {
			s.groundingSent = true
			s.queue = append(s.queue, quill.GroundingEvent{Metadata: md})
		}
	}
}

func convertGrounding(gm *genai.GroundingMetadata) quill.GroundingMetadata {
	md := quill.GroundingMetadata{
		SearchQueries: gm.WebSearchQueries,
	}
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		md.Sources = append(md.Sources, quill.GroundingSource{
			Title: chunk.Web.Title,
			URI:   chunk.Web.URI,
		})
	}
	return md
}

// translateErr maps SDK errors onto the domain transport error so the
// pipeline can classify quota rejections that arrive via the stream.
func translateErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &quill.TransportError{
			Status: apiErr.Code,
			Body:   apiErr.Message,
			Err:    err,
		}
	}
	return &quill.TransportError{Err: err}
}
