package process

import (
	"context"
	"errors"
	"testing"

	"github.com/clowder-framework/extractor-connector/classify"
	"github.com/clowder-framework/extractor-connector/extractor"
	"github.com/clowder-framework/extractor-connector/resource"
	"github.com/clowder-framework/extractor-connector/stage"
)

type fakeBuilder struct {
	res *resource.Resource
	err error
}

func (f *fakeBuilder) Build(ctx context.Context, host, secretKey string, body resource.MessageBody) (*resource.Resource, error) {
	return f.res, f.err
}

type fakeRegistrar struct {
	calls int
	err   error
}

func (f *fakeRegistrar) RegisterExtractor(ctx context.Context, host, secretKey string, info extractor.Info) error {
	f.calls++
	return f.err
}

type fakeStager struct {
	called bool
	err    error
}

func (f *fakeStager) Stage(ctx context.Context, host, secretKey string, res *resource.Resource) ([]string, stage.Cleanup, error) {
	f.called = true
	return nil, stage.Cleanup{}, f.err
}

type recordingSink struct {
	outcomes []Outcome
}

func (s *recordingSink) Publish(o Outcome) {
	s.outcomes = append(s.outcomes, o)
}

func (s *recordingSink) kinds() []OutcomeKind {
	kinds := make([]OutcomeKind, len(s.outcomes))
	for i, o := range s.outcomes {
		kinds[i] = o.Kind
	}
	return kinds
}

func newTestProcessor(res *resource.Resource) (*Processor, *recordingSink, *fakeStager) {
	sink := &recordingSink{}
	stager := &fakeStager{}
	p := &Processor{
		Info:         extractor.Info{Name: "wordcount"},
		Host:         &fakeRegistrar{},
		Builder:      &fakeBuilder{res: res},
		Stager:       stager,
		Registration: NewRegistrationSet(),
		Sink:         sink,
	}
	return p, sink, stager
}

func TestRunDropsEmptyHost(t *testing.T) {
	p, sink, _ := newTestProcessor(&resource.Resource{ID: "f1"})
	if err := p.Run(context.Background(), resource.MessageBody{Host: ""}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.outcomes) != 0 {
		t.Fatalf("expected no outcomes for a dropped empty-host message, got %v", sink.kinds())
	}
}

func TestRunBuilderNilResourceStopsSilently(t *testing.T) {
	sink := &recordingSink{}
	p := &Processor{
		Info:         extractor.Info{Name: "wordcount"},
		Builder:      &fakeBuilder{res: nil, err: nil},
		Registration: NewRegistrationSet(),
		Sink:         sink,
	}
	if err := p.Run(context.Background(), resource.MessageBody{Host: "http://host/"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.outcomes) != 0 {
		t.Fatalf("expected no further outcomes when Builder already handled the message, got %v", sink.kinds())
	}
}

func TestRunSuccessEmitsStartThenOK(t *testing.T) {
	p, sink, stager := newTestProcessor(&resource.Resource{ID: "f1"})
	p.Process = func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) error {
		return nil
	}

	if err := p.Run(context.Background(), resource.MessageBody{Host: "http://host/"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	kinds := sink.kinds()
	if len(kinds) != 3 || kinds[0] != OutcomeStatus || kinds[1] != OutcomeStatus || kinds[2] != OutcomeOK {
		t.Fatalf("kinds = %v, want [status status ok]", kinds)
	}
	if !stager.called {
		t.Fatal("expected CheckDownload default to stage inputs")
	}
}

func TestRunCheckIgnoreSkipsStagingAndProcess(t *testing.T) {
	p, sink, stager := newTestProcessor(&resource.Resource{ID: "f1"})
	p.Check = func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) (extractor.CheckResult, error) {
		return extractor.CheckIgnore, nil
	}
	processCalled := false
	p.Process = func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) error {
		processCalled = true
		return nil
	}

	if err := p.Run(context.Background(), resource.MessageBody{Host: "http://host/"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stager.called || processCalled {
		t.Fatal("CheckIgnore must skip both staging and ProcessFunc")
	}
	kinds := sink.kinds()
	if kinds[len(kinds)-1] != OutcomeOK {
		t.Fatalf("CheckIgnore must still end in an ok outcome, got %v", kinds)
	}
}

func TestRunCheckBypassSkipsStagingOnly(t *testing.T) {
	p, _, stager := newTestProcessor(&resource.Resource{ID: "f1"})
	p.Check = func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) (extractor.CheckResult, error) {
		return extractor.CheckBypass, nil
	}
	processCalled := false
	p.Process = func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) error {
		processCalled = true
		return nil
	}

	if err := p.Run(context.Background(), resource.MessageBody{Host: "http://host/"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stager.called {
		t.Fatal("CheckBypass must skip staging")
	}
	if !processCalled {
		t.Fatal("CheckBypass must still invoke ProcessFunc")
	}
}

func TestRunRegistersOncePerHost(t *testing.T) {
	p, _, _ := newTestProcessor(&resource.Resource{ID: "f1"})
	p.Process = func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) error {
		return nil
	}
	registrar := p.Host.(*fakeRegistrar)

	p.Run(context.Background(), resource.MessageBody{Host: "http://host/"})
	p.Run(context.Background(), resource.MessageBody{Host: "http://host/"})

	if registrar.calls != 1 {
		t.Fatalf("RegisterExtractor called %d times, want exactly 1", registrar.calls)
	}
}

func TestRunTransientFailureResubmitsUnderRetryCap(t *testing.T) {
	p, sink, _ := newTestProcessor(&resource.Resource{ID: "f1"})
	p.Process = func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) error {
		return &classify.TransientError{Err: errors.New("temporary glitch")}
	}

	if err := p.Run(context.Background(), resource.MessageBody{Host: "http://host/", RetryCount: 3}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	last := sink.outcomes[len(sink.outcomes)-1]
	if last.Kind != OutcomeResubmit || last.Body.RetryCount != 4 {
		t.Fatalf("last outcome = %+v, want resubmit with retry_count 4", last)
	}
}

func TestRunTransientFailureErrorsAtRetryCap(t *testing.T) {
	p, sink, _ := newTestProcessor(&resource.Resource{ID: "f1"})
	p.Process = func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) error {
		return &classify.TransientError{Err: errors.New("still failing")}
	}

	if err := p.Run(context.Background(), resource.MessageBody{Host: "http://host/", RetryCount: MaxRetries}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	last := sink.outcomes[len(sink.outcomes)-1]
	if last.Kind != OutcomeError {
		t.Fatalf("last outcome kind = %v, want error once retry_count reaches the cap", last.Kind)
	}
}

func TestRunFatalFailureResubmitsAndReRaises(t *testing.T) {
	p, sink, _ := newTestProcessor(&resource.Resource{ID: "f1"})
	p.Process = func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) error {
		return &classify.FatalError{Reason: "interrupted"}
	}

	err := p.Run(context.Background(), resource.MessageBody{Host: "http://host/", RetryCount: 2})
	if err == nil {
		t.Fatal("Run() must re-raise on a Fatal classification")
	}

	last := sink.outcomes[len(sink.outcomes)-1]
	if last.Kind != OutcomeResubmit || last.Body.RetryCount != 2 {
		t.Fatalf("last outcome = %+v, want resubmit with unchanged retry_count", last)
	}
}

func TestRunSubprocessFailureErrorsWithoutResubmit(t *testing.T) {
	p, sink, _ := newTestProcessor(&resource.Resource{ID: "f1"})
	p.Process = func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) error {
		return &classify.SubprocessError{Cmd: "ffmpeg", ExitCode: 1}
	}

	if err := p.Run(context.Background(), resource.MessageBody{Host: "http://host/"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	last := sink.outcomes[len(sink.outcomes)-1]
	if last.Kind != OutcomeError {
		t.Fatalf("last outcome kind = %v, want error for a subprocess failure", last.Kind)
	}
}
