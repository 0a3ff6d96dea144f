package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/phoneprobe/internal/fetch"
	"github.com/nao1215/phoneprobe/internal/model"
	"github.com/nao1215/phoneprobe/internal/platform"
	"github.com/nao1215/phoneprobe/internal/probe"
	"github.com/nao1215/phoneprobe/internal/ratelimit"
)

const profilePage = `<html><head><title>Jane (@87654321) • Instagram</title>
<script type="application/ld+json">
{
  "@type": "ProfilePage",
  "alternateName": "@87654321",
  "name": "Jane",
  "description": "coffee and code",
  "mainEntityofPage": {
    "interactionStatistic": [
      {"interactionType": "http://schema.org/FollowAction", "userInteractionCount": 1200}
    ]
  }
}
</script></head><body><img class="profile-pic" src="a.jpg"></body></html>`

const notFoundPage = `<html><head><title>Page Not Found • Instagram</title></head>
<body>Sorry, this page isn't available.</body></html>`

// euProfilePage is the profile of the eu-prefixed handle of 5511987654321.
var euProfilePage = strings.ReplaceAll(profilePage, "@87654321", "@eu87654321")

const loginPage = `<html><head><title>Login • Instagram</title></head><body></body></html>`

// pageFetcher serves pages by URL and counts requests.
type pageFetcher struct {
	mu       sync.Mutex
	pages    map[string][]string
	fallback string
	err      error
	requests []string
}

func (f *pageFetcher) Fetch(_ context.Context, req fetch.Request) (*fetch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req.URL)
	if f.err != nil {
		return nil, f.err
	}
	content := f.fallback
	if queue := f.pages[req.URL]; len(queue) > 0 {
		content = queue[0]
		if len(queue) > 1 {
			f.pages[req.URL] = queue[1:]
		}
	}
	return &fetch.Result{Content: content, Status: 200, Ready: true}, nil
}

func (f *pageFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeProvider is a session provider with a scripted readiness result.
type fakeProvider struct {
	mu     sync.Mutex
	err    error
	ready  int
	closed int
}

func (p *fakeProvider) EnsureReady(context.Context, time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready++
	return p.err
}

func (p *fakeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func instagramComponents(t *testing.T, f fetch.Fetcher, provider fetch.SessionProvider) (Components, *ratelimit.Limiter) {
	t.Helper()

	d, err := platform.NewRegistry().Get(platform.Instagram)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	limiter := ratelimit.New(0)
	return Components{
		Platform:  d.Name,
		Generator: d.Generator(),
		Prober:    probe.New(d.Name, d.URLTemplate, f, limiter, d.Classifier(), probe.WithRequest(d.Request())),
		Extractor: d.Extractor(),
		Provider:  provider,
	}, limiter
}

// TestSearchScenario tests a full search of one number with a single
// existing profile.
func TestSearchScenario(t *testing.T) {
	t.Parallel()

	f := &pageFetcher{
		pages:    map[string][]string{"https://www.instagram.com/eu87654321/": {euProfilePage}},
		fallback: notFoundPage,
	}
	provider := &fakeProvider{}
	c, _ := instagramComponents(t, f, provider)

	p := NewSearch(c)
	session := p.NewSession(model.ParsePhoneNumber("5511987654321"))
	if err := p.Execute(context.Background(), session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.State != model.StateDone {
		t.Errorf("expected done, got %s", session.State)
	}
	if f.count() != 6 {
		t.Errorf("expected 6 fetches, got %d", f.count())
	}
	if diff := cmp.Diff(model.Summary{Found: 1, NotFound: 5}, session.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if len(session.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(session.Records))
	}

	rec := session.Records[0]
	if rec.Candidate != "eu87654321" || rec.Rule != "eu-last-8" || !rec.ExistenceConfirmed || !rec.ExtractionComplete {
		t.Errorf("unexpected record %+v", rec)
	}
	expected := model.Fields{
		model.FieldUsername:    "eu87654321",
		model.FieldDisplayName: "Jane",
		model.FieldBio:         "coffee and code",
		model.FieldFollowers:   float64(1200),
	}
	if diff := cmp.Diff(expected, rec.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	if provider.ready != 1 || provider.closed != 1 {
		t.Errorf("expected provider readied and closed once, got %d/%d", provider.ready, provider.closed)
	}

	states := session.Transitions()
	if states[1] != model.StateGenerating || states[2] != model.StateReady {
		t.Errorf("unexpected leading transitions %v", states[:3])
	}
	if states[len(states)-2] != model.StateAggregated || states[len(states)-1] != model.StateDone {
		t.Errorf("unexpected trailing transitions %v", states[len(states)-2:])
	}
	for _, o := range session.Outcomes {
		if o.RawContent != "" {
			t.Error("expected raw content to be dropped from outcomes")
		}
	}
}

// TestSearchProviderUnavailable tests that a provider that never becomes
// ready aborts the session before any probe.
func TestSearchProviderUnavailable(t *testing.T) {
	t.Parallel()

	f := &pageFetcher{fallback: notFoundPage}
	provider := &fakeProvider{err: &model.SessionUnavailableError{Provider: "browser", Timeout: time.Second}}
	c, _ := instagramComponents(t, f, provider)

	p := NewSearch(c)
	session := p.NewSession(model.ParsePhoneNumber("5511987654321"))
	err := p.Execute(context.Background(), session)

	if !errors.Is(err, model.ErrSessionUnavailable) {
		t.Fatalf("expected ErrSessionUnavailable, got %v", err)
	}
	if session.State != model.StateAborted {
		t.Errorf("expected aborted, got %s", session.State)
	}
	if len(session.Outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(session.Outcomes))
	}
	if f.count() != 0 {
		t.Errorf("expected no fetch, got %d", f.count())
	}
	if provider.closed != 1 {
		t.Errorf("expected provider closed once, got %d", provider.closed)
	}
}

// TestSearchProviderPlainError tests that any readiness error is reported
// as session unavailability.
func TestSearchProviderPlainError(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: errors.New("chrome not found")}
	c, _ := instagramComponents(t, &pageFetcher{}, provider)

	p := NewSearch(c)
	err := p.Execute(context.Background(), p.NewSession("5511987654321"))
	var unavailable *model.SessionUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected SessionUnavailableError, got %v", err)
	}
	if !strings.Contains(unavailable.Error(), "chrome not found") {
		t.Errorf("expected cause in message, got %q", unavailable.Error())
	}
}

// TestSearchInvalidInput tests that a short number aborts before probing.
func TestSearchInvalidInput(t *testing.T) {
	t.Parallel()

	f := &pageFetcher{}
	c, _ := instagramComponents(t, f, nil)

	p := NewSearch(c)
	session := p.NewSession(model.ParsePhoneNumber("1234"))
	err := p.Execute(context.Background(), session)

	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if session.State != model.StateAborted || f.count() != 0 {
		t.Errorf("expected aborted session with no fetch, got %s and %d fetches", session.State, f.count())
	}
}

// TestSearchInvalidInputBeforeProvider tests that a short number is
// rejected before the session provider is started.
func TestSearchInvalidInputBeforeProvider(t *testing.T) {
	t.Parallel()

	f := &pageFetcher{}
	provider := &fakeProvider{err: &model.SessionUnavailableError{Provider: "browser", Timeout: time.Second}}
	c, _ := instagramComponents(t, f, provider)

	p := NewSearch(c)
	session := p.NewSession(model.ParsePhoneNumber("12"))
	err := p.Execute(context.Background(), session)

	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if errors.Is(err, model.ErrSessionUnavailable) {
		t.Errorf("expected no session unavailability, got %v", err)
	}
	if provider.ready != 0 {
		t.Errorf("expected provider never readied, got %d calls", provider.ready)
	}
	if provider.closed != 1 {
		t.Errorf("expected provider closed once, got %d", provider.closed)
	}
	if f.count() != 0 {
		t.Errorf("expected no fetch, got %d", f.count())
	}
}

// TestSearchTransportErrorsContinue tests that transport failures never end
// the loop.
func TestSearchTransportErrorsContinue(t *testing.T) {
	t.Parallel()

	f := &pageFetcher{err: errors.New("connection reset")}
	c, _ := instagramComponents(t, f, nil)

	p := NewSearch(c)
	session := p.NewSession("5511987654321")
	if err := p.Execute(context.Background(), session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Summary.TransportError != 6 {
		t.Errorf("expected 6 transport errors, got %+v", session.Summary)
	}
	if session.State != model.StateDone {
		t.Errorf("expected done, got %s", session.State)
	}
}

// TestSearchFetcherUnavailable tests that a provider failing mid-session
// aborts with the results gathered so far.
func TestSearchFetcherUnavailable(t *testing.T) {
	t.Parallel()

	f := &pageFetcher{err: errors.Join(fetch.ErrUnavailable, errors.New("browser crashed"))}
	c, _ := instagramComponents(t, f, nil)

	p := NewSearch(c)
	session := p.NewSession("5511987654321")
	err := p.Execute(context.Background(), session)
	if !errors.Is(err, model.ErrSessionUnavailable) {
		t.Fatalf("expected ErrSessionUnavailable, got %v", err)
	}
	if session.State != model.StateAborted {
		t.Errorf("expected aborted, got %s", session.State)
	}
	if f.count() != 1 {
		t.Errorf("expected a single fetch, got %d", f.count())
	}
}

// TestSearchCancelled tests that cancellation keeps partial results.
func TestSearchCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &pageFetcher{fallback: notFoundPage}
	c, _ := instagramComponents(t, f, nil)
	c.Prober = cancelAfter{Prober: c.Prober, rule: "last-9", cancel: cancel}

	p := NewSearch(c)
	session := p.NewSession("5511987654321")
	if err := p.Execute(ctx, session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !session.Interrupted {
		t.Error("expected interrupted session")
	}
	if session.State != model.StateDone {
		t.Errorf("expected done, got %s", session.State)
	}
	if len(session.Outcomes) != 2 {
		t.Errorf("expected 2 outcomes, got %d", len(session.Outcomes))
	}
}

// cancelAfter cancels the run once the candidate of rule returned.
type cancelAfter struct {
	Prober
	rule   string
	cancel context.CancelFunc
}

func (c cancelAfter) Probe(ctx context.Context, cand model.Candidate, attempt int) (model.ProbeOutcome, error) {
	o, err := c.Prober.Probe(ctx, cand, attempt)
	if cand.Rule == c.rule {
		c.cancel()
	}
	return o, err
}

// TestSearchEscalation tests Blocked handling.
func TestSearchEscalation(t *testing.T) {
	t.Parallel()

	t.Run("cooldown escalation retries in place", func(t *testing.T) {
		t.Parallel()

		f := &pageFetcher{
			pages: map[string][]string{
				"https://www.instagram.com/87654321/": {loginPage, profilePage},
			},
			fallback: notFoundPage,
		}
		c, limiter := instagramComponents(t, f, nil)
		c.Escalation = CooldownEscalation{Limiter: limiter, Cooldown: time.Millisecond, MaxRetries: 2}

		p := NewSearch(c)
		session := p.NewSession("5511987654321")
		if err := p.Execute(context.Background(), session); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if f.count() != 7 {
			t.Errorf("expected 7 fetches, got %d", f.count())
		}
		if len(session.Outcomes) != 6 {
			t.Fatalf("expected 6 outcomes, got %d", len(session.Outcomes))
		}
		first := session.Outcomes[0]
		if first.Classification != model.ClassificationFound || first.Attempt != 2 {
			t.Errorf("expected retried Found outcome first, got %+v", first)
		}
		if diff := cmp.Diff(model.Summary{Found: 1, NotFound: 5}, session.Summary); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("retries are bounded", func(t *testing.T) {
		t.Parallel()

		f := &pageFetcher{fallback: loginPage}
		c, limiter := instagramComponents(t, f, nil)
		c.Escalation = CooldownEscalation{Limiter: limiter, MaxRetries: 1}

		p := NewSearch(c)
		session := p.NewSession("5511987654321")
		if err := p.Execute(context.Background(), session); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.count() != 12 {
			t.Errorf("expected 12 fetches, got %d", f.count())
		}
		if session.Summary.Blocked != 6 {
			t.Errorf("expected 6 blocked, got %+v", session.Summary)
		}
	})

	t.Run("built-in defaults cool down without retrying", func(t *testing.T) {
		t.Parallel()

		d, err := platform.NewRegistry().Get(platform.Instagram)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		f := &pageFetcher{fallback: loginPage}
		c, _ := instagramComponents(t, f, nil)
		cooler := &recordingCooler{}
		c.Escalation = CooldownEscalation{Limiter: cooler, Cooldown: d.Cooldown, MaxRetries: d.MaxRetries}

		p := NewSearch(c)
		session := p.NewSession("5511987654321")
		if err := p.Execute(context.Background(), session); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session.Summary.Blocked != 6 {
			t.Errorf("expected 6 blocked, got %+v", session.Summary)
		}
		if f.count() != 6+6*d.MaxRetries {
			t.Errorf("expected %d fetches, got %d", 6+6*d.MaxRetries, f.count())
		}
		if cooler.calls != f.count() {
			t.Errorf("expected a cooldown after each of %d blocked pages, got %d", f.count(), cooler.calls)
		}
	})

	t.Run("abort stops the run with partial results", func(t *testing.T) {
		t.Parallel()

		f := &pageFetcher{
			pages:    map[string][]string{"https://www.instagram.com/eu87654321/": {loginPage}},
			fallback: notFoundPage,
		}
		c, _ := instagramComponents(t, f, nil)
		c.Escalation = EscalationFunc(func(context.Context, model.ProbeOutcome) Decision { return Abort })

		p := NewSearch(c)
		session := p.NewSession("5511987654321")
		if err := p.Execute(context.Background(), session); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !session.Stopped || session.State != model.StateDone {
			t.Errorf("expected stopped done session, got stopped=%v state=%s", session.Stopped, session.State)
		}
		if diff := cmp.Diff(model.Summary{NotFound: 2, Blocked: 1}, session.Summary); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
	})
}

// TestCheck tests probing caller-supplied identifiers.
func TestCheck(t *testing.T) {
	t.Parallel()

	f := &pageFetcher{
		pages:    map[string][]string{"https://www.instagram.com/jane/": {profilePage}},
		fallback: notFoundPage,
	}
	c, _ := instagramComponents(t, f, nil)

	t.Run("probes identifiers in order", func(t *testing.T) {
		t.Parallel()

		p := NewCheck(c, []string{"jane", "nobody"})
		session := p.NewSession("")
		if err := p.Execute(context.Background(), session); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(model.Summary{Found: 1, NotFound: 1}, session.Summary); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
		if session.Records[0].Rule != "given" {
			t.Errorf("expected given rule, got %q", session.Records[0].Rule)
		}
	})

	t.Run("rejects an empty list", func(t *testing.T) {
		t.Parallel()

		p := NewCheck(c, nil)
		err := p.Execute(context.Background(), p.NewSession(""))
		if !errors.Is(err, model.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

// TestPipelineEmpty tests a pipeline without steps.
func TestPipelineEmpty(t *testing.T) {
	t.Parallel()

	p := New("x")
	if p.StepCount() != 0 {
		t.Errorf("expected 0 steps, got %d", p.StepCount())
	}
	session := p.NewSession("5511987654321")
	if err := p.Execute(context.Background(), session); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("expected ErrNoCandidates, got %v", err)
	}
	if session.State != model.StateAborted {
		t.Errorf("expected aborted, got %s", session.State)
	}
}

// TestStepNames tests the step order of the built pipelines.
func TestStepNames(t *testing.T) {
	t.Parallel()

	c, _ := instagramComponents(t, &pageFetcher{}, &fakeProvider{})
	if diff := cmp.Diff([]string{"generate", "ready", "probe"}, NewSearch(c).StepNames()); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"given", "ready", "probe"}, NewCheck(c, []string{"a"}).StepNames()); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	c.Provider = nil
	if diff := cmp.Diff([]string{"given", "probe"}, NewCheck(c, []string{"a"}).StepNames()); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}
