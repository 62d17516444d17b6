// Package pipeline runs assessment, scoring, duplicate detection and
// freelancer analysis over one batch and optionally persists the results.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-intel/internal/assess"
	"github.com/sells-group/contact-intel/internal/config"
	"github.com/sells-group/contact-intel/internal/dedupe"
	"github.com/sells-group/contact-intel/internal/freelance"
	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/report"
	"github.com/sells-group/contact-intel/internal/resilience"
	"github.com/sells-group/contact-intel/internal/scoring"
	"github.com/sells-group/contact-intel/internal/store"
)

// Stage names.
const (
	StageAssess    = "assess"
	StageScore     = "score"
	StageDedupe    = "dedupe"
	StageFreelance = "freelance"
	StagePersist   = "persist"
)

var stageOrder = []string{StageAssess, StageScore, StageDedupe, StageFreelance, StagePersist}

// Pipeline wires the four analyzers to an optional store.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	assessor *assess.Assessor
	scorer   *scoring.Scorer
	detector *dedupe.Detector
	analyzer *freelance.Analyzer
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock fixes the time used by assessment freshness, recency scoring
// and failure records.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline. st may be nil, in which case nothing is persisted.
func New(cfg *config.Config, lex *lexicon.Lexicon, st store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, store: st, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	n := cfg.Batch.Concurrency
	p.assessor = assess.New(cfg.Assess, lex, assess.WithClock(p.now), assess.WithConcurrency(n))
	p.scorer = scoring.New(cfg.Scoring, lex, scoring.WithConcurrency(n))
	p.detector = dedupe.New(cfg.Dedupe, lex)
	p.analyzer = freelance.New(cfg.Freelance, lex, freelance.WithClock(p.now), freelance.WithConcurrency(n))
	return p
}

// Input is one batch.
type Input struct {
	Label    string                   `json:"label,omitempty"`
	Contents []model.ParsedContent    `json:"contents"`
	Contacts []model.ExtractedContact `json:"contacts"`
	// Histories holds byline history by contact ID. Histories of contacts
	// merged as duplicates are combined under the selected contact.
	Histories map[string][]model.OutletHistory `json:"histories,omitempty"`
	Target    *scoring.TargetCriteria          `json:"target,omitempty"`
}

// Counts records the batch sizes each stage started from.
type Counts struct {
	Contents int `json:"contents"`
	Contacts int `json:"contacts"`
	Subjects int `json:"subjects"`
}

// Output is everything a run produced. On interruption it holds the stages
// that finished.
type Output struct {
	RunID       string                            `json:"run_id"`
	Status      model.RunStatus                   `json:"status"`
	Counts      Counts                            `json:"counts"`
	Assessments []*model.ContentQualityAssessment `json:"assessments"`
	Gated       []string                          `json:"gated"`
	Contacts    []model.ExtractedContact          `json:"contacts"`
	Detection   model.DetectionResult             `json:"detection"`
	Profiles    []*model.FreelancerProfile        `json:"profiles"`
	Stages      []model.StageResult               `json:"stages"`
	Failures    []*resilience.BatchItemError      `json:"-"`
	Stats       model.RunStats                    `json:"stats"`
}

// ReportInput adapts the output for the report package.
func (o *Output) ReportInput() report.Input {
	return report.Input{
		Contents:    o.Counts.Contents,
		Assessments: o.Assessments,
		Gated:       o.Gated,
		Contacts:    o.Counts.Contacts,
		Scored:      o.Contacts,
		Detection:   &o.Detection,
		Subjects:    o.Counts.Subjects,
		Profiles:    o.Profiles,
		Failures:    o.Failures,
	}
}

// FailureRecords converts the run's item failures for persistence or
// export.
func (o *Output) FailureRecords(now time.Time) []resilience.FailureRecord {
	records := make([]resilience.FailureRecord, len(o.Failures))
	for i, f := range o.Failures {
		records[i] = resilience.NewFailureRecord(o.RunID, f, now)
	}
	return records
}

// Run executes every stage in order. Item failures are collected on the
// output and never abort the run; cancellation or the processing timeout
// stops it between stages and returns the partial output with an error.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Output, error) {
	if secs := p.cfg.Batch.ProcessingTimeoutSecs; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	out := &Output{
		Status:   model.RunStatusQueued,
		Counts:   Counts{Contents: len(in.Contents), Contacts: len(in.Contacts)},
		Gated:    []string{},
		Profiles: []*model.FreelancerProfile{},
	}

	if p.store != nil {
		run, err := p.store.CreateRun(ctx, in.Label)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		out.RunID = run.ID
	} else {
		out.RunID = uuid.New().String()
	}

	log := zap.L().With(zap.String("run_id", out.RunID))
	log.Info("pipeline: starting run",
		zap.Int("contents", len(in.Contents)),
		zap.Int("contacts", len(in.Contacts)),
	)
	t := &tracker{p: p, out: out, log: log}

	// Stage 1: assess sources.
	byURL := make(map[string]*model.ContentQualityAssessment)
	t.stage(ctx, StageAssess, model.RunStatusAssessing, func() (int, int, error) {
		assessments, fails := p.assessor.AssessMany(ctx, in.Contents)
		out.Assessments = assessments
		out.Failures = append(out.Failures, fails...)
		for _, a := range assessments {
			byURL[a.URL] = a
			if a.OverallScore < p.cfg.Pipeline.MinOverallScore {
				out.Gated = append(out.Gated, a.URL)
			}
		}
		return len(assessments), len(fails), nil
	})
	if err := t.checkpoint(ctx, StageAssess); err != nil {
		return out, err
	}

	// Stage 2: score contacts against their source.
	contents := make(map[string]*model.ParsedContent, len(in.Contents))
	for i := range in.Contents {
		contents[in.Contents[i].URL] = &in.Contents[i]
	}
	t.stage(ctx, StageScore, model.RunStatusScoring, func() (int, int, error) {
		inputs := make([]scoring.Input, len(in.Contacts))
		for i, c := range in.Contacts {
			inputs[i] = scoring.Input{
				Contact:    c,
				Content:    contents[c.SourceURL],
				Assessment: byURL[c.SourceURL],
				Target:     in.Target,
			}
		}
		scored, fails := p.scorer.ScoreMany(ctx, inputs)
		out.Contacts = scored
		out.Failures = append(out.Failures, fails...)
		return len(scored), len(fails), nil
	})
	if err := t.checkpoint(ctx, StageScore); err != nil {
		return out, err
	}

	// Stage 3: collapse duplicates.
	t.stage(ctx, StageDedupe, model.RunStatusDeduping, func() (int, int, error) {
		out.Detection = p.detector.Detect(out.Contacts)
		return len(out.Contacts), 0, nil
	})
	if err := t.checkpoint(ctx, StageDedupe); err != nil {
		return out, err
	}

	// Stage 4: analyze canonical contacts that have byline history.
	subjects := freelanceSubjects(out.Detection, in.Histories)
	out.Counts.Subjects = len(subjects)
	if len(subjects) == 0 {
		t.skip(ctx, StageFreelance)
	} else {
		t.stage(ctx, StageFreelance, model.RunStatusAnalyzing, func() (int, int, error) {
			profiles, fails := p.analyzer.AnalyzeMany(ctx, subjects)
			out.Profiles = profiles
			out.Failures = append(out.Failures, fails...)
			return len(profiles), len(fails), nil
		})
	}
	if err := t.checkpoint(ctx, StageFreelance); err != nil {
		return out, err
	}

	out.Stats = report.Compute(out.ReportInput())

	if p.store == nil {
		t.skip(ctx, StagePersist)
	} else {
		var persistErr error
		t.stage(ctx, StagePersist, model.RunStatusPersisting, func() (int, int, error) {
			persistErr = p.persist(ctx, out)
			return len(out.Contacts), 0, persistErr
		})
		if persistErr != nil {
			t.finish(ctx, model.RunStatusFailed, persistErr)
			return out, eris.Wrap(persistErr, "pipeline: persist")
		}
	}

	t.finish(ctx, model.RunStatusComplete, nil)
	log.Info("pipeline: run complete",
		zap.Int("scored", out.Stats.Scored),
		zap.Int("duplicate_groups", out.Stats.DuplicateGroups),
		zap.Int("profiles", out.Stats.Profiles),
		zap.Int("failures", out.Stats.Failures),
		zap.Float64("success_rate", out.Stats.SuccessRate),
	)
	return out, nil
}

// persist writes the run outputs. Canonical contacts and the duplicates
// folded into them are stored together.
func (p *Pipeline) persist(ctx context.Context, out *Output) error {
	if err := p.store.SaveAssessments(ctx, out.RunID, out.Assessments); err != nil {
		return err
	}
	contacts := make([]model.ExtractedContact, 0, len(out.Detection.UniqueContacts)+len(out.Detection.Duplicates))
	contacts = append(contacts, out.Detection.UniqueContacts...)
	contacts = append(contacts, out.Detection.Duplicates...)
	if err := p.store.SaveContacts(ctx, out.RunID, contacts); err != nil {
		return err
	}
	if err := p.store.SaveDuplicateGroups(ctx, out.RunID, out.Detection.DuplicateGroups); err != nil {
		return err
	}
	if err := p.store.SaveProfiles(ctx, out.Profiles); err != nil {
		return err
	}
	return p.store.SaveFailures(ctx, out.FailureRecords(p.now()))
}

// freelanceSubjects pairs each canonical contact with the histories of every
// contact merged into it, in group member order.
func freelanceSubjects(d model.DetectionResult, histories map[string][]model.OutletHistory) []freelance.Subject {
	if len(histories) == 0 {
		return nil
	}
	members := make(map[string][]string, len(d.DuplicateGroups))
	for _, g := range d.DuplicateGroups {
		members[g.SelectedContact] = g.Contacts
	}

	var subjects []freelance.Subject
	for _, c := range d.UniqueContacts {
		ids, ok := members[c.ID]
		if !ok {
			ids = []string{c.ID}
		}
		var hs []model.OutletHistory
		for _, id := range ids {
			hs = append(hs, histories[id]...)
		}
		if len(hs) == 0 {
			continue
		}
		subjects = append(subjects, freelance.Subject{Contact: model.ContactFromExtracted(c), Histories: hs})
	}
	return subjects
}
