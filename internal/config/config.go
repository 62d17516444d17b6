package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Lexicon   LexiconConfig   `yaml:"lexicon" mapstructure:"lexicon"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Assess    AssessConfig    `yaml:"assess" mapstructure:"assess"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Dedupe    DedupeConfig    `yaml:"dedupe" mapstructure:"dedupe"`
	Freelance FreelanceConfig `yaml:"freelance" mapstructure:"freelance"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// BatchConfig configures batch fan-out.
type BatchConfig struct {
	Concurrency           int `yaml:"concurrency" mapstructure:"concurrency"`
	ProcessingTimeoutSecs int `yaml:"processing_timeout_secs" mapstructure:"processing_timeout_secs"`
}

// LexiconConfig points at an optional pattern-table override file.
type LexiconConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PipelineConfig configures stage composition.
type PipelineConfig struct {
	// MinOverallScore gates sources; contacts from pages below it are scored
	// with the low assessment and flagged in the run output.
	MinOverallScore float64 `yaml:"min_overall_score" mapstructure:"min_overall_score"`
}

// AssessWeights are the overall-score weights of content assessment.
type AssessWeights struct {
	Credibility float64 `yaml:"credibility" mapstructure:"credibility"`
	Relevance   float64 `yaml:"relevance" mapstructure:"relevance"`
	Freshness   float64 `yaml:"freshness" mapstructure:"freshness"`
	Authority   float64 `yaml:"authority" mapstructure:"authority"`
	Spam        float64 `yaml:"spam" mapstructure:"spam"`
	ContactInfo float64 `yaml:"contact_info" mapstructure:"contact_info"`
}

// Sum returns the total weight.
func (w AssessWeights) Sum() float64 {
	return w.Credibility + w.Relevance + w.Freshness + w.Authority + w.Spam + w.ContactInfo
}

// AssessConfig configures content quality assessment.
type AssessConfig struct {
	Weights              AssessWeights `yaml:"weights" mapstructure:"weights"`
	MinTitleLength       int           `yaml:"min_title_length" mapstructure:"min_title_length"`
	MaxTitleLength       int           `yaml:"max_title_length" mapstructure:"max_title_length"`
	MinWordCount         int           `yaml:"min_word_count" mapstructure:"min_word_count"`
	MaxWordCount         int           `yaml:"max_word_count" mapstructure:"max_word_count"`
	MinLinks             int           `yaml:"min_links" mapstructure:"min_links"`
	CredibilityThreshold float64       `yaml:"credibility_threshold" mapstructure:"credibility_threshold"`
	RelevanceThreshold   float64       `yaml:"relevance_threshold" mapstructure:"relevance_threshold"`
	FreshnessThreshold   float64       `yaml:"freshness_threshold" mapstructure:"freshness_threshold"`
	AuthorityThreshold   float64       `yaml:"authority_threshold" mapstructure:"authority_threshold"`
	SpamThreshold        float64       `yaml:"spam_threshold" mapstructure:"spam_threshold"`
}

// ConfidenceWeights are the contact confidence sub-score weights.
type ConfidenceWeights struct {
	NameClarity        float64 `yaml:"name_clarity" mapstructure:"name_clarity"`
	EmailPresence      float64 `yaml:"email_presence" mapstructure:"email_presence"`
	TitleRelevance     float64 `yaml:"title_relevance" mapstructure:"title_relevance"`
	BioCompleteness    float64 `yaml:"bio_completeness" mapstructure:"bio_completeness"`
	SocialVerification float64 `yaml:"social_verification" mapstructure:"social_verification"`
	SourceAuthority    float64 `yaml:"source_authority" mapstructure:"source_authority"`
}

// Sum returns the total weight.
func (w ConfidenceWeights) Sum() float64 {
	return w.NameClarity + w.EmailPresence + w.TitleRelevance + w.BioCompleteness + w.SocialVerification + w.SourceAuthority
}

// QualityWeights are the contact data-quality sub-score weights.
type QualityWeights struct {
	SourceCredibility      float64 `yaml:"source_credibility" mapstructure:"source_credibility"`
	ContentFreshness       float64 `yaml:"content_freshness" mapstructure:"content_freshness"`
	InformationConsistency float64 `yaml:"information_consistency" mapstructure:"information_consistency"`
	ContactCompleteness    float64 `yaml:"contact_completeness" mapstructure:"contact_completeness"`
	VerificationStatus     float64 `yaml:"verification_status" mapstructure:"verification_status"`
}

// Sum returns the total weight.
func (w QualityWeights) Sum() float64 {
	return w.SourceCredibility + w.ContentFreshness + w.InformationConsistency + w.ContactCompleteness + w.VerificationStatus
}

// ScoringConfig configures contact scoring.
type ScoringConfig struct {
	ConfidenceWeights ConfidenceWeights `yaml:"confidence_weights" mapstructure:"confidence_weights"`
	QualityWeights    QualityWeights    `yaml:"quality_weights" mapstructure:"quality_weights"`
	// Pending contacts at or above ConfirmThreshold become CONFIRMED; below
	// ReviewThreshold MANUAL_REVIEW; below RejectThreshold REJECTED.
	ConfirmThreshold float64 `yaml:"confirm_threshold" mapstructure:"confirm_threshold"`
	ReviewThreshold  float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
	RejectThreshold  float64 `yaml:"reject_threshold" mapstructure:"reject_threshold"`
}

// SimilarityWeights combine the pairwise sub-scores when emails differ.
type SimilarityWeights struct {
	Email  float64 `yaml:"email" mapstructure:"email"`
	Name   float64 `yaml:"name" mapstructure:"name"`
	Title  float64 `yaml:"title" mapstructure:"title"`
	Outlet float64 `yaml:"outlet" mapstructure:"outlet"`
}

// Sum returns the total weight.
func (w SimilarityWeights) Sum() float64 {
	return w.Email + w.Name + w.Title + w.Outlet
}

// DedupeConfig configures duplicate detection.
type DedupeConfig struct {
	Weights       SimilarityWeights `yaml:"weights" mapstructure:"weights"`
	Threshold     float64           `yaml:"threshold" mapstructure:"threshold"`
	LinkThreshold float64           `yaml:"link_threshold" mapstructure:"link_threshold"`
	// MaxPairwise caps the all-pairs fallback; larger batches rely on
	// bucketed candidates only.
	MaxPairwise int `yaml:"max_pairwise" mapstructure:"max_pairwise"`
}

// ActivityMultipliers scale recency by activity level.
type ActivityMultipliers struct {
	High   float64 `yaml:"high" mapstructure:"high"`
	Medium float64 `yaml:"medium" mapstructure:"medium"`
	Low    float64 `yaml:"low" mapstructure:"low"`
}

// FreelanceConfig configures freelancer and outlet relationship analysis.
type FreelanceConfig struct {
	FreelancerThreshold     float64             `yaml:"freelancer_threshold" mapstructure:"freelancer_threshold"`
	DecayDays               float64             `yaml:"decay_days" mapstructure:"decay_days"`
	FreshDays               int                 `yaml:"fresh_days" mapstructure:"fresh_days"`
	FreshBoost              float64             `yaml:"fresh_boost" mapstructure:"fresh_boost"`
	RecentWindowDays        int                 `yaml:"recent_window_days" mapstructure:"recent_window_days"`
	RecentBylinesMin        int                 `yaml:"recent_bylines_min" mapstructure:"recent_bylines_min"`
	RecentBoost             float64             `yaml:"recent_boost" mapstructure:"recent_boost"`
	StaleDays               int                 `yaml:"stale_days" mapstructure:"stale_days"`
	StalePenalty            float64             `yaml:"stale_penalty" mapstructure:"stale_penalty"`
	Activity                ActivityMultipliers `yaml:"activity" mapstructure:"activity"`
	PrimaryThreshold        float64             `yaml:"primary_threshold" mapstructure:"primary_threshold"`
	PrimaryRecencyWeight    float64             `yaml:"primary_recency_weight" mapstructure:"primary_recency_weight"`
	PrimaryConfidenceWeight float64             `yaml:"primary_confidence_weight" mapstructure:"primary_confidence_weight"`
	IrregularMaxGapDays     float64             `yaml:"irregular_max_gap_days" mapstructure:"irregular_max_gap_days"`
	IrregularMinGapDays     float64             `yaml:"irregular_min_gap_days" mapstructure:"irregular_min_gap_days"`
}

// setDefaults registers every default on v. Defaults and Load share it so
// library callers and the CLI see the same tuning.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "contact-intel.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("batch.processing_timeout_secs", 300)
	v.SetDefault("lexicon.path", "")
	v.SetDefault("pipeline.min_overall_score", 0.3)

	v.SetDefault("assess.weights.credibility", 0.30)
	v.SetDefault("assess.weights.relevance", 0.25)
	v.SetDefault("assess.weights.freshness", 0.15)
	v.SetDefault("assess.weights.authority", 0.15)
	v.SetDefault("assess.weights.spam", 0.10)
	v.SetDefault("assess.weights.contact_info", 0.05)
	v.SetDefault("assess.min_title_length", 10)
	v.SetDefault("assess.max_title_length", 200)
	v.SetDefault("assess.min_word_count", 200)
	v.SetDefault("assess.max_word_count", 2000)
	v.SetDefault("assess.min_links", 5)
	v.SetDefault("assess.credibility_threshold", 0.6)
	v.SetDefault("assess.relevance_threshold", 0.5)
	v.SetDefault("assess.freshness_threshold", 0.5)
	v.SetDefault("assess.authority_threshold", 0.5)
	v.SetDefault("assess.spam_threshold", 0.3)

	v.SetDefault("scoring.confidence_weights.name_clarity", 0.25)
	v.SetDefault("scoring.confidence_weights.email_presence", 0.20)
	v.SetDefault("scoring.confidence_weights.title_relevance", 0.15)
	v.SetDefault("scoring.confidence_weights.bio_completeness", 0.15)
	v.SetDefault("scoring.confidence_weights.social_verification", 0.15)
	v.SetDefault("scoring.confidence_weights.source_authority", 0.10)
	v.SetDefault("scoring.quality_weights.source_credibility", 0.25)
	v.SetDefault("scoring.quality_weights.content_freshness", 0.20)
	v.SetDefault("scoring.quality_weights.information_consistency", 0.20)
	v.SetDefault("scoring.quality_weights.contact_completeness", 0.20)
	v.SetDefault("scoring.quality_weights.verification_status", 0.15)
	v.SetDefault("scoring.confirm_threshold", 0.85)
	v.SetDefault("scoring.review_threshold", 0.5)
	v.SetDefault("scoring.reject_threshold", 0.25)

	v.SetDefault("dedupe.weights.email", 0.40)
	v.SetDefault("dedupe.weights.name", 0.35)
	v.SetDefault("dedupe.weights.title", 0.10)
	v.SetDefault("dedupe.weights.outlet", 0.15)
	v.SetDefault("dedupe.threshold", 0.8)
	v.SetDefault("dedupe.link_threshold", 0.6)
	v.SetDefault("dedupe.max_pairwise", 250000)

	v.SetDefault("freelance.freelancer_threshold", 0.6)
	v.SetDefault("freelance.decay_days", 30.0)
	v.SetDefault("freelance.fresh_days", 7)
	v.SetDefault("freelance.fresh_boost", 1.5)
	v.SetDefault("freelance.recent_window_days", 90)
	v.SetDefault("freelance.recent_bylines_min", 2)
	v.SetDefault("freelance.recent_boost", 1.2)
	v.SetDefault("freelance.stale_days", 180)
	v.SetDefault("freelance.stale_penalty", 0.5)
	v.SetDefault("freelance.activity.high", 1.3)
	v.SetDefault("freelance.activity.medium", 1.0)
	v.SetDefault("freelance.activity.low", 0.7)
	v.SetDefault("freelance.primary_threshold", 0.3)
	v.SetDefault("freelance.primary_recency_weight", 0.6)
	v.SetDefault("freelance.primary_confidence_weight", 0.4)
	v.SetDefault("freelance.irregular_max_gap_days", 60.0)
	v.SetDefault("freelance.irregular_min_gap_days", 3.0)
}

// Defaults returns a Config populated with built-in defaults only.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(fmt.Sprintf("config: unmarshal defaults: %v", err))
	}
	return &cfg
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONTACT_INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that weight tables sum to 1 and thresholds are in range.
func (c *Config) Validate() error {
	var errs []string

	checkSum := func(name string, sum float64) {
		if math.Abs(sum-1) > 1e-6 {
			errs = append(errs, fmt.Sprintf("%s must sum to 1.0, got %.4f", name, sum))
		}
	}
	checkUnit := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 1", name))
		}
	}

	checkSum("assess.weights", c.Assess.Weights.Sum())
	checkSum("scoring.confidence_weights", c.Scoring.ConfidenceWeights.Sum())
	checkSum("scoring.quality_weights", c.Scoring.QualityWeights.Sum())
	checkSum("dedupe.weights", c.Dedupe.Weights.Sum())
	checkSum("freelance.primary weights", c.Freelance.PrimaryRecencyWeight+c.Freelance.PrimaryConfidenceWeight)

	checkUnit("pipeline.min_overall_score", c.Pipeline.MinOverallScore)
	checkUnit("dedupe.threshold", c.Dedupe.Threshold)
	checkUnit("dedupe.link_threshold", c.Dedupe.LinkThreshold)
	checkUnit("freelance.freelancer_threshold", c.Freelance.FreelancerThreshold)
	checkUnit("freelance.primary_threshold", c.Freelance.PrimaryThreshold)
	checkUnit("scoring.confirm_threshold", c.Scoring.ConfirmThreshold)
	checkUnit("scoring.review_threshold", c.Scoring.ReviewThreshold)
	checkUnit("scoring.reject_threshold", c.Scoring.RejectThreshold)

	if c.Scoring.RejectThreshold > c.Scoring.ReviewThreshold || c.Scoring.ReviewThreshold > c.Scoring.ConfirmThreshold {
		errs = append(errs, "scoring thresholds must satisfy reject <= review <= confirm")
	}
	if c.Dedupe.LinkThreshold > c.Dedupe.Threshold {
		errs = append(errs, "dedupe.link_threshold must be <= dedupe.threshold")
	}
	if c.Freelance.DecayDays <= 0 {
		errs = append(errs, "freelance.decay_days must be > 0")
	}
	if c.Assess.MinTitleLength > c.Assess.MaxTitleLength {
		errs = append(errs, "assess.min_title_length must be <= assess.max_title_length")
	}
	if c.Assess.MinWordCount > c.Assess.MaxWordCount {
		errs = append(errs, "assess.min_word_count must be <= assess.max_word_count")
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, "batch.concurrency must be >= 1")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
