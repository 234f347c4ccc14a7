// Package config loads paperfig.yaml over built-in defaults.
//
// Precedence, lowest first: defaults, the config file, PAPERFIG_* environment
// variables. CLI flags are applied by the caller on the resulting Settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "paperfig.yaml"

// EnvPrefix prefixes every environment override, e.g. PAPERFIG_RUN_ROOT.
const EnvPrefix = "PAPERFIG"

// EnvStyleRef is the short alias for PAPERFIG_RENDERER_STYLE_REF.
const EnvStyleRef = "PAPERFIG_STYLE_REF"

// Settings is the merged configuration tree. Its canonical JSON is the
// run's config_hash, so secrets are excluded from JSON.
type Settings struct {
	Run                  RunSettings          `mapstructure:"run" json:"run"`
	Docs                 DocsSettings         `mapstructure:"docs" json:"docs"`
	ArchitectureCritique ArchCritiqueSettings `mapstructure:"architecture_critique" json:"architecture_critique"`
	Reproducibility      ReproSettings        `mapstructure:"reproducibility" json:"reproducibility"`
	Templates            TemplateSettings     `mapstructure:"templates" json:"templates"`
	Renderer             RendererSettings     `mapstructure:"renderer" json:"renderer"`
	Index                IndexSettings        `mapstructure:"index" json:"index"`
}

// RunSettings bounds the generate loop and names the run root.
type RunSettings struct {
	Root               string  `mapstructure:"root" json:"root"`
	MaxIterations      int     `mapstructure:"max_iterations" json:"max_iterations"`
	QualityThreshold   float64 `mapstructure:"quality_threshold" json:"quality_threshold"`
	DimensionThreshold float64 `mapstructure:"dimension_threshold" json:"dimension_threshold"`
	// Seed is recorded in run.json when set.
	Seed *int64 `mapstructure:"seed" json:"seed"`
}

// DocsSettings controls docs drift checks and regeneration.
type DocsSettings struct {
	Scope               string `mapstructure:"scope" json:"scope"`
	ManifestPath        string `mapstructure:"manifest_path" json:"manifest_path"`
	AutoRegenOnGenerate bool   `mapstructure:"auto_regen_on_generate" json:"auto_regen_on_generate"`
}

// ArchCritiqueSettings controls the architecture critique gate.
type ArchCritiqueSettings struct {
	InlineOnGenerate bool     `mapstructure:"inline_on_generate" json:"inline_on_generate"`
	BlockSeverity    string   `mapstructure:"block_severity" json:"block_severity"`
	Rules            []string `mapstructure:"rules" json:"rules"`
}

// ReproSettings selects the reproducibility audit mode.
type ReproSettings struct {
	Mode string `mapstructure:"mode" json:"mode"`
}

// TemplateSettings selects the flow template pack.
type TemplateSettings struct {
	ActivePack string `mapstructure:"active_pack" json:"active_pack"`
	// TemplateDir overrides the built-in flow templates when set.
	TemplateDir string `mapstructure:"template_dir" json:"template_dir"`
}

// RendererSettings configures the figure render backend.
type RendererSettings struct {
	// Endpoint selects the HTTP renderer; empty uses the built-in mock.
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	APIKey   string `mapstructure:"api_key" json:"-"`
	// Timeout is a Go duration string.
	Timeout string `mapstructure:"timeout" json:"timeout"`
	// StyleRef is a JSON style reference file; empty uses conference_default.
	StyleRef string `mapstructure:"style_ref" json:"style_ref"`
}

// IndexSettings configures the SQLite run index.
type IndexSettings struct {
	// Path defaults to <run root>/index.db.
	Path     string `mapstructure:"path" json:"path"`
	Disabled bool   `mapstructure:"disabled" json:"disabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.root", "runs")
	v.SetDefault("run.max_iterations", engine.DefaultMaxIterations)
	v.SetDefault("run.quality_threshold", engine.DefaultQualityThreshold)
	v.SetDefault("run.dimension_threshold", engine.DefaultDimensionThreshold)
	v.SetDefault("run.seed", nil)

	v.SetDefault("docs.scope", "all")
	v.SetDefault("docs.manifest_path", engine.DefaultManifestPath)
	v.SetDefault("docs.auto_regen_on_generate", true)

	v.SetDefault("architecture_critique.inline_on_generate", true)
	v.SetDefault("architecture_critique.block_severity", string(ir.SeverityCritical))
	v.SetDefault("architecture_critique.rules", []string{})

	v.SetDefault("reproducibility.mode", string(ir.AuditSoft))

	v.SetDefault("templates.active_pack", engine.DefaultTemplatePack)
	v.SetDefault("templates.template_dir", "")

	v.SetDefault("renderer.endpoint", "")
	v.SetDefault("renderer.api_key", "")
	v.SetDefault("renderer.timeout", "60s")
	v.SetDefault("renderer.style_ref", "")

	v.SetDefault("index.path", "")
	v.SetDefault("index.disabled", false)
}

// Load reads path, or ./paperfig.yaml when path is empty. A missing default
// file is not an error; a missing explicit path is.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("renderer.style_ref", EnvStyleRef, EnvPrefix+"_RENDERER_STYLE_REF"); err != nil {
		return nil, engine.NewConfigurationError("failed to bind "+EnvStyleRef, err)
	}

	v.SetConfigType("yaml")
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, engine.NewConfigurationError(fmt.Sprintf("config file %s", path), err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".yaml"))
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, engine.NewConfigurationError("failed to read config", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, engine.NewConfigurationError("failed to decode config", err)
	}
	if s.ArchitectureCritique.Rules == nil {
		s.ArchitectureCritique.Rules = []string{}
	}
	return &s, nil
}

// Fingerprint is the SHA-256 of the settings' canonical JSON.
func (s *Settings) Fingerprint() (string, error) {
	return ir.ConfigFingerprint(s)
}

// EngineConfig converts the settings into an engine.Config with its
// config_hash stamped.
func (s *Settings) EngineConfig() (engine.Config, error) {
	severity, err := ir.ParseSeverity(s.ArchitectureCritique.BlockSeverity)
	if err != nil {
		return engine.Config{}, engine.NewConfigurationError("architecture_critique.block_severity", err)
	}
	mode, err := ir.ParseAuditMode(s.Reproducibility.Mode)
	if err != nil {
		return engine.Config{}, engine.NewConfigurationError("reproducibility.mode", err)
	}
	hash, err := s.Fingerprint()
	if err != nil {
		return engine.Config{}, err
	}

	cfg := engine.DefaultConfig(s.Run.Root)
	cfg.MaxIterations = s.Run.MaxIterations
	cfg.QualityThreshold = s.Run.QualityThreshold
	cfg.DimensionThreshold = s.Run.DimensionThreshold
	cfg.Seed = s.Run.Seed
	cfg.TemplatePack = s.Templates.ActivePack
	cfg.ArchCritiqueMode = ir.ArchCritiqueOff
	if s.ArchitectureCritique.InlineOnGenerate {
		cfg.ArchCritiqueMode = ir.ArchCritiqueInline
	}
	cfg.ArchCritiqueBlockSeverity = severity
	cfg.ArchCritiqueRules = append([]string(nil), s.ArchitectureCritique.Rules...)
	cfg.ReproAuditMode = mode
	cfg.DocsManifestPath = s.Docs.ManifestPath
	cfg.DocsAutoRegen = s.Docs.AutoRegenOnGenerate
	cfg.ConfigHash = hash
	return cfg, cfg.Validate()
}
