package translate

import "strings"

// ModelConfig carries the provider/model-name knobs the rewrite step needs.
// Kept independent of internal/app's richer Config so this package never
// depends on it (internal/app depends on internal/translate, not vice versa).
type ModelConfig struct {
	BigModel          string
	SmallModel        string
	PreferredProvider string
}

// RewriteResult is the outcome of RewriteModel: the name to forward upstream
// and the original string as it arrived on the wire, kept apart per the
// decision recorded in DESIGN.md (an explicit field produced by an explicit
// step, not a validator side effect).
type RewriteResult struct {
	Rewritten string
	Original  string
}

// RewriteModel applies spec.md §6.4's model-name rewrite: strip a leading
// "anthropic/" prefix, swap "haiku"/"sonnet" names for the configured
// small/big model, and otherwise ensure the provider prefix is present.
func RewriteModel(model string, cfg *ModelConfig) RewriteResult {
	original := model
	remainder := strings.TrimPrefix(model, "anthropic/")

	lower := strings.ToLower(remainder)
	provider := cfg.PreferredProvider

	var rewritten string
	switch {
	case strings.Contains(lower, "haiku"):
		rewritten = provider + "/" + cfg.SmallModel
	case strings.Contains(lower, "sonnet"):
		rewritten = provider + "/" + cfg.BigModel
	case strings.HasPrefix(remainder, provider+"/"):
		rewritten = remainder
	default:
		rewritten = provider + "/" + remainder
	}

	return RewriteResult{Rewritten: rewritten, Original: original}
}
