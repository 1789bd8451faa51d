package settings

import (
	"strings"

	"github.com/wechange-eg/conference-hub/types"
)

// Sections named "<base>__<nature>" overlay the "<base>" section when the
// composite's nature matches.
const natureSeparator = "__"

// FinalizedParams flattens the composite's param map into the final call
// parameters: portalDefaults (pass nil to exclude them) are merged underneath
// the own params, then every section suffixed with the stamped nature is
// merged on top of its base section (nature values win per key), and all
// suffixed sections, matching nature or not, are dropped from the result.
// The operation is idempotent and leaves the composite untouched.
func (res *Resolved) FinalizedParams(portalDefaults types.ParamMap) types.ParamMap {
	out := res.Params.Clone()
	if out == nil {
		out = make(types.ParamMap)
	}
	if portalDefaults != nil {
		out.MergeUnder(portalDefaults)
	}
	if res.Nature != "" {
		suffix := natureSeparator + res.Nature
		for section, params := range out {
			if !strings.HasSuffix(section, suffix) {
				continue
			}
			base := strings.TrimSuffix(section, suffix)
			if base == "" {
				continue
			}
			target, ok := out[base]
			if !ok {
				target = make(map[string]string, len(params))
				out[base] = target
			}
			for k, v := range params {
				target[k] = v
			}
		}
	}
	for section := range out {
		if strings.Contains(section, natureSeparator) {
			delete(out, section)
		}
	}
	return out
}
