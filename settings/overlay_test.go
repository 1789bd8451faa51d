package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wechange-eg/conference-hub/types"
)

func TestFinalizedParamsNatureOverlay(t *testing.T) {
	res := &Resolved{
		Params: types.ParamMap{
			"join": {
				"userdata-bbb_show_participants_on_login": "true",
				"userdata-bbb_mirror_own_webcam":          "false",
			},
			"join__coffee": {
				"userdata-bbb_show_participants_on_login": "false",
			},
			"create__stage": {
				"record": "true",
			},
		},
		Nature: types.NatureCoffee,
	}

	final := res.FinalizedParams(nil)
	// nature values win over base values for the same key
	assert.Equal(t, "false", final["join"]["userdata-bbb_show_participants_on_login"])
	assert.Equal(t, "false", final["join"]["userdata-bbb_mirror_own_webcam"])
	// all suffixed sections are gone, matching nature or not
	assert.NotContains(t, final, "join__coffee")
	assert.NotContains(t, final, "create__stage")
	// unrelated natures' blocks are dropped, never merged
	assert.NotContains(t, final, "create")
}

func TestFinalizedParamsSuffixOntoMissingBase(t *testing.T) {
	res := &Resolved{
		Params: types.ParamMap{
			"join__coffee": {"userdata-bbb_auto_share_webcam": "true"},
		},
		Nature: types.NatureCoffee,
	}
	final := res.FinalizedParams(nil)
	assert.Equal(t, "true", final["join"]["userdata-bbb_auto_share_webcam"])
	assert.NotContains(t, final, "join__coffee")
}

func TestFinalizedParamsIdempotent(t *testing.T) {
	res := &Resolved{
		Params: types.ParamMap{
			"join":         {"a": "1"},
			"join__coffee": {"a": "2", "b": "3"},
		},
		Nature: types.NatureCoffee,
	}
	first := res.FinalizedParams(nil)
	second := res.FinalizedParams(nil)
	assert.Equal(t, first, second)
	// the composite itself is untouched
	assert.Contains(t, res.Params, "join__coffee")
	assert.Equal(t, "1", res.Params["join"]["a"])
}

func TestFinalizedParamsPortalDefaults(t *testing.T) {
	defaults := types.ParamMap{
		"create": {"record": "false", "muteOnStart": "true"},
	}
	res := &Resolved{
		Params: types.ParamMap{
			"create": {"record": "true"},
		},
	}
	final := res.FinalizedParams(defaults)
	// own keys win, defaults fill the rest
	assert.Equal(t, "true", final["create"]["record"])
	assert.Equal(t, "true", final["create"]["muteOnStart"])

	// excluding the defaults leaves only the own params
	own := res.FinalizedParams(nil)
	assert.NotContains(t, own["create"], "muteOnStart")

	// the defaults themselves are not mutated
	assert.Equal(t, "false", defaults["create"]["record"])
}

func TestFinalizedParamsEmptyComposite(t *testing.T) {
	res := &Resolved{}
	assert.Empty(t, res.FinalizedParams(nil))
}
