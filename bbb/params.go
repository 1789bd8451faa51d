package bbb

import (
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// CreateOptions are the typed parameters recognized in the finalized "create"
// section of a resolved settings record. Everything else is carried along in
// Extra and passed through to the API verbatim.
type CreateOptions struct {
	Welcome            string            `mapstructure:"welcome"`
	MaxParticipants    int               `mapstructure:"maxParticipants"`
	DialNumber         string            `mapstructure:"dialNumber"`
	Record             bool              `mapstructure:"record"`
	AutoStartRecording bool              `mapstructure:"autoStartRecording"`
	MuteOnStart        bool              `mapstructure:"muteOnStart"`
	GuestPolicy        string            `mapstructure:"guestPolicy"`
	Extra              map[string]string `mapstructure:",remain"`
}

// DecodeCreateOptions decodes a finalized "create" parameter section. Values
// are strings on the wire, so weakly typed decoding is used for the int and
// bool fields.
func DecodeCreateOptions(section map[string]string) (*CreateOptions, error) {
	opts := CreateOptions{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(section); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Wire returns the pass-through create parameters: the Extra section plus the
// typed flags that are set. Welcome, maxParticipants and dialNumber are not
// included, they travel as explicit CreateRequest fields.
func (o *CreateOptions) Wire() map[string]string {
	params := make(map[string]string, len(o.Extra)+4)
	for k, v := range o.Extra {
		params[k] = v
	}
	if o.Record {
		params["record"] = strconv.FormatBool(o.Record)
	}
	if o.AutoStartRecording {
		params["autoStartRecording"] = strconv.FormatBool(o.AutoStartRecording)
	}
	if o.MuteOnStart {
		params["muteOnStart"] = strconv.FormatBool(o.MuteOnStart)
	}
	if o.GuestPolicy != "" {
		params["guestPolicy"] = o.GuestPolicy
	}
	return params
}
