package settings

import (
	"errors"

	"github.com/wechange-eg/conference-hub/globals"
	"github.com/wechange-eg/conference-hub/persistence"
	"github.com/wechange-eg/conference-hub/types"
)

// ErrMismatchedRecord is returned when a settings record is stored for an
// object it does not belong to. Should not happen in normal operation.
var ErrMismatchedRecord = errors.New("settings record does not belong to this object")

// Resolved is an immutable composite of the settings chain for one object:
// the object's own overrides merged over everything it inherits. It is never
// persisted; there deliberately is no way to save one.
type Resolved struct {
	ServerChoice        types.ServerChoice
	ServerChoicePremium types.ServerChoice
	Params              types.ParamMap
	Nature              string
}

func (res *Resolved) clone() *Resolved {
	return &Resolved{
		ServerChoice:        res.ServerChoice,
		ServerChoicePremium: res.ServerChoicePremium,
		Params:              res.Params.Clone(),
		Nature:              res.Nature,
	}
}

// mergeUnder fills every field still at the inherit sentinel from parent and
// deep-merges the parent's params underneath the own ones (own keys win).
func (res *Resolved) mergeUnder(parent *Resolved) {
	if res.ServerChoice == types.ServerChoiceInherit {
		res.ServerChoice = parent.ServerChoice
	}
	if res.ServerChoicePremium == types.ServerChoiceInherit {
		res.ServerChoicePremium = parent.ServerChoicePremium
	}
	if res.Params == nil {
		res.Params = make(types.ParamMap)
	}
	res.Params.MergeUnder(parent.Params)
}

func fromRecord(rec *types.ConferenceSettings) *Resolved {
	params := rec.BBBParams.Clone()
	if params == nil {
		params = make(types.ParamMap)
	}
	return &Resolved{
		ServerChoice:        rec.BBBServerChoice,
		ServerChoicePremium: rec.BBBServerChoicePremium,
		Params:              params,
	}
}

// Resolver walks the fixed settings chain (event -> conference room -> group
// -> portal) and merges override records top-down. Composites are cached per
// object with a TTL.
type Resolver struct {
	store persistence.Persister
	cache *Cache

	// PortalDefaults are the portal-level base params underlying every
	// finalization (config-provided, may be nil).
	PortalDefaults types.ParamMap
}

func NewResolver(store persistence.Persister, cache *Cache, portalDefaults map[string]map[string]string) *Resolver {
	return &Resolver{
		store:          store,
		cache:          cache,
		PortalDefaults: types.ParamMap(portalDefaults),
	}
}

// GetForObject resolves the merged settings composite for obj. It returns nil
// (and no error) for a nil object and when nothing is configured anywhere up
// to and including the portal. With noTraversal only the object's own record
// is considered. The composite's Nature is stamped from obj at this top-level
// call only.
func (r *Resolver) GetForObject(obj types.ChainMember, noTraversal bool) (*Resolved, error) {
	if obj == nil {
		// a caller bug, not a normal path
		globals.AppLogger.Warn("settings resolution requested for nil object")
		return nil, nil
	}
	var res *Resolved
	if noTraversal {
		rec, err := r.lookup(obj)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
		res = fromRecord(rec)
	} else {
		var err error
		res, err = r.resolve(obj)
		if err != nil || res == nil {
			return nil, err
		}
	}
	out := res.clone()
	if np, ok := obj.(types.NatureProvider); ok {
		out.Nature = np.ObjectNature()
	}
	return out, nil
}

// resolve returns the nature-less composite for obj, recursing up the chain.
// Cached composites are returned as-is; callers must not mutate them.
func (r *Resolver) resolve(obj types.ChainMember) (*Resolved, error) {
	key := types.SettingsKey(obj)
	if res, ok := r.cache.Get(key); ok {
		return res, nil
	}
	rec, err := r.lookup(obj)
	if err != nil {
		return nil, err
	}
	parent, err := r.parentObject(obj)
	if err != nil {
		return nil, err
	}
	var parentRes *Resolved
	if parent != nil {
		parentRes, err = r.resolve(parent)
		if err != nil {
			return nil, err
		}
	}
	var res *Resolved
	switch {
	case rec == nil && parentRes == nil:
		// reached the portal with nothing configured, terminate the chain
		return nil, nil
	case rec == nil:
		res = parentRes.clone()
	default:
		res = fromRecord(rec)
		if parentRes != nil {
			res.mergeUnder(parentRes)
		}
	}
	r.cache.Put(key, res)
	return res, nil
}

func (r *Resolver) lookup(obj types.ChainMember) (*types.ConferenceSettings, error) {
	rec, err := r.store.GetSettings(obj.SettingsObjectType(), obj.SettingsObjectID())
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// parentObject maps an object to its parent in the fixed chain. An event
// belongs to its conference room if it has one, otherwise directly to its
// group. The portal has no parent.
func (r *Resolver) parentObject(obj types.ChainMember) (types.ChainMember, error) {
	var parent types.ChainMember
	var err error
	switch o := obj.(type) {
	case *types.Event:
		if o.ConferenceRoomID != "" {
			parent, err = r.store.GetConferenceRoom(o.ConferenceRoomID)
		} else if o.GroupID != "" {
			parent, err = r.store.GetGroup(o.GroupID)
		}
	case *types.ConferenceRoom:
		if o.GroupID != "" {
			parent, err = r.store.GetGroup(o.GroupID)
		}
	case *types.Group:
		if o.PortalID != "" {
			parent, err = r.store.GetPortal(o.PortalID)
		}
	case *types.Portal:
		// top of the chain
	}
	if errors.Is(err, persistence.ErrNotFound) {
		globals.AppLogger.Warn("settings chain parent does not exist", "object", types.SettingsKey(obj))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if parent == nil || isNilChainMember(parent) {
		return nil, nil
	}
	return parent, nil
}

// isNilChainMember guards against typed-nil interface values from the store.
func isNilChainMember(obj types.ChainMember) bool {
	switch o := obj.(type) {
	case *types.Event:
		return o == nil
	case *types.ConferenceRoom:
		return o == nil
	case *types.Group:
		return o == nil
	case *types.Portal:
		return o == nil
	}
	return false
}

// StoreSettings persists an override record for obj. Storing a record without
// any override deletes the stored row (only overrides are materialized). The
// object's cache entry is invalidated either way; entries of objects further
// down the chain expire via the TTL.
func (r *Resolver) StoreSettings(obj types.ChainMember, rec types.ConferenceSettings) error {
	if rec.ObjectType != "" && (rec.ObjectType != obj.SettingsObjectType() || rec.ObjectID != obj.SettingsObjectID()) {
		return ErrMismatchedRecord
	}
	rec.ObjectType = obj.SettingsObjectType()
	rec.ObjectID = obj.SettingsObjectID()
	if err := r.store.StoreSettings(rec); err != nil {
		return err
	}
	r.cache.Invalidate(types.SettingsKey(obj))
	return nil
}

// ClearCache drops every cached composite.
func (r *Resolver) ClearCache() {
	r.cache.Purge()
}
