package streaming

import (
	"errors"
	"time"

	"github.com/gofrs/flock"
	"github.com/wechange-eg/conference-hub/config"
	"github.com/wechange-eg/conference-hub/globals"
	"github.com/wechange-eg/conference-hub/persistence"
	"github.com/wechange-eg/conference-hub/types"
)

// Sweeper is the periodic time-window evaluator over all streaming-relevant
// events. Per event it checks four gates (create, start, stop, delete)
// against now and the event's start/end plus the configured lead/lag offsets.
// Each gate performs at most one remote call and one settings-state update.
// Stop and delete also fire when streaming was disabled or disallowed
// meanwhile, so no remote resource outlives its window.
type Sweeper struct {
	store  persistence.Persister
	client *Client

	createLead  time.Duration
	startLead   time.Duration
	stopLag     time.Duration
	allowFilter string

	Now func() time.Time
}

func NewSweeper(store persistence.Persister, client *Client, cfg *config.Config) *Sweeper {
	return &Sweeper{
		store:       store,
		client:      client,
		createLead:  cfg.StreamingConfig.CreateLead,
		startLead:   cfg.StreamingConfig.StartLead,
		stopLag:     cfg.StreamingConfig.StopLag,
		allowFilter: cfg.StreamingConfig.AllowFilter,
		Now:         time.Now,
	}
}

// RunExclusive executes one sweep guarded by a lockfile, so sweeps never
// overlap across processes (cron in the server, run-once in the admin CLI). A
// held lock means another instance is on it; the run is skipped, not queued.
func (s *Sweeper) RunExclusive(lockPath string) {
	if lockPath != "" {
		fileLock := flock.New(lockPath)
		locked, err := fileLock.TryLock()
		if err != nil {
			globals.AppLogger.Error("could not acquire sweep lock", "error", err)
			return
		}
		if !locked {
			globals.AppLogger.Debug("sweep lock held elsewhere, skipping")
			return
		}
		defer fileLock.Unlock() //nolint
	}
	s.Run()
}

// Run executes one sweep. One event's failure never blocks the others.
func (s *Sweeper) Run() {
	now := s.Now()
	events, err := s.store.GetEvents()
	if err != nil {
		globals.AppLogger.Error("sweep: could not list events", "error", err)
		return
	}
	for _, event := range events {
		// leftover streamer state keeps a disabled event in the sweep until
		// the external resource is cleaned up
		if !event.StreamingEnabled && event.StreamerId() == "" {
			continue
		}
		if err := s.sweepEvent(event, now); err != nil {
			globals.AppLogger.Error("sweep failed for event", "event", event.Id, "error", err)
		}
	}
}

func (s *Sweeper) sweepEvent(event *types.Event, now time.Time) error {
	var group *types.Group
	if event.GroupID != "" {
		g, err := s.store.GetGroup(event.GroupID)
		if err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return err
		}
		group = g
	}
	allowed := Allowed(s.allowFilter, group, event)
	enabled := event.StreamingEnabled && event.StreamURL != ""

	createTime := event.FromDate.Add(-s.createLead)
	startTime := event.FromDate.Add(-s.startLead)
	stopDeleteTime := event.ToDate.Add(s.stopLag)

	inCreateWindow := !now.Before(createTime) && now.Before(stopDeleteTime)
	inStartWindow := !now.Before(startTime) && now.Before(stopDeleteTime)

	if enabled && allowed && inCreateWindow && event.StreamerId() == "" {
		id, err := s.client.CreateStreamer(event.Title, event.StreamURL, event.StreamKey)
		if err != nil {
			return err
		}
		event.SetStreamerId(id)
		if err := s.store.StoreEvent(*event); err != nil {
			return err
		}
		globals.AppLogger.Info("created streamer", "event", event.Id, "streamer", id)
	}

	if enabled && allowed && inStartWindow && event.StreamerId() != "" && !event.StreamerRunning() {
		if err := s.client.StartStreamer(event.StreamerId()); err != nil {
			return err
		}
		event.SetStreamerRunning(true)
		if err := s.store.StoreEvent(*event); err != nil {
			return err
		}
		globals.AppLogger.Info("started streamer", "event", event.Id, "streamer", event.StreamerId())
	}

	windowOver := !now.Before(stopDeleteTime)

	if event.StreamerRunning() && (windowOver || !enabled || !allowed) {
		if err := s.client.StopStreamer(event.StreamerId()); err != nil {
			return err
		}
		event.SetStreamerRunning(false)
		if err := s.store.StoreEvent(*event); err != nil {
			return err
		}
		globals.AppLogger.Info("stopped streamer", "event", event.Id, "streamer", event.StreamerId())
	}

	if event.StreamerId() != "" && !event.StreamerRunning() && (windowOver || !enabled || !allowed) {
		id := event.StreamerId()
		if err := s.client.DeleteStreamer(id); err != nil {
			return err
		}
		event.SetStreamerId("")
		if err := s.store.StoreEvent(*event); err != nil {
			return err
		}
		globals.AppLogger.Info("deleted streamer", "event", event.Id, "streamer", id)
	}

	return nil
}
