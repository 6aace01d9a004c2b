package migrate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/afroash/holdtrack/internal/models"
	"github.com/afroash/holdtrack/internal/storage"
)

// Report summarises an import run
type Report struct {
	AccountsCreated int `json:"accounts_created"`
	AccountsRemoved int `json:"accounts_removed"`
	AccountsExisted int `json:"accounts_existed"`
	DevicesImported int `json:"devices_imported"`
	DevicesDropped  int `json:"devices_dropped"`
	DevicesOrphaned int `json:"devices_orphaned"`
	DevicesFailed   int `json:"devices_failed"`
	HoldsCreated    int `json:"holds_created"`
	HoldsClosed     int `json:"holds_closed"`
	UnknownEvents   int `json:"unknown_events"`
}

// Importer replays an EventLog into a store
type Importer struct {
	store  storage.Store
	logger zerolog.Logger
}

func NewImporter(store storage.Store, logger zerolog.Logger) *Importer {
	return &Importer{
		store:  store,
		logger: logger.With().Str("component", "importer").Logger(),
	}
}

// Import creates the surviving accounts, then each surviving device with its
// hold timeline. A device whose events cannot be applied is rolled back and
// counted as failed; the run continues with the next device.
func (im *Importer) Import(ctx context.Context, events *EventLog) (*Report, error) {
	report := &Report{UnknownEvents: events.Skipped}

	removed, err := im.importAccounts(ctx, events.Accounts, report)
	if err != nil {
		return report, err
	}

	for i, timeline := range deviceTimelines(events.Devices) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if i > 0 && i%100 == 0 {
			im.logger.Info().Int("devices", i).Msg("Import progress")
		}

		latest := timeline[len(timeline)-1]
		switch {
		case latest.Type == DeviceDropped:
			report.DevicesDropped++
			continue
		case removed[latest.OrgID]:
			report.DevicesOrphaned++
			continue
		}

		if err := im.importDevice(ctx, timeline, report); err != nil {
			report.DevicesFailed++
			im.logger.Warn().Err(err).Str("device_id", latest.DeviceID).Msg("Device import failed")
			continue
		}
		report.DevicesImported++
	}

	im.logger.Info().
		Int("accounts", report.AccountsCreated).
		Int("devices", report.DevicesImported).
		Int("holds", report.HoldsCreated).
		Int("failed", report.DevicesFailed).
		Msg("Import finished")
	return report, nil
}

// importAccounts creates every account whose history is not exactly a
// created/removed pair and returns the set of removed account ids
func (im *Importer) importAccounts(ctx context.Context, events []AccountEvent, report *Report) (map[string]bool, error) {
	var order []string
	groups := make(map[string][]AccountEvent)
	for _, event := range events {
		if _, ok := groups[event.AccountID]; !ok {
			order = append(order, event.AccountID)
		}
		groups[event.AccountID] = append(groups[event.AccountID], event)
	}

	removed := make(map[string]bool)
	for _, id := range order {
		group := groups[id]
		if len(group) == 2 {
			removed[id] = true
			report.AccountsRemoved++
			continue
		}

		first := group[0]
		var apiKey *string
		for _, event := range group {
			if event.APIKey != nil {
				apiKey = event.APIKey
				break
			}
		}

		err := im.store.CreateAccount(ctx, id, apiKey, optionalInstant(first.Timestamp))
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			report.AccountsExisted++
		case err != nil:
			return removed, fmt.Errorf("failed to create account %s: %w", id, err)
		default:
			report.AccountsCreated++
		}
	}
	return removed, nil
}

// importDevice applies one device's events inside a single unit of work
func (im *Importer) importDevice(ctx context.Context, timeline []DeviceEvent, report *Report) error {
	deviceID := timeline[0].DeviceID
	var created, closed int

	err := im.store.WithinDevice(ctx, deviceID, func(repo storage.Repository) error {
		var lastHoldID int64
		openHold := func(event DeviceEvent) error {
			start, err := parseInstant("claimedAt", event.ClaimedAt)
			if err != nil {
				return err
			}
			hold := &models.Hold{DeviceID: deviceID, Label: event.Label, Start: start}
			if event.IMEI != "" {
				imei := event.IMEI
				hold.IMEI = &imei
			}
			id, err := repo.CreateHold(ctx, hold)
			if err != nil {
				return fmt.Errorf("event %d: %w", event.EventID, err)
			}
			lastHoldID = id
			created++
			return nil
		}

		for _, event := range timeline {
			if event.EventID == 1 {
				if err := repo.CreateDevice(ctx, deviceID, event.OrgID, optionalInstant(event.Timestamp)); err != nil {
					return fmt.Errorf("event %d: %w", event.EventID, err)
				}
				if err := openHold(event); err != nil {
					return err
				}
				continue
			}

			switch event.Type {
			case DeviceClaimed:
				if err := openHold(event); err != nil {
					return err
				}
			case DeviceRetired:
				if lastHoldID == 0 {
					return fmt.Errorf("event %d: retire without a hold", event.EventID)
				}
				end, err := parseInstant("retiredAt", event.RetiredAt)
				if err != nil {
					return err
				}
				if err := repo.SetHoldEnd(ctx, lastHoldID, end); err != nil {
					return fmt.Errorf("event %d: %w", event.EventID, err)
				}
				closed++
			default:
				im.logger.Warn().Str("device_id", deviceID).Str("type", event.Type).Msg("Unknown event type")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	report.HoldsCreated += created
	report.HoldsClosed += closed
	return nil
}

// deviceTimelines groups events by device in first-seen order, each sorted by eventId
func deviceTimelines(events []DeviceEvent) [][]DeviceEvent {
	var order []string
	groups := make(map[string][]DeviceEvent)
	for _, event := range events {
		if _, ok := groups[event.DeviceID]; !ok {
			order = append(order, event.DeviceID)
		}
		groups[event.DeviceID] = append(groups[event.DeviceID], event)
	}

	out := make([][]DeviceEvent, 0, len(order))
	for _, id := range order {
		timeline := groups[id]
		sort.SliceStable(timeline, func(i, j int) bool {
			return timeline[i].EventID < timeline[j].EventID
		})
		out = append(out, timeline)
	}
	return out
}
