package perturbation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regiorail/horaires/internal/calendar"
)

func TestMergeOverlayExcludesNonRunning(t *testing.T) {
	base := []Occurrence{
		{ScheduleID: "860001", Date: "2025-12-24", Runs: false},
		{ScheduleID: "860001", Date: "2025-12-23", Runs: true},
	}
	overrides := IndexRecords([]Record{
		{ID: uuid.New(), ScheduleID: "860001", Date: "2025-12-24", Override: Override{Kind: KindCancel}},
	})

	merged := MergeOverlay(base, overrides)
	require.Len(t, merged, 1)
	assert.Equal(t, "2025-12-23", merged[0].Date)
	assert.False(t, merged[0].Perturbed)
	assert.Empty(t, Perturbed(merged))
}

func TestMergeOverlayAttachesClassification(t *testing.T) {
	delayID := uuid.New()
	base := []Occurrence{
		{ScheduleID: "B", Date: "2025-12-02", Runs: true},
		{ScheduleID: "A", Date: "2025-12-02", Runs: true},
		{ScheduleID: "C", Date: "2025-12-01", Runs: true},
		{ScheduleID: "A", Date: "2025-12-01", Runs: true},
	}
	overrides := IndexRecords([]Record{
		{
			ID: delayID, ScheduleID: "A", Date: "2025-12-02",
			Override:    Override{Kind: KindDelay, Delay: &Delay{FromStation: "Metz", Minutes: 12}},
			Cause:       "incident technique",
			Fingerprint: "0badf00d",
		},
		{ID: uuid.New(), ScheduleID: "B", Date: "2025-12-02", Override: Override{Kind: KindCancel}, Message: "Remplacé par autocar"},
		{ID: uuid.New(), ScheduleID: "C", Date: "2025-12-01", Override: Override{Kind: KindReroute, Reroute: &Reroute{Departure: "Nancy"}}},
		{ID: uuid.New(), ScheduleID: "Z", Date: "2025-12-01", Override: Override{Kind: KindCancel}},
	})

	merged := MergeOverlay(base, overrides)
	require.Len(t, merged, 4)

	var order []string
	for _, m := range merged {
		order = append(order, m.Date+"/"+m.ScheduleID)
	}
	assert.Equal(t, []string{"2025-12-01/A", "2025-12-01/C", "2025-12-02/A", "2025-12-02/B"}, order)

	assert.False(t, merged[0].Perturbed)
	assert.Equal(t, 0, merged[0].DelayMinutes)

	assert.Equal(t, "modification", merged[1].Classification)
	assert.Equal(t, "Itinéraire modifié", merged[1].Message)
	require.NotNil(t, merged[1].Reroute)

	assert.Equal(t, "delay", merged[2].Classification)
	assert.Equal(t, 12, merged[2].DelayMinutes)
	assert.Equal(t, "incident technique", merged[2].Cause)
	assert.Equal(t, "Retard estimé de 12 min à partir de Metz", merged[2].Message)
	assert.Equal(t, delayID, *merged[2].OverrideID)

	assert.Equal(t, "cancellation", merged[3].Classification)
	assert.Equal(t, "Remplacé par autocar", merged[3].Message)

	assert.Len(t, Perturbed(merged), 3)
}

func TestExpandAndMergeOverWindow(t *testing.T) {
	resolver := calendar.NewResolver(nil)
	w, err := ParseWindow("2025-12-01", "2025-12-07", 31)
	require.NoError(t, err)
	assert.Equal(t, 7, w.Days())

	schedules := []ScheduledCalendar{
		{ScheduleID: "weekend", Calendar: calendar.ScheduleCalendar{WeeklyMask: calendar.MaskOf(calendar.Saturday, calendar.Sunday)}},
		{ScheduleID: "custom", Calendar: calendar.ScheduleCalendar{CustomMode: true, CustomDates: calendar.NewDateSet("2025-12-03")}},
	}

	occ := Expand(resolver, schedules, w)
	require.Len(t, occ, 14)
	assert.Equal(t, Occurrence{ScheduleID: "custom", Date: "2025-12-01", Runs: false}, occ[0])
	assert.Equal(t, Occurrence{ScheduleID: "weekend", Date: "2025-12-01", Runs: false}, occ[1])

	overrides := IndexRecords([]Record{
		// Monday: weekend service does not run, override stays inert
		{ScheduleID: "weekend", Date: "2025-12-01", Override: Override{Kind: KindCancel}},
		{ScheduleID: "weekend", Date: "2025-12-06", Override: Override{Kind: KindDelay, Delay: &Delay{Minutes: 5}}},
	})
	merged := MergeOverlay(occ, overrides)
	require.Len(t, merged, 3)
	assert.Equal(t, "2025-12-03", merged[0].Date)
	assert.Equal(t, "2025-12-06", merged[1].Date)
	assert.True(t, merged[1].Perturbed)
	assert.Equal(t, "2025-12-07", merged[2].Date)
}

func TestParseWindowErrors(t *testing.T) {
	_, err := ParseWindow("2025-12-10", "2025-12-01", 31)
	assert.ErrorIs(t, err, ErrWindowTooLarge)

	_, err = ParseWindow("2025-01-01", "2025-12-31", 31)
	assert.ErrorIs(t, err, ErrWindowTooLarge)

	_, err = ParseWindow("2025-12-01", "soon", 31)
	assert.ErrorIs(t, err, calendar.ErrInvalidDate)

	w, err := ParseWindow("2025-12-01", "2025-12-01", 0)
	require.NoError(t, err)
	assert.Len(t, w.Dates(), 1)
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func TestBusFanOut(t *testing.T) {
	bus := NewBus(2)
	a, leaveA := bus.Subscribe()
	b, leaveB := bus.Subscribe()
	defer leaveB()
	assert.Equal(t, 2, bus.Subscribers())

	ev := Event{Type: EventCreated, ScheduleID: "860001", Date: "2025-12-24", Kind: KindCancel, At: time.Now()}
	require.NoError(t, bus.Publish(context.Background(), ev))

	assert.Equal(t, ev, <-a)
	assert.Equal(t, ev, <-b)

	leaveA()
	leaveA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, bus.Subscribers())

	// a full subscriber never blocks the publisher
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), ev))
	}
	assert.Len(t, b, 2)

	bus.Close()
	c, _ := bus.Subscribe()
	_, open = <-c
	assert.False(t, open)
}

func TestMultiPublisherJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	bus := NewBus(1)
	ch, leave := bus.Subscribe()
	defer leave()

	err := MultiPublisher{bus, nil, failingPublisher{err: boom}}.Publish(context.Background(), Event{Type: EventDeleted})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, EventDeleted, (<-ch).Type)
}
